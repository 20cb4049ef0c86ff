package cart

import (
	"storefront/domain/cart"
	"storefront/domain/shared"
)

// Summary 购物车 + 金额
type Summary struct {
	Lines    []cart.Line   `json:"lines"`
	Totals   shared.Totals `json:"totals"`
	IsMember bool          `json:"is_member"`
	Units    int           `json:"units"`
}

func NewSummary(lines []cart.Line, isMember bool) *Summary {
	units := 0
	for _, l := range lines {
		units += l.Quantity
	}
	return &Summary{
		Lines:    lines,
		Totals:   cart.ComputeTotals(lines, isMember),
		IsMember: isMember,
		Units:    units,
	}
}

// Empty 没有任何行
func (s *Summary) Empty() bool {
	return len(s.Lines) == 0
}

// MergeResult 会话购物车合并结果
type MergeResult struct {
	Added   []cart.AddResult `json:"added"`
	Skipped []SkippedLine    `json:"skipped"`
}

type SkippedLine struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}
