package po

import (
	"time"

	"storefront/domain/refund"
)

// RefundRequestPO 每个订单至多一条（order_id 唯一）
type RefundRequestPO struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	OrderID     int64   `gorm:"uniqueIndex;not null"`
	UserID      int64   `gorm:"index;not null"`
	Reason      string  `gorm:"type:text"`
	Status      string  `gorm:"size:16;not null"`
	AdminID     *int64
	AdminNote   *string `gorm:"size:255"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (RefundRequestPO) TableName() string {
	return "refund_requests"
}

func (p *RefundRequestPO) ToDomain() *refund.Request {
	r := &refund.Request{
		ID:          p.ID,
		OrderID:     p.OrderID,
		UserID:      p.UserID,
		Reason:      p.Reason,
		Status:      refund.RequestStatus(p.Status),
		AdminNote:   deref(p.AdminNote),
		ProcessedAt: p.ProcessedAt,
		CreatedAt:   p.CreatedAt,
	}
	if p.AdminID != nil {
		r.AdminID = *p.AdminID
	}
	return r
}
