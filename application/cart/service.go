/*
Package cart 购物车应用服务

职责:
1. 按 Owner 选择存储：登录用户走数据库，匿名访客走会话(Redis)
2. 调用方从不感知存储介质
3. 汇总金额统一调用 domain/cart.ComputeTotals，会员折扣只对登录用户生效
4. 登录时把会话购物车合并到用户购物车，合并行重新经过库存/限购校验
*/
package cart

import (
	"context"
	"errors"
	"fmt"

	"storefront/domain/cart"
	"storefront/pkg/logger"

	"go.uber.org/zap"
)

// MemberChecker 会员资格查询（由用户模块提供）
type MemberChecker interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

// Service 购物车应用服务
type Service struct {
	users    cart.Store
	sessions cart.Store
	members  MemberChecker
}

// NewService 创建购物车应用服务
func NewService(users, sessions cart.Store, members MemberChecker) *Service {
	return &Service{users: users, sessions: sessions, members: members}
}

// storeFor 登录身份优先；两者都没有时返回 ErrNoOwner
func (s *Service) storeFor(owner cart.Owner) (cart.Store, cart.Owner, error) {
	switch {
	case owner.Authenticated():
		return s.users, cart.Owner{UserID: owner.UserID}, nil
	case owner.SessionID != "" && s.sessions != nil:
		return s.sessions, cart.Owner{SessionID: owner.SessionID}, nil
	}
	return nil, owner, cart.ErrNoOwner
}

// ============================================================================
// 购物车行操作
// ============================================================================

func (s *Service) List(ctx context.Context, owner cart.Owner) ([]cart.Line, error) {
	store, owner, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}
	lines, err := store.ListItems(ctx, owner)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []cart.Line{}
	}
	return lines, nil
}

func (s *Service) Add(ctx context.Context, owner cart.Owner, productID int64, quantity int) (cart.AddResult, error) {
	store, owner, err := s.storeFor(owner)
	if err != nil {
		return cart.AddResult{}, err
	}
	result, err := store.AddItem(ctx, owner, productID, quantity)
	if err != nil {
		return cart.AddResult{}, err
	}
	if result.Partial {
		logger.Ctx(ctx).Info("partial add to cart",
			zap.Int64("product_id", productID),
			zap.Int("requested", result.Requested),
			zap.Int("added", result.Added),
			zap.String("limit", string(result.Limit)))
	}
	return result, nil
}

// Decrement 返回剩余数量
func (s *Service) Decrement(ctx context.Context, owner cart.Owner, productID int64, amount int) (int, error) {
	store, owner, err := s.storeFor(owner)
	if err != nil {
		return 0, err
	}
	return store.DecrementItem(ctx, owner, productID, amount)
}

func (s *Service) Remove(ctx context.Context, owner cart.Owner, productID int64) error {
	store, owner, err := s.storeFor(owner)
	if err != nil {
		return err
	}
	return store.RemoveItem(ctx, owner, productID)
}

func (s *Service) Clear(ctx context.Context, owner cart.Owner) error {
	store, owner, err := s.storeFor(owner)
	if err != nil {
		return err
	}
	return store.Clear(ctx, owner)
}

// ============================================================================
// 金额汇总
// ============================================================================

// IsMember 匿名访客永远不是会员
func (s *Service) IsMember(ctx context.Context, owner cart.Owner) (bool, error) {
	if !owner.Authenticated() || s.members == nil {
		return false, nil
	}
	member, err := s.members.IsMember(ctx, owner.UserID)
	if err != nil {
		return false, fmt.Errorf("membership lookup failed: %w", err)
	}
	return member, nil
}

// Totals 列出购物车并计算金额
func (s *Service) Totals(ctx context.Context, owner cart.Owner) (*Summary, error) {
	lines, err := s.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	member, err := s.IsMember(ctx, owner)
	if err != nil {
		return nil, err
	}
	return NewSummary(lines, member), nil
}

// ============================================================================
// 会话购物车合并
// ============================================================================

// Merge 把会话购物车逐行加入用户购物车，然后清空会话购物车。
// 超出库存或限购的行只加入允许的部分，被整行拒绝的记录在 Skipped 中。
func (s *Service) Merge(ctx context.Context, sessionID string, userID int64) (*MergeResult, error) {
	if sessionID == "" || userID <= 0 || s.sessions == nil {
		return nil, cart.ErrNoOwner
	}
	session := cart.Owner{SessionID: sessionID}
	user := cart.Owner{UserID: userID}

	lines, err := s.sessions.ListItems(ctx, session)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{Added: []cart.AddResult{}, Skipped: []SkippedLine{}}
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		added, err := s.users.AddItem(ctx, user, line.ProductID, line.Quantity)
		if err != nil {
			if reason, ok := skipReason(err); ok {
				result.Skipped = append(result.Skipped, SkippedLine{ProductID: line.ProductID, Quantity: line.Quantity, Reason: reason})
				continue
			}
			return nil, err
		}
		result.Added = append(result.Added, added)
	}

	if err := s.sessions.Clear(ctx, session); err != nil {
		// 用户购物车已写入，会话残留只会在下次合并时被再次限购
		logger.Ctx(ctx).Warn("failed to clear session cart after merge",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	logger.Ctx(ctx).Info("session cart merged",
		zap.Int64("user_id", userID),
		zap.Int("added", len(result.Added)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func skipReason(err error) (string, bool) {
	switch {
	case errors.Is(err, cart.ErrOutOfStock):
		return "out_of_stock", true
	case errors.Is(err, cart.ErrCapReached):
		return "cap_reached", true
	case errors.Is(err, cart.ErrProductNotFound):
		return "product_not_found", true
	}
	return "", false
}
