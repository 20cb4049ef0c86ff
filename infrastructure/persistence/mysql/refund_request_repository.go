package mysql

import (
	"context"
	"errors"
	"time"

	"storefront/domain/refund"
	"storefront/infrastructure/persistence"
	"storefront/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefundRequestRepository refund_requests 表
type RefundRequestRepository struct {
	db *gorm.DB
}

func NewRefundRequestRepository(db *gorm.DB) *RefundRequestRepository {
	return &RefundRequestRepository{db: db}
}

func (r *RefundRequestRepository) getDB(ctx context.Context) *gorm.DB {
	return persistence.DB(ctx, r.db)
}

// Upsert a new request replaces the previous one and clears the admin fields
func (r *RefundRequestRepository) Upsert(ctx context.Context, orderID, userID int64, reason string) error {
	row := &po.RefundRequestPO{
		OrderID: orderID,
		UserID:  userID,
		Reason:  reason,
		Status:  string(refund.RequestRequested),
	}
	return r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"reason":       reason,
			"status":       string(refund.RequestRequested),
			"admin_id":     nil,
			"admin_note":   nil,
			"processed_at": nil,
		}),
	}).Create(row).Error
}

func (r *RefundRequestRepository) FindByOrderID(ctx context.Context, orderID int64) (*refund.Request, error) {
	var row po.RefundRequestPO
	err := r.getDB(ctx).Where("order_id = ?", orderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

func (r *RefundRequestRepository) FindByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64]*refund.Request, error) {
	result := make(map[int64]*refund.Request, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}
	var rows []po.RefundRequestPO
	if err := r.getDB(ctx).Where("order_id IN ?", orderIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		result[rows[i].OrderID] = rows[i].ToDomain()
	}
	return result, nil
}

// MarkApproved is a no-op when the order has no request
func (r *RefundRequestRepository) MarkApproved(ctx context.Context, orderID, adminID int64, note string) error {
	updates := map[string]any{
		"status":       string(refund.RequestApproved),
		"processed_at": time.Now(),
		"admin_id":     nil,
		"admin_note":   nil,
	}
	if adminID > 0 {
		updates["admin_id"] = adminID
	}
	if note != "" {
		updates["admin_note"] = note
	}
	return r.getDB(ctx).Model(&po.RefundRequestPO{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}

var _ refund.RequestRepository = (*RefundRequestRepository)(nil)
