package mysql

import (
	"context"
	"errors"

	"storefront/domain/payment"
	"storefront/infrastructure/persistence"
	"storefront/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
)

// TransactionLedger MySQL/GORM implementation of payment.TransactionLedger
type TransactionLedger struct {
	db *gorm.DB
}

func NewTransactionLedger(db *gorm.DB) *TransactionLedger {
	return &TransactionLedger{db: db}
}

func (r *TransactionLedger) getDB(ctx context.Context) *gorm.DB {
	return persistence.DB(ctx, r.db)
}

func (r *TransactionLedger) Create(ctx context.Context, tx *payment.Transaction) error {
	row := po.FromTransactionDomain(tx)
	if err := r.getDB(ctx).Create(row).Error; err != nil {
		return err
	}
	tx.ID = row.ID
	return nil
}

// FindByOrderID returns the first transaction recorded for the order
func (r *TransactionLedger) FindByOrderID(ctx context.Context, orderID int64) (*payment.Transaction, error) {
	var row po.TransactionPO
	err := r.getDB(ctx).Where("order_id = ?", orderID).Order("id ASC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

func (r *TransactionLedger) UpdateStatusByOrderID(ctx context.Context, orderID int64, status, reason string) error {
	updates := map[string]any{"status": status}
	if reason != "" {
		updates["refund_reason"] = reason
	}
	return r.getDB(ctx).Model(&po.TransactionPO{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}

var _ payment.TransactionLedger = (*TransactionLedger)(nil)
