package mysql

import (
	"context"
	"errors"

	"storefront/domain/payment"
	"storefront/infrastructure/persistence"
	"storefront/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
)

// NetsRepository nets_transactions 表；txn_retrieval_ref 唯一
type NetsRepository struct {
	db *gorm.DB
}

func NewNetsRepository(db *gorm.DB) *NetsRepository {
	return &NetsRepository{db: db}
}

func (r *NetsRepository) getDB(ctx context.Context) *gorm.DB {
	return persistence.DB(ctx, r.db)
}

func (r *NetsRepository) Create(ctx context.Context, txn *payment.NetsTransaction) error {
	row := po.FromNetsDomain(txn)
	if err := r.getDB(ctx).Create(row).Error; err != nil {
		return err
	}
	txn.ID = row.ID
	txn.CreatedAt = row.CreatedAt
	return nil
}

func (r *NetsRepository) FindByRef(ctx context.Context, ref string) (*payment.NetsTransaction, error) {
	var row po.NetsTransactionPO
	err := r.getDB(ctx).Where("txn_retrieval_ref = ?", ref).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

// ClaimOrder is a conditional update on order_id IS NULL; the row count decides the winner
func (r *NetsRepository) ClaimOrder(ctx context.Context, ref string, orderID int64, completion payment.NetsCompletion) (bool, error) {
	updates := map[string]any{
		"order_id": orderID,
		"status":   payment.NetsStatusSuccess,
	}
	if completion.Status != "" {
		updates["status"] = completion.Status
	}
	if completion.NetTransactionID != "" {
		updates["net_transaction_id"] = completion.NetTransactionID
	}
	if completion.ResponseCode != "" {
		updates["response_code"] = completion.ResponseCode
	}
	if completion.NetworkStatus != nil {
		updates["network_status"] = *completion.NetworkStatus
	}
	if completion.Payload != "" {
		updates["payload"] = completion.Payload
	}

	result := r.getDB(ctx).Model(&po.NetsTransactionPO{}).
		Where("txn_retrieval_ref = ? AND order_id IS NULL", ref).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFailed only touches records that never produced an order
func (r *NetsRepository) MarkFailed(ctx context.Context, ref, responseCode, payload string) error {
	updates := map[string]any{"status": payment.NetsStatusFailed}
	if responseCode != "" {
		updates["response_code"] = responseCode
	}
	if payload != "" {
		updates["payload"] = payload
	}
	return r.getDB(ctx).Model(&po.NetsTransactionPO{}).
		Where("txn_retrieval_ref = ? AND order_id IS NULL", ref).
		Updates(updates).Error
}

var _ payment.NetsRepository = (*NetsRepository)(nil)
