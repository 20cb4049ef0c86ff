package mysql

import (
	"context"
	"errors"
	"fmt"

	"storefront/domain/catalog"
	"storefront/infrastructure/persistence"
	"storefront/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
)

// ProductRepository reads product price/stock and adjusts stock
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) getDB(ctx context.Context) *gorm.DB {
	return persistence.DB(ctx, r.db)
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*catalog.Product, error) {
	var row po.ProductPO
	err := r.getDB(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, catalog.ErrProductNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	result := make(map[int64]*catalog.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []po.ProductPO
	if err := r.getDB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		result[rows[i].ID] = rows[i].ToDomain()
	}
	return result, nil
}

// AdjustStock read-modify-write, never below zero
func (r *ProductRepository) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	product, err := r.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	next := catalog.ClampStock(product.Quantity, delta)
	err = r.getDB(ctx).Model(&po.ProductPO{}).
		Where("id = ?", id).
		Update("quantity", next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

var _ catalog.Repository = (*ProductRepository)(nil)
