package mysql

import (
	"context"
	"errors"
	"fmt"

	"storefront/domain/cart"
	"storefront/infrastructure/persistence"
	"storefront/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartStore 登录用户购物车（user_cart_items 表）
type CartStore struct {
	db         *gorm.DB
	maxPerUser int
}

func NewCartStore(db *gorm.DB, maxPerUser int) *CartStore {
	if maxPerUser <= 0 {
		maxPerUser = cart.MaxPerUser
	}
	return &CartStore{db: db, maxPerUser: maxPerUser}
}

func (s *CartStore) getDB(ctx context.Context) *gorm.DB {
	return persistence.DB(ctx, s.db)
}

func requireUser(owner cart.Owner) error {
	if !owner.Authenticated() {
		return cart.ErrNoOwner
	}
	return nil
}

// ListItems joins live product price/name; a vanished product gets a placeholder line
func (s *CartStore) ListItems(ctx context.Context, owner cart.Owner) ([]cart.Line, error) {
	if err := requireUser(owner); err != nil {
		return nil, err
	}
	var rows []po.CartLineRow
	err := s.getDB(ctx).
		Model(&po.CartItemPO{}).
		Select("user_cart_items.product_id, user_cart_items.quantity, products.name, products.price").
		Joins("LEFT JOIN products ON products.id = user_cart_items.product_id").
		Where("user_cart_items.user_id = ?", owner.UserID).
		Order("user_cart_items.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	lines := make([]cart.Line, len(rows))
	for i, row := range rows {
		line := cart.Line{ProductID: row.ProductID, Quantity: row.Quantity, Name: cart.UnknownProductName}
		if row.Name != nil {
			line.Name = *row.Name
			line.Available = true
		}
		if row.Price.Valid {
			line.UnitPrice = row.Price.Decimal
		}
		lines[i] = line
	}
	return lines, nil
}

// AddItem clamps the request to stock and the per-user cap; nothing changes when nothing fits
func (s *CartStore) AddItem(ctx context.Context, owner cart.Owner, productID int64, quantity int) (cart.AddResult, error) {
	if err := requireUser(owner); err != nil {
		return cart.AddResult{}, err
	}

	var result cart.AddResult
	err := s.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		var product po.ProductPO
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return cart.ErrProductNotFound
			}
			return err
		}

		// 行锁保证并发的加购按顺序累加，不会互相覆盖
		var row po.CartItemPO
		err := lockedCartRow(tx, owner.UserID, productID).First(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		allowed, limit, err := cart.Allowance(quantity, product.Quantity, row.Quantity, s.maxPerUser)
		if err != nil {
			return err
		}

		next := row.Quantity + allowed
		if row.ID == 0 {
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
				DoUpdates: clause.Assignments(map[string]any{"quantity": next}),
			}).Create(&po.CartItemPO{UserID: owner.UserID, ProductID: productID, Quantity: next}).Error
		} else {
			err = tx.Model(&po.CartItemPO{}).Where("id = ?", row.ID).Update("quantity", next).Error
		}
		if err != nil {
			return fmt.Errorf("save cart item: %w", err)
		}

		result = cart.NewAddResult(productID, quantity, allowed, next, limit)
		return nil
	})
	return result, err
}

func (s *CartStore) DecrementItem(ctx context.Context, owner cart.Owner, productID int64, amount int) (int, error) {
	if err := requireUser(owner); err != nil {
		return 0, err
	}

	var next int
	err := s.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		var row po.CartItemPO
		err := lockedCartRow(tx, owner.UserID, productID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		next = cart.ClampDecrement(row.Quantity, amount)
		if next == 0 {
			return tx.Delete(&po.CartItemPO{}, row.ID).Error
		}
		return tx.Model(&po.CartItemPO{}).Where("id = ?", row.ID).Update("quantity", next).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// lockedCartRow SELECT ... FOR UPDATE；SQLite 方言会忽略锁子句
func lockedCartRow(tx *gorm.DB, userID, productID int64) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("user_id = ? AND product_id = ?", userID, productID)
}

func (s *CartStore) RemoveItem(ctx context.Context, owner cart.Owner, productID int64) error {
	if err := requireUser(owner); err != nil {
		return err
	}
	return s.getDB(ctx).
		Where("user_id = ? AND product_id = ?", owner.UserID, productID).
		Delete(&po.CartItemPO{}).Error
}

func (s *CartStore) Clear(ctx context.Context, owner cart.Owner) error {
	if err := requireUser(owner); err != nil {
		return err
	}
	return s.getDB(ctx).Where("user_id = ?", owner.UserID).Delete(&po.CartItemPO{}).Error
}

var _ cart.Store = (*CartStore)(nil)
