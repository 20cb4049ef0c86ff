package po

import (
	"time"

	"storefront/domain/catalog"

	"github.com/shopspring/decimal"
)

// ProductPO 商品表（由商品管理模块维护，这里只映射结算需要的列）
type ProductPO struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Quantity  int             `gorm:"not null;default:0"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (ProductPO) TableName() string {
	return "products"
}

func (p *ProductPO) ToDomain() *catalog.Product {
	return &catalog.Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: p.Quantity,
	}
}

// UserPO 用户表中结算关心的列
type UserPO struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Name     string `gorm:"size:255;not null"`
	IsMember bool   `gorm:"not null;default:false"`
}

func (UserPO) TableName() string {
	return "users"
}

// CartItemPO 登录用户购物车，(user_id, product_id) 唯一
type CartItemPO struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;uniqueIndex:uk_cart_user_product"`
	ProductID int64     `gorm:"not null;uniqueIndex:uk_cart_user_product"`
	Quantity  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (CartItemPO) TableName() string {
	return "user_cart_items"
}

// CartLineRow user_cart_items LEFT JOIN products
type CartLineRow struct {
	ProductID int64
	Quantity  int
	Name      *string
	Price     decimal.NullDecimal
}
