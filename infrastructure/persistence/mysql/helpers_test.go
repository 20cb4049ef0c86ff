package mysql

import (
	"context"
	"path/filepath"
	"testing"

	"storefront/infrastructure/persistence/mysql/po"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的 sqlite 文件库，单连接避免锁冲突
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "storefront.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&po.UserPO{},
		&po.ProductPO{},
		&po.CartItemPO{},
		&po.OrderPO{},
		&po.OrderItemPO{},
		&po.TransactionPO{},
		&po.NetsTransactionPO{},
		&po.RefundRequestPO{},
		&po.OutboxEventPO{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, member bool) int64 {
	t.Helper()
	u := &po.UserPO{Name: name, IsMember: member}
	require.NoError(t, db.Create(u).Error)
	return u.ID
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) int64 {
	t.Helper()
	p := &po.ProductPO{Name: name, Price: decimal.RequireFromString(price), Quantity: stock}
	require.NoError(t, db.Create(p).Error)
	return p.ID
}

func stockOf(t *testing.T, db *gorm.DB, productID int64) int {
	t.Helper()
	var p po.ProductPO
	require.NoError(t, db.First(&p, productID).Error)
	return p.Quantity
}

func testCtx() context.Context {
	return context.Background()
}
