package session

import (
	"context"
	"testing"
	"time"

	"storefront/domain/cart"
	"storefront/domain/catalog"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog map[int64]*catalog.Product

func (f fakeCatalog) FindByID(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (f fakeCatalog) FindByIDs(_ context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	out := map[int64]*catalog.Product{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f fakeCatalog) AdjustStock(_ context.Context, id int64, delta int) (int, error) {
	p := f[id]
	p.Quantity = catalog.ClampStock(p.Quantity, delta)
	return p.Quantity, nil
}

func setupStore(t *testing.T, products fakeCatalog) (*CartStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCartStore(client, products, cart.MaxPerUser, time.Hour), mr
}

func TestSessionCartAddAndList(t *testing.T) {
	products := fakeCatalog{
		1: {ID: 1, Name: "Apple", Price: decimal.RequireFromString("1.20"), Quantity: 4},
		2: {ID: 2, Name: "Milk", Price: decimal.RequireFromString("3.50"), Quantity: 50},
	}
	store, mr := setupStore(t, products)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "s-1"}

	res, err := store.AddItem(ctx, owner, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Quantity)

	res, err = store.AddItem(ctx, owner, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Added)
	assert.True(t, res.Partial)
	assert.Equal(t, cart.LimitStock, res.Limit)

	_, err = store.AddItem(ctx, owner, 1, 1)
	assert.ErrorIs(t, err, cart.ErrOutOfStock)

	lines, err := store.ListItems(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.Equal(t, "Milk", lines[1].Name)
	assert.True(t, lines[1].LineTotal().Equal(decimal.RequireFromString("10.50")))

	assert.Equal(t, "3", mr.HGet(cartKey("s-1"), "2"))
	assert.Greater(t, mr.TTL(cartKey("s-1")), time.Duration(0))
}

func TestSessionCartCapAcrossCalls(t *testing.T) {
	products := fakeCatalog{7: {ID: 7, Name: "Rice", Price: decimal.NewFromInt(9), Quantity: 100}}
	store, _ := setupStore(t, products)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "s-cap"}

	for i := 0; i < 3; i++ {
		_, err := store.AddItem(ctx, owner, 7, 3)
		require.NoError(t, err)
	}
	res, err := store.AddItem(ctx, owner, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, cart.LimitCap, res.Limit)

	_, err = store.AddItem(ctx, owner, 7, 1)
	assert.ErrorIs(t, err, cart.ErrCapReached)
}

func TestSessionCartDecrementRemoveClear(t *testing.T) {
	products := fakeCatalog{
		1: {ID: 1, Name: "Apple", Price: decimal.NewFromInt(1), Quantity: 10},
		2: {ID: 2, Name: "Pear", Price: decimal.NewFromInt(2), Quantity: 10},
	}
	store, mr := setupStore(t, products)
	ctx := context.Background()
	owner := cart.Owner{SessionID: "s-2"}

	_, err := store.AddItem(ctx, owner, 1, 2)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, owner, 2, 2)
	require.NoError(t, err)

	left, err := store.DecrementItem(ctx, owner, 1, 5)
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.Empty(t, mr.HGet(cartKey("s-2"), "1"))

	left, err = store.DecrementItem(ctx, owner, 99, 1)
	require.NoError(t, err)
	assert.Zero(t, left)

	require.NoError(t, store.RemoveItem(ctx, owner, 2))
	lines, err := store.ListItems(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = store.AddItem(ctx, owner, 2, 1)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, owner))
	assert.False(t, mr.Exists(cartKey("s-2")))
}

func TestSessionCartVanishedProductAndNoSession(t *testing.T) {
	products := fakeCatalog{}
	store, mr := setupStore(t, products)
	ctx := context.Background()

	mr.HSet(cartKey("s-3"), "42", "2")
	lines, err := store.ListItems(ctx, cart.Owner{SessionID: "s-3"})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, cart.UnknownProductName, lines[0].Name)
	assert.False(t, lines[0].Available)

	_, err = store.AddItem(ctx, cart.Owner{SessionID: "s-3"}, 42, 1)
	assert.ErrorIs(t, err, cart.ErrProductNotFound)

	_, err = store.ListItems(ctx, cart.Owner{})
	assert.ErrorIs(t, err, cart.ErrNoOwner)
}
