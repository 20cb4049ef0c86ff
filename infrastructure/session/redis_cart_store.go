// Package session 匿名访客购物车，按 session id 存放在 Redis hash 中
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"storefront/domain/cart"
	"storefront/domain/catalog"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "cart:session:"
	DefaultTTL = 7 * 24 * time.Hour
	maxWatch   = 3
)

// CartStore hash 字段为 product id，值为数量；每次写入刷新 TTL
type CartStore struct {
	client     *redis.Client
	products   catalog.Repository
	maxPerUser int
	ttl        time.Duration
}

func NewCartStore(client *redis.Client, products catalog.Repository, maxPerUser int, ttl time.Duration) *CartStore {
	if maxPerUser <= 0 {
		maxPerUser = cart.MaxPerUser
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CartStore{client: client, products: products, maxPerUser: maxPerUser, ttl: ttl}
}

func cartKey(sessionID string) string {
	return keyPrefix + sessionID
}

func requireSession(owner cart.Owner) error {
	if owner.SessionID == "" {
		return cart.ErrNoOwner
	}
	return nil
}

func field(productID int64) string {
	return strconv.FormatInt(productID, 10)
}

func (s *CartStore) quantities(ctx context.Context, key string) (map[int64]int, error) {
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	result := make(map[int64]int, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(v)
		if err != nil || qty <= 0 {
			continue
		}
		result[id] = qty
	}
	return result, nil
}

// ListItems 价格和名称取商品当前值，按 product id 排序
func (s *CartStore) ListItems(ctx context.Context, owner cart.Owner) ([]cart.Line, error) {
	if err := requireSession(owner); err != nil {
		return nil, err
	}
	qty, err := s.quantities(ctx, cartKey(owner.SessionID))
	if err != nil {
		return nil, err
	}
	if len(qty) == 0 {
		return []cart.Line{}, nil
	}

	ids := make([]int64, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]cart.Line, 0, len(ids))
	for _, id := range ids {
		line := cart.Line{ProductID: id, Quantity: qty[id], Name: cart.UnknownProductName}
		if p, ok := products[id]; ok {
			line.Name = p.Name
			line.UnitPrice = p.Price
			line.Available = true
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// AddItem 在 WATCH 事务内读改写，冲突时重试
func (s *CartStore) AddItem(ctx context.Context, owner cart.Owner, productID int64, quantity int) (cart.AddResult, error) {
	if err := requireSession(owner); err != nil {
		return cart.AddResult{}, err
	}
	if quantity <= 0 {
		return cart.AddResult{}, cart.ErrInvalidQuantity
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return cart.AddResult{}, cart.ErrProductNotFound
		}
		return cart.AddResult{}, err
	}

	key := cartKey(owner.SessionID)
	var result cart.AddResult
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, field(productID)).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		allowed, limit, err := cart.Allowance(quantity, product.Quantity, current, s.maxPerUser)
		if err != nil {
			return err
		}
		next := current + allowed

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field(productID), next)
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = cart.NewAddResult(productID, quantity, allowed, next, limit)
		return nil
	}

	for i := 0; i < maxWatch; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return result, err
		}
	}
	return cart.AddResult{}, fmt.Errorf("session cart busy: %w", err)
}

func (s *CartStore) DecrementItem(ctx context.Context, owner cart.Owner, productID int64, amount int) (int, error) {
	if err := requireSession(owner); err != nil {
		return 0, err
	}
	key := cartKey(owner.SessionID)

	var next int
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, field(productID)).Int()
		if errors.Is(err, redis.Nil) {
			next = 0
			return nil
		}
		if err != nil {
			return err
		}
		next = cart.ClampDecrement(current, amount)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == 0 {
				pipe.HDel(ctx, key, field(productID))
			} else {
				pipe.HSet(ctx, key, field(productID), next)
			}
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxWatch; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return next, err
		}
	}
	return 0, fmt.Errorf("session cart busy: %w", err)
}

func (s *CartStore) RemoveItem(ctx context.Context, owner cart.Owner, productID int64) error {
	if err := requireSession(owner); err != nil {
		return err
	}
	if err := s.client.HDel(ctx, cartKey(owner.SessionID), field(productID)).Err(); err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, owner cart.Owner) error {
	if err := requireSession(owner); err != nil {
		return err
	}
	if err := s.client.Del(ctx, cartKey(owner.SessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

var _ cart.Store = (*CartStore)(nil)
