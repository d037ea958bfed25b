package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/chikereg22-dot/PiPredict/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for user and pool reads. Writes go to the primary store and
// invalidate the affected keys; reads check Redis first then fall back to
// the primary. Compound atomic operations are never served from cache.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	data, err := s.rdb.Get(ctx, userKey(id)).Bytes()
	if err == nil {
		var u model.User
		if json.Unmarshal(data, &u) == nil {
			return &u, nil
		}
	}

	u, err := s.primary.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheUser(ctx, u)
	return u, nil
}

func (s *CachedStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	data, err := s.rdb.Get(ctx, poolKey(id)).Bytes()
	if err == nil {
		var p model.Pool
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePool(ctx, p)
	return p, nil
}

// --- Writes (primary first, then invalidate) ---

func (s *CachedStore) GetOrCreateUser(ctx context.Context, id, displayName string) (*model.User, error) {
	u, err := s.primary.GetOrCreateUser(ctx, id, displayName)
	if err != nil {
		return nil, err
	}
	s.cacheUser(ctx, u)
	return u, nil
}

func (s *CachedStore) Credit(ctx context.Context, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error) {
	newBalance, err := s.primary.Credit(ctx, userID, amount, ref)
	if err != nil {
		return decimal.Zero, err
	}
	s.rdb.Del(ctx, userKey(userID))
	return newBalance, nil
}

func (s *CachedStore) Debit(ctx context.Context, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error) {
	newBalance, err := s.primary.Debit(ctx, userID, amount, ref)
	if err != nil {
		return decimal.Zero, err
	}
	s.rdb.Del(ctx, userKey(userID))
	return newBalance, nil
}

func (s *CachedStore) CreatePool(ctx context.Context, p *model.Pool) error {
	if err := s.primary.CreatePool(ctx, p); err != nil {
		return err
	}
	s.cachePool(ctx, p)
	return nil
}

func (s *CachedStore) AddEntry(ctx context.Context, poolID string, entry model.Entry) (decimal.Decimal, error) {
	total, err := s.primary.AddEntry(ctx, poolID, entry)
	if err != nil {
		return decimal.Zero, err
	}
	s.rdb.Del(ctx, poolKey(poolID), userKey(entry.UserID))
	return total, nil
}

func (s *CachedStore) ResolvePool(ctx context.Context, poolID, outcome string) error {
	if err := s.primary.ResolvePool(ctx, poolID, outcome); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey(poolID))
	return nil
}

func (s *CachedStore) SettlePool(ctx context.Context, receipt *model.SettlementReceipt) (*model.SettlementReceipt, bool, error) {
	stored, applied, err := s.primary.SettlePool(ctx, receipt)
	if err != nil {
		return nil, false, err
	}
	if applied {
		keys := []string{poolKey(receipt.PoolID)}
		for _, w := range receipt.Winners {
			keys = append(keys, userKey(w))
		}
		s.rdb.Del(ctx, keys...)
	}
	return stored, applied, nil
}

func (s *CachedStore) ApplySubscription(ctx context.Context, userID, code string, basePrice decimal.Decimal, term time.Duration) (*model.User, decimal.Decimal, error) {
	u, charged, err := s.primary.ApplySubscription(ctx, userID, code, basePrice, term)
	if err != nil {
		return nil, decimal.Zero, err
	}
	s.rdb.Del(ctx, userKey(userID))
	s.cacheUser(ctx, u)
	return u, charged, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) JournalByUser(ctx context.Context, userID string) ([]model.JournalEntry, error) {
	return s.primary.JournalByUser(ctx, userID)
}

func (s *CachedStore) OpenStakeBySport(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	return s.primary.OpenStakeBySport(ctx, userID)
}

func (s *CachedStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.primary.ListPools(ctx)
}

func (s *CachedStore) ListDuePools(ctx context.Context, before time.Time) ([]model.Pool, error) {
	return s.primary.ListDuePools(ctx, before)
}

// --- Cache helpers ---

func (s *CachedStore) cacheUser(ctx context.Context, u *model.User) {
	if data, err := json.Marshal(u); err == nil {
		s.rdb.Set(ctx, userKey(u.ID), data, s.ttl)
	}
}

func (s *CachedStore) cachePool(ctx context.Context, p *model.Pool) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, poolKey(p.ID), data, s.ttl)
	}
}

func userKey(id string) string { return fmt.Sprintf("user:%s", id) }
func poolKey(id string) string { return fmt.Sprintf("pool:%s", id) }
