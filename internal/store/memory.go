package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chikereg22-dot/PiPredict/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. A single mutex guards users, pools, and the journal,
// so every compound operation is trivially atomic.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*model.User
	pools   map[string]*model.Pool
	journal []model.JournalEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*model.User),
		pools: make(map[string]*model.Pool),
	}
}

// --- User accounts and ledger ---

func (s *MemoryStore) GetOrCreateUser(_ context.Context, id, displayName string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		u = &model.User{
			ID:          id,
			DisplayName: displayName,
			Balance:     decimal.Zero,
			CreatedAt:   time.Now().UTC(),
		}
		s.users[id] = u
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) Credit(_ context.Context, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	s.creditLocked(u, amount, ref)
	return u.Balance, nil
}

func (s *MemoryStore) Debit(_ context.Context, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err := s.debitLocked(u, amount, ref); err != nil {
		return decimal.Zero, err
	}
	return u.Balance, nil
}

func (s *MemoryStore) JournalByUser(_ context.Context, userID string) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.JournalEntry
	for _, e := range s.journal {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) OpenStakeBySport(_ context.Context, userID string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make(map[string]decimal.Decimal)
	for _, p := range s.pools {
		if p.State == model.PoolSettled {
			continue
		}
		for _, e := range p.Entries {
			if e.UserID == userID {
				open[p.Sport] = open[p.Sport].Add(e.Fee)
			}
		}
	}
	return open, nil
}

// --- Pools ---

func (s *MemoryStore) CreatePool(_ context.Context, p *model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrPoolExists, p.ID)
	}
	s.pools[p.ID] = clonePool(p)
	return nil
}

func (s *MemoryStore) GetPool(_ context.Context, id string) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return clonePool(p), nil
}

func (s *MemoryStore) ListPools(_ context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]model.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, *clonePool(p))
	}
	sort.Slice(pools, func(i, j int) bool {
		return pools[i].CreatedAt.After(pools[j].CreatedAt)
	})
	return pools, nil
}

func (s *MemoryStore) ListDuePools(_ context.Context, before time.Time) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []model.Pool
	for _, p := range s.pools {
		if p.State != model.PoolSettled && p.StartsAt.Before(before) {
			due = append(due, *clonePool(p))
		}
	}
	return due, nil
}

func (s *MemoryStore) AddEntry(_ context.Context, poolID string, entry model.Entry) (decimal.Decimal, error) {
	if !entry.Fee.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	if p.State != model.PoolPending {
		return decimal.Zero, fmt.Errorf("%w: %s is %s", ErrPoolNotPending, poolID, p.State)
	}
	if p.EntryFor(entry.UserID) != nil {
		return decimal.Zero, fmt.Errorf("%w: %s in %s", ErrDuplicateEntry, entry.UserID, poolID)
	}

	u, ok := s.users[entry.UserID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUserNotFound, entry.UserID)
	}

	// Debit and append under the same lock: both happen or neither does.
	if err := s.debitLocked(u, entry.Fee, poolID); err != nil {
		return decimal.Zero, err
	}
	p.Entries = append(p.Entries, entry)
	p.Total = p.Total.Add(entry.Fee)

	return p.Total, nil
}

func (s *MemoryStore) ResolvePool(_ context.Context, poolID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	if !p.HasOutcome(outcome) {
		return fmt.Errorf("%w: %s for %s", ErrInvalidOutcome, outcome, poolID)
	}

	switch p.State {
	case model.PoolPending:
		p.State = model.PoolResolved
		p.Outcome = outcome
		return nil
	case model.PoolResolved, model.PoolSettled:
		if p.Outcome != outcome {
			return fmt.Errorf("%w: %s is %s, got %s", ErrOutcomeMismatch, poolID, p.Outcome, outcome)
		}
		return nil
	}
	return fmt.Errorf("store: pool %s in unknown state %q", poolID, p.State)
}

func (s *MemoryStore) SettlePool(_ context.Context, receipt *model.SettlementReceipt) (*model.SettlementReceipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[receipt.PoolID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrPoolNotFound, receipt.PoolID)
	}

	switch p.State {
	case model.PoolSettled:
		// Idempotent replay: return the durable receipt, mutate nothing.
		return cloneReceipt(p.Receipt), false, nil
	case model.PoolPending:
		return nil, false, fmt.Errorf("%w: %s", ErrPoolNotResolved, receipt.PoolID)
	}

	if p.Outcome != receipt.Outcome {
		return nil, false, fmt.Errorf("%w: %s is %s, receipt says %s",
			ErrOutcomeMismatch, receipt.PoolID, p.Outcome, receipt.Outcome)
	}

	// Validate every winner before mutating anything: the settlement is
	// all-or-nothing, so a corrupted receipt must not leave a partial
	// commit behind.
	for _, winnerID := range receipt.Winners {
		if _, ok := s.users[winnerID]; !ok {
			return nil, false, fmt.Errorf("%w: winner %s", ErrUserNotFound, winnerID)
		}
	}

	for _, winnerID := range receipt.Winners {
		u := s.users[winnerID]
		if receipt.Payout.IsPositive() {
			s.creditLocked(u, receipt.Payout, receipt.PoolID)
		}
		u.Wins++
		u.RewardCodes = append(u.RewardCodes, model.RewardCode{
			Code:     rewardCodeFor(winnerID, u.Wins),
			UserID:   winnerID,
			Percent:  model.RewardDiscountPercent,
			IssuedAt: receipt.SettledAt,
		})
	}

	p.State = model.PoolSettled
	p.Receipt = cloneReceipt(receipt)

	return cloneReceipt(receipt), true, nil
}

// --- Subscription ---

func (s *MemoryStore) ApplySubscription(_ context.Context, userID, code string, basePrice decimal.Decimal, term time.Duration) (*model.User, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	price := basePrice
	codeIdx := -1
	if code != "" {
		for i, rc := range u.RewardCodes {
			if rc.Code == code {
				codeIdx = i
				price = DiscountedPrice(basePrice, rc.Percent)
				break
			}
		}
		if codeIdx < 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrCodeInvalid, code)
		}
	}

	if err := s.debitLocked(u, price, "subscription"); err != nil {
		return nil, decimal.Zero, err
	}
	if codeIdx >= 0 {
		u.RewardCodes = append(u.RewardCodes[:codeIdx], u.RewardCodes[codeIdx+1:]...)
	}

	now := time.Now().UTC()
	base := now
	if u.Premium && u.PremiumUntil.After(now) {
		base = u.PremiumUntil
	}
	u.Premium = true
	u.PremiumUntil = base.Add(term)

	return cloneUser(u), price, nil
}

// --- Internal helpers (callers hold s.mu) ---

func (s *MemoryStore) creditLocked(u *model.User, amount decimal.Decimal, ref string) {
	u.Balance = u.Balance.Add(amount)
	s.journal = append(s.journal, model.JournalEntry{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Kind:      model.JournalCredit,
		Amount:    amount,
		Reference: ref,
		Timestamp: time.Now().UTC(),
	})
}

func (s *MemoryStore) debitLocked(u *model.User, amount decimal.Decimal, ref string) error {
	if u.Balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, u.Balance, amount)
	}
	u.Balance = u.Balance.Sub(amount)
	s.journal = append(s.journal, model.JournalEntry{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Kind:      model.JournalDebit,
		Amount:    amount,
		Reference: ref,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func rewardCodeFor(userID string, wins int) string {
	return fmt.Sprintf("WIN%d-%s-%d", model.RewardDiscountPercent, userID, wins)
}

// Store copies to avoid external mutation.

func cloneUser(u *model.User) *model.User {
	c := *u
	c.RewardCodes = append([]model.RewardCode(nil), u.RewardCodes...)
	return &c
}

func clonePool(p *model.Pool) *model.Pool {
	c := *p
	c.Outcomes = append([]string(nil), p.Outcomes...)
	c.Entries = append([]model.Entry(nil), p.Entries...)
	c.Receipt = cloneReceipt(p.Receipt)
	return &c
}

func cloneReceipt(r *model.SettlementReceipt) *model.SettlementReceipt {
	if r == nil {
		return nil
	}
	c := *r
	c.Winners = append([]string(nil), r.Winners...)
	return &c
}
