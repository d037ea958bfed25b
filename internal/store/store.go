// Package store defines the persistence interface for the engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Compound operations (AddEntry, SettlePool, ApplySubscription) are the
// atomic units of the system: each either applies every mutation it names
// or none of them. Callers never stitch a debit and a pool update together
// from separate calls.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chikereg22-dot/PiPredict/internal/model"
)

var (
	ErrUserNotFound      = errors.New("store: user not found")
	ErrPoolNotFound      = errors.New("store: pool not found")
	ErrPoolExists        = errors.New("store: pool already exists")
	ErrPoolNotPending    = errors.New("store: pool is not open for entries")
	ErrPoolNotResolved   = errors.New("store: pool outcome is not resolved")
	ErrDuplicateEntry    = errors.New("store: user already entered this pool")
	ErrInsufficientFunds = errors.New("store: insufficient funds")
	ErrInvalidAmount     = errors.New("store: amount must be positive")
	ErrInvalidOutcome    = errors.New("store: outcome is not a valid label for this pool")
	ErrOutcomeMismatch   = errors.New("store: pool already resolved to a different outcome")
	ErrCodeInvalid       = errors.New("store: reward code invalid or already used")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- User accounts and ledger ---

	// GetOrCreateUser returns the user, creating the account on first
	// reference with a zero balance.
	GetOrCreateUser(ctx context.Context, id, displayName string) (*model.User, error)

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// Credit atomically adds amount to the user's balance and appends a
	// journal entry. Returns the new balance.
	Credit(ctx context.Context, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error)

	// Debit atomically subtracts amount from the user's balance and
	// appends a journal entry. Fails with ErrInsufficientFunds, leaving
	// the balance untouched, if the balance would go negative.
	Debit(ctx context.Context, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error)

	// JournalByUser returns all balance movements for a user, oldest first.
	JournalByUser(ctx context.Context, userID string) ([]model.JournalEntry, error)

	// OpenStakeBySport returns the user's aggregate entry fees in
	// not-yet-settled pools, per sport tag.
	OpenStakeBySport(ctx context.Context, userID string) (map[string]decimal.Decimal, error)

	// --- Pools ---

	// CreatePool persists a new pool.
	CreatePool(ctx context.Context, pool *model.Pool) error

	// GetPool retrieves a pool with its entries and receipt.
	GetPool(ctx context.Context, id string) (*model.Pool, error)

	// ListPools returns all pools, newest first.
	ListPools(ctx context.Context) ([]model.Pool, error)

	// ListDuePools returns unsettled pools whose fixture started before
	// the given time.
	ListDuePools(ctx context.Context, before time.Time) ([]model.Pool, error)

	// AddEntry debits the entry fee from the user and appends the entry
	// to the pool, incrementing the pool total, as one atomic unit.
	// Returns the new pool total.
	AddEntry(ctx context.Context, poolID string, entry model.Entry) (decimal.Decimal, error)

	// ResolvePool transitions a pending pool to resolved with the given
	// outcome. Re-resolving with the same outcome is a no-op; a different
	// outcome fails with ErrOutcomeMismatch.
	ResolvePool(ctx context.Context, poolID, outcome string) error

	// SettlePool applies a settlement receipt to a resolved pool: every
	// winner is credited the per-winner payout with a win counted and a
	// reward code issued, and the pool transitions to settled, all in
	// one atomic unit. If the pool is already settled the stored receipt
	// is returned with applied=false and no mutation.
	// The returned receipt is always the durable one.
	SettlePool(ctx context.Context, receipt *model.SettlementReceipt) (*model.SettlementReceipt, bool, error)

	// --- Subscription ---

	// ApplySubscription debits the (possibly discounted) subscription
	// price, consumes the reward code if one is given, and sets the
	// premium flag and expiry as one atomic unit. Returns the updated
	// user and the amount charged.
	ApplySubscription(ctx context.Context, userID, code string, basePrice decimal.Decimal, term time.Duration) (*model.User, decimal.Decimal, error)
}

// DiscountedPrice applies a reward-code percentage discount to a price,
// rounded half-up to the ledger's smallest unit.
func DiscountedPrice(base decimal.Decimal, percent int) decimal.Decimal {
	factor := decimal.NewFromInt(int64(100 - percent)).Div(decimal.NewFromInt(100))
	return base.Mul(factor).Round(2)
}
