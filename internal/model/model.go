// Package model defines the core domain types shared across the engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolState is the resolution state of an event pool. Transitions are
// one-way: pending → resolved → settled.
type PoolState string

const (
	// PoolPending means the event has not concluded; entries are open.
	PoolPending PoolState = "pending"

	// PoolResolved means the outcome is known but payouts have not been
	// applied yet.
	PoolResolved PoolState = "resolved"

	// PoolSettled means payouts have been applied. Terminal.
	PoolSettled PoolState = "settled"
)

// Journal entry kinds.
const (
	JournalDebit  = "debit"
	JournalCredit = "credit"
)

// RewardDiscountPercent is the fixed discount carried by every reward
// code issued on a win.
const RewardDiscountPercent = 10

// User is a player account. Created on first reference, never deleted.
type User struct {
	ID           string          `json:"id" db:"id"`
	DisplayName  string          `json:"display_name" db:"display_name"`
	Balance      decimal.Decimal `json:"balance" db:"balance"` // spendable, never negative
	Premium      bool            `json:"premium" db:"premium"`
	PremiumUntil time.Time       `json:"premium_until,omitempty" db:"premium_until"`
	Wins         int             `json:"wins" db:"wins"`
	RewardCodes  []RewardCode    `json:"reward_codes"` // unredeemed only
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// RewardCode is a single-use discount token bound to one user. Issued by
// settlement on a win, consumed by the subscription flow.
type RewardCode struct {
	Code     string    `json:"code" db:"code"`
	UserID   string    `json:"user_id" db:"user_id"`
	Percent  int       `json:"percent" db:"percent"`
	IssuedAt time.Time `json:"issued_at" db:"issued_at"`
}

// Entry is one user's stake against one pool. Immutable once recorded.
type Entry struct {
	UserID     string          `json:"user_id" db:"user_id"`
	Prediction string          `json:"prediction" db:"prediction"` // one of the pool's outcome labels
	Fee        decimal.Decimal `json:"fee" db:"fee"`
	PlacedAt   time.Time       `json:"placed_at" db:"placed_at"`
}

// Pool is the aggregated stake for one sporting event.
// Invariant: Total always equals the sum of entry fees.
type Pool struct {
	ID        string             `json:"id" db:"id"` // {SPORT}-{externalID}
	Sport     string             `json:"sport" db:"sport"`
	HomeTeam  string             `json:"home_team" db:"home_team"`
	AwayTeam  string             `json:"away_team" db:"away_team"`
	StartsAt  time.Time          `json:"starts_at" db:"starts_at"`
	Outcomes  []string           `json:"outcomes"` // valid prediction labels
	State     PoolState          `json:"state" db:"state"`
	Outcome   string             `json:"outcome,omitempty" db:"outcome"` // set once resolved
	Total     decimal.Decimal    `json:"total" db:"total"`
	Entries   []Entry            `json:"entries"`
	Receipt   *SettlementReceipt `json:"receipt,omitempty"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}

// HasOutcome reports whether label is one of the pool's valid outcome
// labels.
func (p *Pool) HasOutcome(label string) bool {
	for _, o := range p.Outcomes {
		if o == label {
			return true
		}
	}
	return false
}

// EntryFor returns the entry placed by userID, or nil.
func (p *Pool) EntryFor(userID string) *Entry {
	for i := range p.Entries {
		if p.Entries[i].UserID == userID {
			return &p.Entries[i]
		}
	}
	return nil
}

// SettlementReceipt is the durable record of a settlement. It is written
// exactly once per pool and replayed verbatim on idempotent re-settles.
// Invariant: HouseCut + Payout×len(Winners) + Remainder == Total.
type SettlementReceipt struct {
	PoolID    string          `json:"pool_id" db:"pool_id"`
	Outcome   string          `json:"outcome" db:"outcome"`
	Total     decimal.Decimal `json:"total" db:"total"`
	HouseCut  decimal.Decimal `json:"house_cut" db:"house_cut"`
	Payout    decimal.Decimal `json:"payout" db:"payout"` // per winner
	Remainder decimal.Decimal `json:"remainder" db:"remainder"`
	Winners   []string        `json:"winners"` // user IDs credited
	SettledAt time.Time       `json:"settled_at" db:"settled_at"`
}

// JournalEntry is an immutable record of one balance movement.
// Once created, these are never modified or deleted.
type JournalEntry struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Kind      string          `json:"kind" db:"kind"` // "debit" or "credit"
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Reference string          `json:"reference" db:"reference"` // pool ID, "deposit", "subscription"
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}
