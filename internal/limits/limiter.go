// Package limits enforces stake limits on entry admission.
//
// Two tiers: a cap on the fee of any single entry, and a cap on a
// user's aggregate open stake across all unsettled pools of the same
// sport. The second tier bounds correlated losses when one real-world
// round of fixtures resolves at once.
package limits

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrStakeTooLarge is returned when a single entry fee exceeds the
	// per-entry maximum.
	ErrStakeTooLarge = errors.New("limits: entry fee exceeds per-entry maximum")

	// ErrOpenStakeExceeded is returned when an entry would push a user's
	// open stake within one sport beyond the aggregate maximum.
	ErrOpenStakeExceeded = errors.New("limits: open stake limit for sport exceeded")
)

// StakeLimiter enforces per-entry and per-sport aggregate stake limits.
type StakeLimiter struct {
	// MaxPerEntry is the maximum fee for any single entry.
	MaxPerEntry decimal.Decimal

	// MaxOpenPerSport is the maximum aggregate stake a user may have at
	// risk across unsettled pools of one sport.
	MaxOpenPerSport decimal.Decimal
}

// NewStakeLimiter creates a limiter with the given per-entry and
// per-sport limits.
func NewStakeLimiter(maxPerEntry, maxOpenPerSport decimal.Decimal) *StakeLimiter {
	return &StakeLimiter{
		MaxPerEntry:     maxPerEntry,
		MaxOpenPerSport: maxOpenPerSport,
	}
}

// CheckStake validates whether an entry respects stake limits.
//
// Parameters:
//   - sport: sport tag of the pool being joined
//   - fee: the proposed entry fee
//   - openBySport: map of sport tag → the user's current open stake
//
// Returns nil if the entry is within limits, or an error describing the
// violation.
func (l *StakeLimiter) CheckStake(sport string, fee decimal.Decimal, openBySport map[string]decimal.Decimal) error {
	if fee.GreaterThan(l.MaxPerEntry) {
		return ErrStakeTooLarge
	}

	open := openBySport[sport]
	if open.Add(fee).GreaterThan(l.MaxOpenPerSport) {
		return ErrOpenStakeExceeded
	}

	return nil
}
