// Package payout implements the deterministic commission-and-split
// arithmetic applied when a pool settles.
//
// Rules, chosen so houseCut + payout×winners never exceeds the pool total:
//   - The house cut is round-half-up of total × rate, to the smallest
//     ledger unit (cents).
//   - The per-winner payout is the floor of the distributable amount
//     divided by the winner count, to the smallest ledger unit.
//   - Any remainder from the floor division is retained by the house.
//
// All monetary values use shopspring/decimal — never float64 for money.
package payout

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRate is returned when the commission rate is not in [0, 1).
	ErrInvalidRate = errors.New("payout: commission rate must be in [0, 1)")

	// ErrNegativeTotal is returned for a negative pool total.
	ErrNegativeTotal = errors.New("payout: pool total must not be negative")
)

// Scale is the number of decimal places of the ledger's smallest unit.
const Scale int32 = 2

var one = decimal.NewFromInt(1)

// Split is the result of dividing a settled pool between the house and
// the winners. Invariant: HouseCut + Payout×winners + Remainder == total.
type Split struct {
	HouseCut  decimal.Decimal `json:"house_cut"`
	Payout    decimal.Decimal `json:"payout"` // per winner; zero when no winners
	Remainder decimal.Decimal `json:"remainder"`
}

// Compute splits a pool total between the house and `winners` equal
// payouts. With zero winners the entire total stays with the house:
// the commission as HouseCut and the rest as Remainder.
func Compute(total, rate decimal.Decimal, winners int) (Split, error) {
	if total.IsNegative() {
		return Split{}, ErrNegativeTotal
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return Split{}, ErrInvalidRate
	}

	// decimal.Round is round-half-away-from-zero, which for non-negative
	// amounts is the required round-half-up.
	houseCut := total.Mul(rate).Round(Scale)
	distributable := total.Sub(houseCut)

	if winners == 0 {
		return Split{
			HouseCut:  houseCut,
			Payout:    decimal.Zero,
			Remainder: distributable,
		}, nil
	}

	n := decimal.NewFromInt(int64(winners))
	perWinner := distributable.Div(n).RoundDown(Scale)
	remainder := distributable.Sub(perWinner.Mul(n))

	return Split{
		HouseCut:  houseCut,
		Payout:    perWinner,
		Remainder: remainder,
	}, nil
}

// Retained returns the amount the house keeps in total.
func (s Split) Retained() decimal.Decimal {
	return s.HouseCut.Add(s.Remainder)
}
