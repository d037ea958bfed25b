// Package fixture handles pool identity: parsing and validating pool IDs
// derived from a sport tag and an external fixture ID, and the set of
// valid outcome labels per sport.
package fixture

import (
	"errors"
	"fmt"
	"regexp"
)

// Supported sport tags.
const (
	SportSoccer     = "SOCCER"
	SportBasketball = "BASKETBALL"
	SportTennis     = "TENNIS"
	SportCricket    = "CRICKET"
)

// Outcome labels. HOME/AWAY apply to every sport; DRAW only where the
// sport allows a drawn result.
const (
	OutcomeHome = "HOME"
	OutcomeAway = "AWAY"
	OutcomeDraw = "DRAW"
)

var validSports = map[string]bool{
	SportSoccer:     true,
	SportBasketball: true,
	SportTennis:     true,
	SportCricket:    true,
}

// drawSports lists sports whose fixtures can end without a winner.
var drawSports = map[string]bool{
	SportSoccer:  true,
	SportCricket: true,
}

// poolIDRegex matches: {SPORT}-{externalID}
// Example: SOCCER-883412
var poolIDRegex = regexp.MustCompile(`^([A-Z]+)-([0-9]+)$`)

var (
	ErrInvalidPoolID = errors.New("fixture: invalid pool ID format")
	ErrInvalidSport  = errors.New("fixture: unsupported sport")
)

// Fixture represents a parsed pool identifier.
type Fixture struct {
	PoolID     string `json:"pool_id"`
	Sport      string `json:"sport"`
	ExternalID string `json:"external_id"`
}

// PoolID derives the canonical pool identifier for a fixture.
func PoolID(sport, externalID string) string {
	return fmt.Sprintf("%s-%s", sport, externalID)
}

// ParsePoolID parses and validates a pool identifier string.
// Format: {SPORT}-{externalID}
func ParsePoolID(id string) (*Fixture, error) {
	matches := poolIDRegex.FindStringSubmatch(id)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected {SPORT}-{externalID})", ErrInvalidPoolID, id)
	}

	sport := matches[1]
	if !validSports[sport] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSport, sport)
	}

	return &Fixture{
		PoolID:     id,
		Sport:      sport,
		ExternalID: matches[2],
	}, nil
}

// Outcomes returns the valid prediction labels for a sport.
func Outcomes(sport string) []string {
	if drawSports[sport] {
		return []string{OutcomeHome, OutcomeAway, OutcomeDraw}
	}
	return []string{OutcomeHome, OutcomeAway}
}
