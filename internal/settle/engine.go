// Package settle implements outcome resolution and pool settlement.
//
// Settlement is idempotent: the first call against a resolved pool
// moves the money and stores a receipt; every later call returns the
// stored receipt without touching a balance.
package settle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/chikereg22-dot/PiPredict/internal/events"
	"github.com/chikereg22-dot/PiPredict/internal/live"
	"github.com/chikereg22-dot/PiPredict/internal/metrics"
	"github.com/chikereg22-dot/PiPredict/internal/model"
	"github.com/chikereg22-dot/PiPredict/internal/payout"
	"github.com/chikereg22-dot/PiPredict/internal/store"
)

// ErrResolutionUnavailable means the outcome source could not be
// reached or has no verdict yet. The pool stays pending; settlement
// can be retried.
var ErrResolutionUnavailable = errors.New("outcome resolution unavailable")

// ResolutionStatus reports what the outcome source knows about a pool.
type ResolutionStatus int

const (
	// StatusFinal means the outcome is known and will not change.
	StatusFinal ResolutionStatus = iota
	// StatusPending means the fixture has not finished.
	StatusPending
	// StatusUnavailable means the source could not answer.
	StatusUnavailable
)

// Resolver supplies final outcomes for pools. Implementations wrap a
// results feed; ManualFeed serves operator-entered outcomes.
type Resolver interface {
	Resolve(ctx context.Context, poolID string) (outcome string, status ResolutionStatus)
}

// ManualFeed is a Resolver backed by operator-entered outcomes.
type ManualFeed struct {
	mu       sync.RWMutex
	outcomes map[string]string
}

// NewManualFeed creates an empty manual outcome feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{outcomes: make(map[string]string)}
}

// Set records the final outcome for a pool.
func (f *ManualFeed) Set(poolID, outcome string) {
	f.mu.Lock()
	f.outcomes[poolID] = outcome
	f.mu.Unlock()
}

// Resolve returns the recorded outcome, or StatusPending if none.
func (f *ManualFeed) Resolve(_ context.Context, poolID string) (string, ResolutionStatus) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if outcome, ok := f.outcomes[poolID]; ok {
		return outcome, StatusFinal
	}
	return "", StatusPending
}

// Engine drives resolution and settlement of pools.
type Engine struct {
	store     store.Store
	resolver  Resolver          // optional; consulted when settling a pending pool
	rate      decimal.Decimal   // commission rate in [0,1)
	hub       *live.Hub         // optional
	publisher *events.Publisher // optional
}

// NewEngine creates a settlement engine with the given commission rate.
func NewEngine(st store.Store, resolver Resolver, rate decimal.Decimal, hub *live.Hub, publisher *events.Publisher) *Engine {
	return &Engine{
		store:     st,
		resolver:  resolver,
		rate:      rate,
		hub:       hub,
		publisher: publisher,
	}
}

// Resolve records the final outcome of a pool. Resolving an already
// resolved pool with the same outcome is a no-op.
func (e *Engine) Resolve(ctx context.Context, poolID, outcome string) error {
	if err := e.store.ResolvePool(ctx, poolID, outcome); err != nil {
		return err
	}

	slog.Info("pool resolved", "pool", poolID, "outcome", outcome)

	if e.hub != nil {
		e.hub.Broadcast(live.Message{
			Type:    "pool_resolved",
			PoolID:  poolID,
			Outcome: outcome,
		})
	}
	return nil
}

// Settle settles a pool. The returned bool reports whether this call
// moved money; replays of an already settled pool return the stored
// receipt with false.
//
// If the pool is still pending and a resolver is configured, it is
// consulted first. Resolver calls happen before the atomic phase, so a
// slow feed never holds a balance lock.
func (e *Engine) Settle(ctx context.Context, poolID string) (*model.SettlementReceipt, bool, error) {
	pool, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		return nil, false, err
	}

	if pool.State == model.PoolPending {
		if e.resolver == nil {
			return nil, false, store.ErrPoolNotResolved
		}
		outcome, status := e.resolver.Resolve(ctx, poolID)
		switch status {
		case StatusFinal:
			if err := e.Resolve(ctx, poolID, outcome); err != nil {
				return nil, false, err
			}
			pool, err = e.store.GetPool(ctx, poolID)
			if err != nil {
				return nil, false, err
			}
		case StatusPending:
			return nil, false, store.ErrPoolNotResolved
		default:
			return nil, false, ErrResolutionUnavailable
		}
	}

	winners := make([]string, 0)
	for _, entry := range pool.Entries {
		if entry.Prediction == pool.Outcome {
			winners = append(winners, entry.UserID)
		}
	}
	sort.Strings(winners)

	split, err := payout.Compute(pool.Total, e.rate, len(winners))
	if err != nil {
		return nil, false, err
	}

	receipt := &model.SettlementReceipt{
		PoolID:    pool.ID,
		Outcome:   pool.Outcome,
		Total:     pool.Total,
		HouseCut:  split.HouseCut,
		Payout:    split.Payout,
		Remainder: split.Remainder,
		Winners:   winners,
		SettledAt: time.Now().UTC(),
	}

	stored, applied, err := e.store.SettlePool(ctx, receipt)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return stored, false, nil
	}

	metrics.SettlementsTotal.WithLabelValues(pool.Sport).Inc()
	houseTotal, _ := stored.HouseCut.Add(stored.Remainder).Float64()
	metrics.HouseAmountTotal.Add(houseTotal)
	paid, _ := stored.Payout.Mul(decimal.NewFromInt(int64(len(stored.Winners)))).Float64()
	metrics.PayoutAmountTotal.Add(paid)

	slog.Info("pool settled",
		"pool", pool.ID,
		"outcome", stored.Outcome,
		"total", stored.Total.String(),
		"house_cut", stored.HouseCut.String(),
		"payout", stored.Payout.String(),
		"remainder", stored.Remainder.String(),
		"winners", len(stored.Winners),
	)

	if e.hub != nil {
		e.hub.Broadcast(live.Message{
			Type:    "pool_settled",
			PoolID:  pool.ID,
			Sport:   pool.Sport,
			Outcome: stored.Outcome,
			Total:   stored.Total.String(),
			Payout:  stored.Payout.String(),
			Winners: stored.Winners,
		})
	}
	if e.publisher != nil {
		if err := e.publisher.PublishPoolSettled(ctx, events.PoolSettled{
			PoolID:    pool.ID,
			Outcome:   stored.Outcome,
			Total:     stored.Total.String(),
			HouseCut:  stored.HouseCut.String(),
			Payout:    stored.Payout.String(),
			Remainder: stored.Remainder.String(),
			Winners:   stored.Winners,
		}); err != nil {
			slog.Warn("failed to publish settlement event", "pool", pool.ID, "err", err)
		}
	}

	return stored, true, nil
}

// SweepDue settles every unsettled pool whose fixture start time has
// passed. Pools the resolver cannot answer for yet are skipped and
// retried on the next sweep. Returns the number of pools settled.
func (e *Engine) SweepDue(ctx context.Context) int {
	pools, err := e.store.ListDuePools(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("sweep: failed to list due pools", "err", err)
		return 0
	}

	settled := 0
	for _, pool := range pools {
		_, applied, err := e.Settle(ctx, pool.ID)
		switch {
		case errors.Is(err, store.ErrPoolNotResolved), errors.Is(err, ErrResolutionUnavailable):
			continue
		case err != nil:
			slog.Error("sweep: settlement failed", "pool", pool.ID, "err", err)
		case applied:
			settled++
		}
	}
	return settled
}

// --- HTTP Handlers ---

// ResolveRequest is the JSON body for POST /pools/{poolID}/resolve.
type ResolveRequest struct {
	Outcome string `json:"outcome"`
}

// SettleResponse wraps a settlement receipt with whether this call
// applied it.
type SettleResponse struct {
	Applied bool                     `json:"applied"`
	Receipt *model.SettlementReceipt `json:"receipt"`
}

// HandleResolve handles POST /api/v1/pools/{poolID}/resolve
func (e *Engine) HandleResolve(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolID")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Outcome == "" {
		writeError(w, "outcome is required", http.StatusBadRequest)
		return
	}

	if err := e.Resolve(r.Context(), poolID, req.Outcome); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	pool, err := e.store.GetPool(r.Context(), poolID)
	if err != nil {
		writeError(w, "pool not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pool)
}

// HandleSettle handles POST /api/v1/pools/{poolID}/settle
// Settling an already settled pool returns 200 with the stored receipt.
func (e *Engine) HandleSettle(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolID")

	receipt, applied, err := e.Settle(r.Context(), poolID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SettleResponse{Applied: applied, Receipt: receipt})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidOutcome):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrPoolNotPending), errors.Is(err, store.ErrPoolNotResolved),
		errors.Is(err, store.ErrOutcomeMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrResolutionUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
