// Package stake provides the HTTP handlers and business logic for
// creating pools, admitting entries, and managing accounts and
// subscriptions.
//
// All monetary values use shopspring/decimal — never float64 for money.
package stake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/chikereg22-dot/PiPredict/internal/events"
	"github.com/chikereg22-dot/PiPredict/internal/fixture"
	"github.com/chikereg22-dot/PiPredict/internal/limits"
	"github.com/chikereg22-dot/PiPredict/internal/live"
	"github.com/chikereg22-dot/PiPredict/internal/metrics"
	"github.com/chikereg22-dot/PiPredict/internal/model"
	"github.com/chikereg22-dot/PiPredict/internal/store"
)

// EligibilityFunc decides whether a user may enter pools. Supplied by an
// external collaborator (premium status lookup); nil admits everyone.
type EligibilityFunc func(ctx context.Context, userID string) (bool, error)

// PremiumEligibility returns an EligibilityFunc that admits only users
// with an unexpired premium subscription.
func PremiumEligibility(st store.Store) EligibilityFunc {
	return func(ctx context.Context, userID string) (bool, error) {
		u, err := st.GetUser(ctx, userID)
		if errors.Is(err, store.ErrUserNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return u.Premium && u.PremiumUntil.After(time.Now().UTC()), nil
	}
}

// Service handles pool and account operations. Atomicity of money
// movement lives in the store's compound operations; the service only
// validates, orchestrates, and reports.
type Service struct {
	store       store.Store
	eligibility EligibilityFunc
	limiter     *limits.StakeLimiter
	hub         *live.Hub         // optional WebSocket hub for real-time broadcasts
	publisher   *events.Publisher // optional Kafka publisher

	subPrice decimal.Decimal
	subTerm  time.Duration
}

// NewService creates a new stake service. Pass nil for eligibility to
// admit everyone, and nil for hub/publisher if broadcasting is not
// needed.
func NewService(st store.Store, eligibility EligibilityFunc, limiter *limits.StakeLimiter, hub *live.Hub, publisher *events.Publisher) *Service {
	return &Service{
		store:       st,
		eligibility: eligibility,
		limiter:     limiter,
		hub:         hub,
		publisher:   publisher,
		subPrice:    decimal.NewFromInt(10),   // default subscription price
		subTerm:     30 * 24 * time.Hour,      // default subscription term
	}
}

// SetSubscriptionPrice overrides the default subscription price.
func (s *Service) SetSubscriptionPrice(price decimal.Decimal) {
	s.subPrice = price
}

// --- Request/Response types ---

// CreatePoolRequest is the JSON body for pool creation.
type CreatePoolRequest struct {
	Sport      string    `json:"sport"`
	ExternalID string    `json:"external_id"`
	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	StartsAt   time.Time `json:"starts_at"`
}

// JoinRequest is the JSON body for POST /pools/{poolID}/join.
type JoinRequest struct {
	UserID      string          `json:"user_id"`
	DisplayName string          `json:"display_name,omitempty"`
	Prediction  string          `json:"prediction"`
	Fee         decimal.Decimal `json:"fee"`
}

// JoinResponse is the JSON body returned from a successful join.
type JoinResponse struct {
	PoolID     string          `json:"pool_id"`
	UserID     string          `json:"user_id"`
	Prediction string          `json:"prediction"`
	Fee        decimal.Decimal `json:"fee"`
	PoolTotal  decimal.Decimal `json:"pool_total"`
	Balance    decimal.Decimal `json:"balance"`
}

// DepositRequest is the JSON body for POST /users/{userID}/deposit.
type DepositRequest struct {
	DisplayName string          `json:"display_name,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// SubscribeRequest is the JSON body for POST /users/{userID}/subscribe.
type SubscribeRequest struct {
	Code string `json:"code,omitempty"`
}

// SubscribeResponse is the JSON body returned from a subscription.
type SubscribeResponse struct {
	UserID       string          `json:"user_id"`
	Charged      decimal.Decimal `json:"charged"`
	Balance      decimal.Decimal `json:"balance"`
	PremiumUntil time.Time       `json:"premium_until"`
}

// --- HTTP Handlers ---

// CreatePool handles POST /api/v1/pools
func (s *Service) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req CreatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id := fixture.PoolID(req.Sport, req.ExternalID)
	if _, err := fixture.ParsePoolID(id); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.HomeTeam == "" || req.AwayTeam == "" {
		writeError(w, "home_team and away_team are required", http.StatusBadRequest)
		return
	}
	if req.StartsAt.IsZero() {
		writeError(w, "starts_at is required", http.StatusBadRequest)
		return
	}

	pool := &model.Pool{
		ID:        id,
		Sport:     req.Sport,
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		StartsAt:  req.StartsAt.UTC(),
		Outcomes:  fixture.Outcomes(req.Sport),
		State:     model.PoolPending,
		Total:     decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreatePool(r.Context(), pool); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("pool created",
		"id", pool.ID,
		"sport", pool.Sport,
		"home", pool.HomeTeam,
		"away", pool.AwayTeam,
		"starts_at", pool.StartsAt,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(pool)
}

// GetPool handles GET /api/v1/pools/{poolID}
func (s *Service) GetPool(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolID")

	pool, err := s.store.GetPool(r.Context(), poolID)
	if err != nil {
		writeError(w, "pool not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pool)
}

// ListPools handles GET /api/v1/pools
// Returns all pools, optionally filtered by ?sport=<tag>.
func (s *Service) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.store.ListPools(r.Context())
	if err != nil {
		writeError(w, "failed to list pools", http.StatusInternalServerError)
		return
	}
	if pools == nil {
		pools = []model.Pool{}
	}

	if sport := r.URL.Query().Get("sport"); sport != "" {
		var filtered []model.Pool
		for _, p := range pools {
			if p.Sport == sport {
				filtered = append(filtered, p)
			}
		}
		if filtered == nil {
			filtered = []model.Pool{}
		}
		pools = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pools)
}

// Join handles POST /api/v1/pools/{poolID}/join
// Admits a stake: debits the fee and appends the entry as one atomic unit.
func (s *Service) Join(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolID")

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if !req.Fee.IsPositive() {
		metrics.EntryRejections.WithLabelValues("invalid_amount").Inc()
		writeError(w, "fee must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Preconditions checked in order: pool exists, pool open, prediction
	// valid, caller eligible, stake within limits. The store re-checks
	// state, duplicates, and funds inside the atomic unit.
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		metrics.EntryRejections.WithLabelValues("pool_not_found").Inc()
		writeError(w, "pool not found: "+poolID, http.StatusNotFound)
		return
	}
	if pool.State != model.PoolPending {
		metrics.EntryRejections.WithLabelValues("pool_closed").Inc()
		writeError(w, "pool is not open for entries", http.StatusConflict)
		return
	}
	if !pool.HasOutcome(req.Prediction) {
		metrics.EntryRejections.WithLabelValues("invalid_prediction").Inc()
		writeError(w, "prediction must be one of the pool's outcome labels", http.StatusBadRequest)
		return
	}

	if s.eligibility != nil {
		ok, err := s.eligibility(ctx, req.UserID)
		if err != nil {
			writeError(w, "failed to check eligibility", http.StatusInternalServerError)
			return
		}
		if !ok {
			metrics.EntryRejections.WithLabelValues("not_eligible").Inc()
			writeError(w, "user is not eligible to enter pools", http.StatusForbidden)
			return
		}
	}

	if s.limiter != nil {
		open, err := s.store.OpenStakeBySport(ctx, req.UserID)
		if err != nil {
			writeError(w, "failed to check stake limits", http.StatusInternalServerError)
			return
		}
		if err := s.limiter.CheckStake(pool.Sport, req.Fee, open); err != nil {
			metrics.EntryRejections.WithLabelValues("stake_limit").Inc()
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
	}

	if _, err := s.store.GetOrCreateUser(ctx, req.UserID, req.DisplayName); err != nil {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	total, err := s.store.AddEntry(ctx, poolID, model.Entry{
		UserID:     req.UserID,
		Prediction: req.Prediction,
		Fee:        req.Fee,
		PlacedAt:   time.Now().UTC(),
	})
	if err != nil {
		metrics.EntryRejections.WithLabelValues(rejectionReason(err)).Inc()
		writeError(w, err.Error(), statusFor(err))
		return
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	metrics.EntriesTotal.WithLabelValues(pool.Sport).Inc()

	slog.Info("entry admitted",
		"pool", poolID,
		"user", req.UserID,
		"prediction", req.Prediction,
		"fee", req.Fee.String(),
		"pool_total", total.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(live.Message{
			Type:   "entry_placed",
			PoolID: poolID,
			Sport:  pool.Sport,
			UserID: req.UserID,
			Total:  total.String(),
		})
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEntryPlaced(ctx, events.EntryPlaced{
			PoolID:     poolID,
			Sport:      pool.Sport,
			UserID:     req.UserID,
			Prediction: req.Prediction,
			Fee:        req.Fee.String(),
			PoolTotal:  total.String(),
		}); err != nil {
			slog.Warn("failed to publish entry event", "pool", poolID, "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(JoinResponse{
		PoolID:     poolID,
		UserID:     req.UserID,
		Prediction: req.Prediction,
		Fee:        req.Fee,
		PoolTotal:  total,
		Balance:    user.Balance,
	})
}

// GetAccount handles GET /api/v1/users/{userID}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// GetJournal handles GET /api/v1/users/{userID}/ledger
func (s *Service) GetJournal(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entries, err := s.store.JournalByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// Deposit handles POST /api/v1/users/{userID}/deposit
// Credits spendable balance. Payment-network capture happens upstream;
// this endpoint is the narrow interface the engine exposes for it.
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetOrCreateUser(ctx, userID, req.DisplayName); err != nil {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	balance, err := s.store.Credit(ctx, userID, req.Amount, "deposit")
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("deposit credited", "user", userID, "amount", req.Amount.String(), "balance", balance.String())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]decimal.Decimal{"balance": balance})
}

// Subscribe handles POST /api/v1/users/{userID}/subscribe
// Debits the subscription price (discounted if a valid reward code is
// supplied, consuming it) and sets the premium flag and expiry.
func (s *Service) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, charged, err := s.store.ApplySubscription(r.Context(), userID, req.Code, s.subPrice, s.subTerm)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("subscription applied",
		"user", userID,
		"charged", charged.String(),
		"code_used", req.Code != "",
		"premium_until", user.PremiumUntil,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SubscribeResponse{
		UserID:       userID,
		Charged:      charged,
		Balance:      user.Balance,
		PremiumUntil: user.PremiumUntil,
	})
}

// --- Error mapping ---

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrPoolNotFound), errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidAmount), errors.Is(err, store.ErrInvalidOutcome),
		errors.Is(err, store.ErrCodeInvalid):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, store.ErrPoolNotPending), errors.Is(err, store.ErrPoolExists),
		errors.Is(err, store.ErrDuplicateEntry), errors.Is(err, store.ErrOutcomeMismatch),
		errors.Is(err, store.ErrPoolNotResolved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// rejectionReason maps an admission error onto a metrics label.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, store.ErrDuplicateEntry):
		return "duplicate_entry"
	case errors.Is(err, store.ErrPoolNotPending):
		return "pool_closed"
	default:
		return "other"
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
