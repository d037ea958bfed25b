package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/chikereg22-dot/PiPredict/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// Compound operations run inside a single transaction with row locks,
// always acquiring the pool row before any user row, and user rows in
// ascending ID order.
//
// Expected tables: users, reward_codes, pools, entries, journal,
// settlements.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- User accounts and ledger ---

func (s *PostgresStore) GetOrCreateUser(ctx context.Context, id, displayName string) (*model.User, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, display_name, balance, premium, premium_until, wins, created_at)
		 VALUES ($1, $2, 0, FALSE, 'epoch', 0, $3)
		 ON CONFLICT (id) DO NOTHING`,
		id, displayName, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", id, err)
	}
	return s.GetUser(ctx, id)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := loadUser(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT code, user_id, percent, issued_at
		 FROM reward_codes WHERE user_id = $1 ORDER BY issued_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rc model.RewardCode
		if err := rows.Scan(&rc.Code, &rc.UserID, &rc.Percent, &rc.IssuedAt); err != nil {
			return nil, err
		}
		u.RewardCodes = append(u.RewardCodes, rc)
	}
	return u, rows.Err()
}

func (s *PostgresStore) Credit(ctx context.Context, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockBalance(ctx, tx, userID); err != nil {
		return decimal.Zero, err
	}

	newBalance, err := adjustBalance(ctx, tx, userID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if err := insertJournal(ctx, tx, userID, model.JournalCredit, amount, ref); err != nil {
		return decimal.Zero, err
	}

	return newBalance, tx.Commit(ctx)
}

func (s *PostgresStore) Debit(ctx context.Context, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	newBalance, err := debitTx(ctx, tx, userID, amount, ref)
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, tx.Commit(ctx)
}

func (s *PostgresStore) JournalByUser(ctx context.Context, userID string) ([]model.JournalEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, amount::TEXT, reference, ts
		 FROM journal WHERE user_id = $1 ORDER BY ts`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var amountS string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &amountS, &e.Reference, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amountS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) OpenStakeBySport(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.sport, COALESCE(SUM(e.fee), 0)::TEXT
		 FROM entries e
		 JOIN pools p ON p.id = e.pool_id
		 WHERE e.user_id = $1 AND p.state <> 'settled'
		 GROUP BY p.sport`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	open := make(map[string]decimal.Decimal)
	for rows.Next() {
		var sport, sumS string
		if err := rows.Scan(&sport, &sumS); err != nil {
			return nil, err
		}
		open[sport], _ = decimal.NewFromString(sumS)
	}
	return open, rows.Err()
}

// --- Pools ---

func (s *PostgresStore) CreatePool(ctx context.Context, p *model.Pool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pools (id, sport, home_team, away_team, starts_at, outcomes, state, outcome, total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10)`,
		p.ID, p.Sport, p.HomeTeam, p.AwayTeam, p.StartsAt,
		p.Outcomes, string(p.State), p.Outcome, p.Total.String(), p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrPoolExists, p.ID)
	}
	return err
}

func (s *PostgresStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	p, err := scanPoolRow(s.pool.QueryRow(ctx, selectPool+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
		}
		return nil, fmt.Errorf("get pool %s: %w", id, err)
	}

	if err := s.attachEntries(ctx, p); err != nil {
		return nil, err
	}
	if p.State == model.PoolSettled {
		r, err := loadReceipt(ctx, s.pool, p.ID)
		if err != nil {
			return nil, err
		}
		p.Receipt = r
	}
	return p, nil
}

func (s *PostgresStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.listPools(ctx, selectPool+` ORDER BY created_at DESC`)
}

func (s *PostgresStore) ListDuePools(ctx context.Context, before time.Time) ([]model.Pool, error) {
	return s.listPools(ctx,
		selectPool+` WHERE state <> 'settled' AND starts_at < $1 ORDER BY starts_at`, before)
}

func (s *PostgresStore) listPools(ctx context.Context, query string, args ...any) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		p, err := scanPoolRow(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range pools {
		if err := s.attachEntries(ctx, &pools[i]); err != nil {
			return nil, err
		}
	}
	return pools, nil
}

func (s *PostgresStore) AddEntry(ctx context.Context, poolID string, entry model.Entry) (decimal.Decimal, error) {
	if !entry.Fee.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	// Pool row first, then the user row. Fixed lock order everywhere.
	var state string
	err = tx.QueryRow(ctx, `SELECT state FROM pools WHERE id = $1 FOR UPDATE`, poolID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if model.PoolState(state) != model.PoolPending {
		return decimal.Zero, fmt.Errorf("%w: %s is %s", ErrPoolNotPending, poolID, state)
	}

	var dup int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM entries WHERE pool_id = $1 AND user_id = $2`,
		poolID, entry.UserID).Scan(&dup)
	if err == nil {
		return decimal.Zero, fmt.Errorf("%w: %s in %s", ErrDuplicateEntry, entry.UserID, poolID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, err
	}

	if _, err := debitTx(ctx, tx, entry.UserID, entry.Fee, poolID); err != nil {
		return decimal.Zero, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO entries (pool_id, user_id, prediction, fee, placed_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
		poolID, entry.UserID, entry.Prediction, entry.Fee.String(), entry.PlacedAt,
	); err != nil {
		return decimal.Zero, err
	}

	var totalS string
	if err := tx.QueryRow(ctx,
		`UPDATE pools SET total = total + $2::NUMERIC WHERE id = $1 RETURNING total::TEXT`,
		poolID, entry.Fee.String()).Scan(&totalS); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	total, _ := decimal.NewFromString(totalS)
	return total, nil
}

func (s *PostgresStore) ResolvePool(ctx context.Context, poolID, outcome string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var state, current string
	var outcomes []string
	err = tx.QueryRow(ctx,
		`SELECT state, outcome, outcomes FROM pools WHERE id = $1 FOR UPDATE`,
		poolID).Scan(&state, &current, &outcomes)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	if err != nil {
		return err
	}

	valid := false
	for _, o := range outcomes {
		if o == outcome {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s for %s", ErrInvalidOutcome, outcome, poolID)
	}

	if model.PoolState(state) != model.PoolPending {
		if current != outcome {
			return fmt.Errorf("%w: %s is %s, got %s", ErrOutcomeMismatch, poolID, current, outcome)
		}
		return nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE pools SET state = 'resolved', outcome = $2 WHERE id = $1`,
		poolID, outcome); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) SettlePool(ctx context.Context, receipt *model.SettlementReceipt) (*model.SettlementReceipt, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var state, outcome string
	err = tx.QueryRow(ctx,
		`SELECT state, outcome FROM pools WHERE id = $1 FOR UPDATE`,
		receipt.PoolID).Scan(&state, &outcome)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("%w: %s", ErrPoolNotFound, receipt.PoolID)
	}
	if err != nil {
		return nil, false, err
	}

	switch model.PoolState(state) {
	case model.PoolSettled:
		stored, err := loadReceipt(ctx, tx, receipt.PoolID)
		if err != nil {
			return nil, false, err
		}
		return stored, false, tx.Commit(ctx)
	case model.PoolPending:
		return nil, false, fmt.Errorf("%w: %s", ErrPoolNotResolved, receipt.PoolID)
	}

	if outcome != receipt.Outcome {
		return nil, false, fmt.Errorf("%w: %s is %s, receipt says %s",
			ErrOutcomeMismatch, receipt.PoolID, outcome, receipt.Outcome)
	}

	// Lock winner rows in ascending ID order to avoid deadlocks with
	// concurrent settlements sharing winners.
	winners := append([]string(nil), receipt.Winners...)
	sort.Strings(winners)

	for _, winnerID := range winners {
		wins, err := lockWins(ctx, tx, winnerID)
		if err != nil {
			return nil, false, err
		}
		if receipt.Payout.IsPositive() {
			if _, err := adjustBalance(ctx, tx, winnerID, receipt.Payout); err != nil {
				return nil, false, err
			}
			if err := insertJournal(ctx, tx, winnerID, model.JournalCredit, receipt.Payout, receipt.PoolID); err != nil {
				return nil, false, err
			}
		}
		wins++
		if _, err := tx.Exec(ctx,
			`UPDATE users SET wins = $2 WHERE id = $1`, winnerID, wins); err != nil {
			return nil, false, err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO reward_codes (code, user_id, percent, issued_at)
			 VALUES ($1, $2, $3, $4)`,
			rewardCodeFor(winnerID, wins), winnerID, model.RewardDiscountPercent, receipt.SettledAt,
		); err != nil {
			return nil, false, err
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO settlements (pool_id, outcome, total, house_cut, payout, remainder, winners, settled_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8)`,
		receipt.PoolID, receipt.Outcome,
		receipt.Total.String(), receipt.HouseCut.String(),
		receipt.Payout.String(), receipt.Remainder.String(),
		receipt.Winners, receipt.SettledAt,
	); err != nil {
		return nil, false, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE pools SET state = 'settled' WHERE id = $1`, receipt.PoolID); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return receipt, true, nil
}

// --- Subscription ---

func (s *PostgresStore) ApplySubscription(ctx context.Context, userID, code string, basePrice decimal.Decimal, term time.Duration) (*model.User, decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	var premium bool
	var premiumUntil time.Time
	err = tx.QueryRow(ctx,
		`SELECT premium, premium_until FROM users WHERE id = $1 FOR UPDATE`,
		userID).Scan(&premium, &premiumUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, decimal.Zero, err
	}

	price := basePrice
	if code != "" {
		var percent int
		err = tx.QueryRow(ctx,
			`SELECT percent FROM reward_codes WHERE code = $1 AND user_id = $2 FOR UPDATE`,
			code, userID).Scan(&percent)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrCodeInvalid, code)
		}
		if err != nil {
			return nil, decimal.Zero, err
		}
		price = DiscountedPrice(basePrice, percent)
	}

	if _, err := debitTx(ctx, tx, userID, price, "subscription"); err != nil {
		return nil, decimal.Zero, err
	}

	if code != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM reward_codes WHERE code = $1`, code); err != nil {
			return nil, decimal.Zero, err
		}
	}

	now := time.Now().UTC()
	base := now
	if premium && premiumUntil.After(now) {
		base = premiumUntil
	}
	until := base.Add(term)

	if _, err := tx.Exec(ctx,
		`UPDATE users SET premium = TRUE, premium_until = $2 WHERE id = $1`,
		userID, until); err != nil {
		return nil, decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, decimal.Zero, err
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return u, price, nil
}

// --- Internal helpers ---

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectPool = `SELECT id, sport, home_team, away_team, starts_at, outcomes, state, outcome, total::TEXT, created_at
	 FROM pools`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoolRow(row rowScanner) (*model.Pool, error) {
	var p model.Pool
	var state, totalS string
	if err := row.Scan(&p.ID, &p.Sport, &p.HomeTeam, &p.AwayTeam, &p.StartsAt,
		&p.Outcomes, &state, &p.Outcome, &totalS, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.State = model.PoolState(state)
	p.Total, _ = decimal.NewFromString(totalS)
	return &p, nil
}

func (s *PostgresStore) attachEntries(ctx context.Context, p *model.Pool) error {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, prediction, fee::TEXT, placed_at
		 FROM entries WHERE pool_id = $1 ORDER BY placed_at`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e model.Entry
		var feeS string
		if err := rows.Scan(&e.UserID, &e.Prediction, &feeS, &e.PlacedAt); err != nil {
			return err
		}
		e.Fee, _ = decimal.NewFromString(feeS)
		p.Entries = append(p.Entries, e)
	}
	return rows.Err()
}

func loadUser(ctx context.Context, q querier, id string) (*model.User, error) {
	var u model.User
	var balanceS string
	err := q.QueryRow(ctx,
		`SELECT id, display_name, balance::TEXT, premium, premium_until, wins, created_at
		 FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.DisplayName, &balanceS, &u.Premium, &u.PremiumUntil, &u.Wins, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	u.Balance, _ = decimal.NewFromString(balanceS)
	return &u, nil
}

func loadReceipt(ctx context.Context, q querier, poolID string) (*model.SettlementReceipt, error) {
	var r model.SettlementReceipt
	var totalS, houseCutS, payoutS, remainderS string
	err := q.QueryRow(ctx,
		`SELECT pool_id, outcome, total::TEXT, house_cut::TEXT, payout::TEXT, remainder::TEXT, winners, settled_at
		 FROM settlements WHERE pool_id = $1`, poolID).
		Scan(&r.PoolID, &r.Outcome, &totalS, &houseCutS, &payoutS, &remainderS, &r.Winners, &r.SettledAt)
	if err != nil {
		return nil, fmt.Errorf("get settlement %s: %w", poolID, err)
	}
	r.Total, _ = decimal.NewFromString(totalS)
	r.HouseCut, _ = decimal.NewFromString(houseCutS)
	r.Payout, _ = decimal.NewFromString(payoutS)
	r.Remainder, _ = decimal.NewFromString(remainderS)
	return &r, nil
}

// lockBalance acquires the user row lock and returns the current balance.
func lockBalance(ctx context.Context, tx pgx.Tx, userID string) (decimal.Decimal, error) {
	var balanceS string
	err := tx.QueryRow(ctx,
		`SELECT balance::TEXT FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balanceS)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	balance, _ := decimal.NewFromString(balanceS)
	return balance, nil
}

// lockWins acquires the user row lock and returns the current win count.
func lockWins(ctx context.Context, tx pgx.Tx, userID string) (int, error) {
	var wins int
	err := tx.QueryRow(ctx,
		`SELECT wins FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&wins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return wins, err
}

func adjustBalance(ctx context.Context, tx pgx.Tx, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balanceS string
	err := tx.QueryRow(ctx,
		`UPDATE users SET balance = balance + $2::NUMERIC WHERE id = $1 RETURNING balance::TEXT`,
		userID, delta.String()).Scan(&balanceS)
	if err != nil {
		return decimal.Zero, err
	}
	balance, _ := decimal.NewFromString(balanceS)
	return balance, nil
}

// debitTx locks the user row, verifies funds, applies the debit, and
// journals it. Caller owns the surrounding transaction.
func debitTx(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal, ref string) (decimal.Decimal, error) {
	balance, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, balance, amount)
	}
	newBalance, err := adjustBalance(ctx, tx, userID, amount.Neg())
	if err != nil {
		return decimal.Zero, err
	}
	if err := insertJournal(ctx, tx, userID, model.JournalDebit, amount, ref); err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

func insertJournal(ctx context.Context, tx pgx.Tx, userID, kind string, amount decimal.Decimal, ref string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO journal (id, user_id, kind, amount, reference, ts)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)`,
		uuid.New().String(), userID, kind, amount.String(), ref, time.Now().UTC(),
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
