package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chikereg22-dot/PiPredict/internal/fixture"
	"github.com/chikereg22-dot/PiPredict/internal/model"
	"github.com/chikereg22-dot/PiPredict/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedUser(t *testing.T, ms *store.MemoryStore, id string, balance float64) {
	t.Helper()
	ctx := context.Background()
	if _, err := ms.GetOrCreateUser(ctx, id, "Player "+id); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	if balance > 0 {
		if _, err := ms.Credit(ctx, id, d(balance), "deposit"); err != nil {
			t.Fatalf("failed to fund user: %v", err)
		}
	}
}

func seedPool(t *testing.T, ms *store.MemoryStore, id string) *model.Pool {
	t.Helper()
	pool := &model.Pool{
		ID:        id,
		Sport:     fixture.SportSoccer,
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		StartsAt:  time.Now().UTC().Add(time.Hour),
		Outcomes:  fixture.Outcomes(fixture.SportSoccer),
		State:     model.PoolPending,
		Total:     decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	if err := ms.CreatePool(context.Background(), pool); err != nil {
		t.Fatalf("failed to seed pool: %v", err)
	}
	return pool
}

func join(t *testing.T, ms *store.MemoryStore, poolID, userID, prediction string, fee float64) error {
	t.Helper()
	_, err := ms.AddEntry(context.Background(), poolID, model.Entry{
		UserID:     userID,
		Prediction: prediction,
		Fee:        d(fee),
		PlacedAt:   time.Now().UTC(),
	})
	return err
}

// --- Ledger tests ---

func TestDebit_InsufficientFunds(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 5)

	_, err := ms.Debit(context.Background(), "u1", d(5.01), "test")
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	u, _ := ms.GetUser(context.Background(), "u1")
	if !u.Balance.Equal(d(5)) {
		t.Errorf("failed debit must not change balance, got %s", u.Balance)
	}
}

func TestDebitCredit_InvalidAmount(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 5)

	ctx := context.Background()
	if _, err := ms.Debit(ctx, "u1", decimal.Zero, "test"); !errors.Is(err, store.ErrInvalidAmount) {
		t.Errorf("zero debit: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ms.Credit(ctx, "u1", d(-1), "test"); !errors.Is(err, store.ErrInvalidAmount) {
		t.Errorf("negative credit: expected ErrInvalidAmount, got %v", err)
	}
}

func TestConcurrentDebits_NoNegativeBalance(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 10)

	// 50 concurrent debits of 1.00 against a balance of 10.00: exactly
	// 10 must succeed.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ms.Debit(context.Background(), "u1", d(1), "race"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("expected exactly 10 successful debits, got %d", succeeded)
	}
	u, _ := ms.GetUser(context.Background(), "u1")
	if !u.Balance.IsZero() {
		t.Errorf("expected zero balance, got %s", u.Balance)
	}
}

func TestJournal_RecordsMovements(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 10)

	ctx := context.Background()
	ms.Debit(ctx, "u1", d(3), "SOCCER-1")

	entries, err := ms.JournalByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("failed to read journal: %v", err)
	}
	if len(entries) != 2 { // seed credit + debit
		t.Fatalf("expected 2 journal entries, got %d", len(entries))
	}
	if entries[1].Kind != model.JournalDebit || !entries[1].Amount.Equal(d(3)) {
		t.Errorf("unexpected debit record: %+v", entries[1])
	}
	if entries[1].Reference != "SOCCER-1" {
		t.Errorf("expected reference SOCCER-1, got %s", entries[1].Reference)
	}
}

// --- Entry admission tests ---

func TestAddEntry_DebitsAndAppends(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 20)
	seedPool(t, ms, "SOCCER-1")

	if err := join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	u, _ := ms.GetUser(context.Background(), "u1")
	if !u.Balance.Equal(d(15)) {
		t.Errorf("expected balance 15, got %s", u.Balance)
	}
	p, _ := ms.GetPool(context.Background(), "SOCCER-1")
	if !p.Total.Equal(d(5)) {
		t.Errorf("expected total 5, got %s", p.Total)
	}
	if len(p.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(p.Entries))
	}
}

func TestAddEntry_InsufficientFundsLeavesBothUnchanged(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 3)
	seedPool(t, ms, "SOCCER-1")

	err := join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	u, _ := ms.GetUser(context.Background(), "u1")
	if !u.Balance.Equal(d(3)) {
		t.Errorf("balance must be unchanged, got %s", u.Balance)
	}
	p, _ := ms.GetPool(context.Background(), "SOCCER-1")
	if !p.Total.IsZero() || len(p.Entries) != 0 {
		t.Errorf("pool must be unchanged, total=%s entries=%d", p.Total, len(p.Entries))
	}
}

func TestAddEntry_DuplicateRejected(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 20)
	seedPool(t, ms, "SOCCER-1")

	if err := join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	err := join(t, ms, "SOCCER-1", "u1", fixture.OutcomeAway, 5)
	if !errors.Is(err, store.ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}

	u, _ := ms.GetUser(context.Background(), "u1")
	if !u.Balance.Equal(d(15)) {
		t.Errorf("duplicate join must not debit again, got %s", u.Balance)
	}
}

func TestAddEntry_PoolNotPending(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 20)
	seedPool(t, ms, "SOCCER-1")
	ms.ResolvePool(context.Background(), "SOCCER-1", fixture.OutcomeHome)

	err := join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5)
	if !errors.Is(err, store.ErrPoolNotPending) {
		t.Fatalf("expected ErrPoolNotPending, got %v", err)
	}
}

func TestConcurrentJoins_TotalMatchesAdmittedFees(t *testing.T) {
	ms := store.NewMemoryStore()
	seedPool(t, ms, "SOCCER-1")

	// 20 users each with 10.00 trying to stake 4.00 twice concurrently:
	// one entry per user admits, balances never go negative, and the
	// pool total equals the sum of admitted fees exactly.
	const users = 20
	for i := 0; i < users; i++ {
		seedUser(t, ms, fmt.Sprintf("u%d", i), 10)
	}

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				join(t, ms, "SOCCER-1", fmt.Sprintf("u%d", i), fixture.OutcomeHome, 4)
			}(i)
		}
	}
	wg.Wait()

	p, _ := ms.GetPool(context.Background(), "SOCCER-1")
	if len(p.Entries) != users {
		t.Fatalf("expected %d entries, got %d", users, len(p.Entries))
	}

	sum := decimal.Zero
	for _, e := range p.Entries {
		sum = sum.Add(e.Fee)
	}
	if !p.Total.Equal(sum) {
		t.Errorf("pool total %s != sum of fees %s", p.Total, sum)
	}
	for i := 0; i < users; i++ {
		u, _ := ms.GetUser(context.Background(), fmt.Sprintf("u%d", i))
		if u.Balance.IsNegative() {
			t.Errorf("user u%d balance negative: %s", i, u.Balance)
		}
		if !u.Balance.Equal(d(6)) {
			t.Errorf("user u%d should have been debited once, balance %s", i, u.Balance)
		}
	}
}

// --- Resolution tests ---

func TestResolvePool_Transitions(t *testing.T) {
	ms := store.NewMemoryStore()
	seedPool(t, ms, "SOCCER-1")
	ctx := context.Background()

	if err := ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeDraw); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	p, _ := ms.GetPool(ctx, "SOCCER-1")
	if p.State != model.PoolResolved || p.Outcome != fixture.OutcomeDraw {
		t.Errorf("expected resolved/DRAW, got %s/%s", p.State, p.Outcome)
	}

	// Same outcome again: no-op.
	if err := ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeDraw); err != nil {
		t.Errorf("re-resolve with same outcome should be a no-op: %v", err)
	}
	// Different outcome: conflict.
	if err := ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeHome); !errors.Is(err, store.ErrOutcomeMismatch) {
		t.Errorf("expected ErrOutcomeMismatch, got %v", err)
	}
}

func TestResolvePool_InvalidLabel(t *testing.T) {
	ms := store.NewMemoryStore()
	seedPool(t, ms, "SOCCER-1")

	err := ms.ResolvePool(context.Background(), "SOCCER-1", "OVERTIME")
	if !errors.Is(err, store.ErrInvalidOutcome) {
		t.Fatalf("expected ErrInvalidOutcome, got %v", err)
	}
}

// --- Settlement tests ---

func settleReceipt(poolID, outcome string, total, houseCut, payout, remainder float64, winners ...string) *model.SettlementReceipt {
	return &model.SettlementReceipt{
		PoolID:    poolID,
		Outcome:   outcome,
		Total:     d(total),
		HouseCut:  d(houseCut),
		Payout:    d(payout),
		Remainder: d(remainder),
		Winners:   winners,
		SettledAt: time.Now().UTC(),
	}
}

func TestSettlePool_CreditsWinnersOnce(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 10)
	seedUser(t, ms, "u2", 10)
	seedPool(t, ms, "SOCCER-1")
	ctx := context.Background()

	join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5)
	join(t, ms, "SOCCER-1", "u2", fixture.OutcomeAway, 5)
	ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeHome)

	receipt := settleReceipt("SOCCER-1", fixture.OutcomeHome, 10, 1, 9, 0, "u1")
	stored, applied, err := ms.SettlePool(ctx, receipt)
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !applied {
		t.Fatal("first settle should apply")
	}
	if !stored.Payout.Equal(d(9)) {
		t.Errorf("unexpected stored payout: %s", stored.Payout)
	}

	u1, _ := ms.GetUser(ctx, "u1")
	if !u1.Balance.Equal(d(14)) { // 10 - 5 + 9
		t.Errorf("expected winner balance 14, got %s", u1.Balance)
	}
	if u1.Wins != 1 {
		t.Errorf("expected 1 win, got %d", u1.Wins)
	}
	if len(u1.RewardCodes) != 1 {
		t.Fatalf("expected 1 reward code, got %d", len(u1.RewardCodes))
	}
	if u1.RewardCodes[0].Percent != model.RewardDiscountPercent {
		t.Errorf("unexpected discount: %d", u1.RewardCodes[0].Percent)
	}

	u2, _ := ms.GetUser(ctx, "u2")
	if !u2.Balance.Equal(d(5)) {
		t.Errorf("loser must not be credited, got %s", u2.Balance)
	}
	if u2.Wins != 0 || len(u2.RewardCodes) != 0 {
		t.Errorf("loser must get no win or code: wins=%d codes=%d", u2.Wins, len(u2.RewardCodes))
	}
}

func TestSettlePool_IdempotentReplay(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 10)
	seedPool(t, ms, "SOCCER-1")
	ctx := context.Background()

	join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5)
	ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeHome)

	receipt := settleReceipt("SOCCER-1", fixture.OutcomeHome, 5, 0.50, 4.50, 0, "u1")
	first, applied, err := ms.SettlePool(ctx, receipt)
	if err != nil || !applied {
		t.Fatalf("first settle: applied=%v err=%v", applied, err)
	}

	journalBefore, _ := ms.JournalByUser(ctx, "u1")

	second, applied, err := ms.SettlePool(ctx, receipt)
	if err != nil {
		t.Fatalf("replay settle errored: %v", err)
	}
	if applied {
		t.Error("replay settle must not apply again")
	}
	if !second.Payout.Equal(first.Payout) || second.Outcome != first.Outcome {
		t.Errorf("replay receipt differs: %+v vs %+v", second, first)
	}

	journalAfter, _ := ms.JournalByUser(ctx, "u1")
	if len(journalAfter) != len(journalBefore) {
		t.Errorf("replay settle mutated the ledger: %d -> %d entries", len(journalBefore), len(journalAfter))
	}
	u1, _ := ms.GetUser(ctx, "u1")
	if u1.Wins != 1 || len(u1.RewardCodes) != 1 {
		t.Errorf("replay settle re-applied rewards: wins=%d codes=%d", u1.Wins, len(u1.RewardCodes))
	}
}

func TestSettlePool_ConcurrentSettlesApplyOnce(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 10)
	seedUser(t, ms, "u2", 10)
	seedPool(t, ms, "SOCCER-1")
	ctx := context.Background()

	join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5)
	join(t, ms, "SOCCER-1", "u2", fixture.OutcomeHome, 5)
	ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeHome)

	receipt := settleReceipt("SOCCER-1", fixture.OutcomeHome, 10, 1, 4.50, 0, "u1", "u2")

	var wg sync.WaitGroup
	var mu sync.Mutex
	appliedCount := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, applied, err := ms.SettlePool(ctx, receipt); err == nil && applied {
				mu.Lock()
				appliedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if appliedCount != 1 {
		t.Errorf("expected exactly 1 applied settlement, got %d", appliedCount)
	}
	u1, _ := ms.GetUser(ctx, "u1")
	if !u1.Balance.Equal(d(9.50)) { // 10 - 5 + 4.50
		t.Errorf("winner credited %s, want 9.50 (exactly once)", u1.Balance)
	}
	if u1.Wins != 1 {
		t.Errorf("expected 1 win, got %d", u1.Wins)
	}
}

func TestSettlePool_NotResolved(t *testing.T) {
	ms := store.NewMemoryStore()
	seedPool(t, ms, "SOCCER-1")

	receipt := settleReceipt("SOCCER-1", fixture.OutcomeHome, 0, 0, 0, 0)
	_, _, err := ms.SettlePool(context.Background(), receipt)
	if !errors.Is(err, store.ErrPoolNotResolved) {
		t.Fatalf("expected ErrPoolNotResolved, got %v", err)
	}
}

func TestSettlePool_ZeroWinners(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 10)
	seedPool(t, ms, "SOCCER-1")
	ctx := context.Background()

	join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 10)
	ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeAway)

	receipt := settleReceipt("SOCCER-1", fixture.OutcomeAway, 10, 1, 0, 9)
	_, applied, err := ms.SettlePool(ctx, receipt)
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !applied {
		t.Fatal("zero-winner settle must still transition state")
	}

	p, _ := ms.GetPool(ctx, "SOCCER-1")
	if p.State != model.PoolSettled {
		t.Errorf("expected settled state, got %s", p.State)
	}
	u1, _ := ms.GetUser(ctx, "u1")
	if !u1.Balance.IsZero() {
		t.Errorf("no credits expected, balance %s", u1.Balance)
	}
}

// --- Subscription tests ---

func TestApplySubscription_FullPrice(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 20)

	u, charged, err := ms.ApplySubscription(context.Background(), "u1", "", d(10), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if !charged.Equal(d(10)) {
		t.Errorf("expected charge 10, got %s", charged)
	}
	if !u.Premium {
		t.Error("expected premium flag set")
	}
	if !u.Balance.Equal(d(10)) {
		t.Errorf("expected balance 10, got %s", u.Balance)
	}
	if u.PremiumUntil.Before(time.Now().UTC().Add(29 * 24 * time.Hour)) {
		t.Errorf("expiry too early: %s", u.PremiumUntil)
	}
}

func TestApplySubscription_CodeDiscountAndConsumption(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 20)
	seedPool(t, ms, "SOCCER-1")
	ctx := context.Background()

	// Win a pool to earn a code.
	join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5)
	ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeHome)
	ms.SettlePool(ctx, settleReceipt("SOCCER-1", fixture.OutcomeHome, 5, 0.50, 4.50, 0, "u1"))

	u, _ := ms.GetUser(ctx, "u1")
	if len(u.RewardCodes) != 1 {
		t.Fatalf("expected 1 reward code, got %d", len(u.RewardCodes))
	}
	code := u.RewardCodes[0].Code

	u, charged, err := ms.ApplySubscription(ctx, "u1", code, d(10), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("subscribe with code failed: %v", err)
	}
	if !charged.Equal(d(9)) { // 10% off
		t.Errorf("expected discounted charge 9, got %s", charged)
	}
	if len(u.RewardCodes) != 0 {
		t.Error("code must be consumed")
	}

	// Code cannot be used twice.
	_, _, err = ms.ApplySubscription(ctx, "u1", code, d(10), 30*24*time.Hour)
	if !errors.Is(err, store.ErrCodeInvalid) {
		t.Errorf("expected ErrCodeInvalid on reuse, got %v", err)
	}
}

func TestApplySubscription_InsufficientFundsKeepsCode(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 10)
	seedPool(t, ms, "SOCCER-1")
	ctx := context.Background()

	join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 10)
	ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeHome)
	ms.SettlePool(ctx, settleReceipt("SOCCER-1", fixture.OutcomeHome, 10, 1, 9, 0, "u1"))

	u, _ := ms.GetUser(ctx, "u1")
	code := u.RewardCodes[0].Code

	// Balance is 9.00; discounted price 90.00 is unaffordable.
	_, _, err := ms.ApplySubscription(ctx, "u1", code, d(100), 30*24*time.Hour)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	u, _ = ms.GetUser(ctx, "u1")
	if len(u.RewardCodes) != 1 {
		t.Error("failed subscription must not consume the code")
	}
	if u.Premium {
		t.Error("failed subscription must not set premium")
	}
}

// --- Open stake tests ---

func TestOpenStakeBySport(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 100)
	seedPool(t, ms, "SOCCER-1")
	seedPool(t, ms, "SOCCER-2")
	ctx := context.Background()

	join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 10)
	join(t, ms, "SOCCER-2", "u1", fixture.OutcomeAway, 15)

	open, err := ms.OpenStakeBySport(ctx, "u1")
	if err != nil {
		t.Fatalf("failed: %v", err)
	}
	if !open[fixture.SportSoccer].Equal(d(25)) {
		t.Errorf("expected open stake 25, got %s", open[fixture.SportSoccer])
	}

	// Settling one pool releases its stake from the open total.
	ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeAway)
	ms.SettlePool(ctx, settleReceipt("SOCCER-1", fixture.OutcomeAway, 10, 1, 0, 9))

	open, _ = ms.OpenStakeBySport(ctx, "u1")
	if !open[fixture.SportSoccer].Equal(d(15)) {
		t.Errorf("expected open stake 15 after settlement, got %s", open[fixture.SportSoccer])
	}
}

func TestSettlePool_UnknownWinnerMutatesNothing(t *testing.T) {
	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", 10)
	seedPool(t, ms, "SOCCER-1")
	ctx := context.Background()

	join(t, ms, "SOCCER-1", "u1", fixture.OutcomeHome, 5)
	ms.ResolvePool(ctx, "SOCCER-1", fixture.OutcomeHome)

	// Corrupted receipt: a known winner listed before an unknown one.
	// The known winner must not be credited, settlement is all-or-nothing.
	receipt := settleReceipt("SOCCER-1", fixture.OutcomeHome, 5, 0.50, 4.50, 0, "u1", "ghost")
	_, _, err := ms.SettlePool(ctx, receipt)
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	u1, _ := ms.GetUser(ctx, "u1")
	if !u1.Balance.Equal(d(5)) {
		t.Errorf("winner credited on failed settlement: balance %s", u1.Balance)
	}
	if u1.Wins != 0 || len(u1.RewardCodes) != 0 {
		t.Errorf("win or code recorded on failed settlement: wins=%d codes=%d",
			u1.Wins, len(u1.RewardCodes))
	}

	p, _ := ms.GetPool(ctx, "SOCCER-1")
	if p.State != model.PoolResolved {
		t.Errorf("pool state changed on failed settlement: %s", p.State)
	}
}

func TestListPools_NewestFirst(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"SOCCER-1", "SOCCER-2", "SOCCER-3"} {
		err := ms.CreatePool(ctx, &model.Pool{
			ID:        id,
			Sport:     fixture.SportSoccer,
			HomeTeam:  "Arsenal",
			AwayTeam:  "Chelsea",
			StartsAt:  base.Add(time.Hour),
			Outcomes:  fixture.Outcomes(fixture.SportSoccer),
			State:     model.PoolPending,
			Total:     decimal.Zero,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create pool: %v", err)
		}
	}

	pools, err := ms.ListPools(ctx)
	if err != nil {
		t.Fatalf("list pools: %v", err)
	}
	want := []string{"SOCCER-3", "SOCCER-2", "SOCCER-1"}
	if len(pools) != len(want) {
		t.Fatalf("expected %d pools, got %d", len(want), len(pools))
	}
	for i, id := range want {
		if pools[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, pools[i].ID)
		}
	}
}
