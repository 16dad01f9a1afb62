package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/moneymove/internal/errs"
	"github.com/ledgerops/moneymove/internal/ledger/domain"
)

// fakeStore mirrors the invariants internal/ledger/store.PostgresStore
// enforces in SQL (ordered locking is irrelevant to a single-goroutine
// map, but the validation and idempotency rules are the same), so
// tests exercise the engine's real business behavior without a
// database.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*domain.Account
	applied  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[int64]*domain.Account), applied: make(map[string]bool)}
}

func (s *fakeStore) CreateAccount(ctx context.Context, initialBalance decimal.Decimal) (*domain.Account, error) {
	if initialBalance.Sign() <= 0 {
		return nil, errs.New(errs.KindInvalidRequest, "initial balance must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	acc := &domain.Account{ID: s.nextID, Balance: initialBalance, Version: 0}
	s.accounts[acc.ID] = acc
	cp := *acc
	return &cp, nil
}

func (s *fakeStore) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (s *fakeStore) ApplyTransfer(ctx context.Context, transferID string, fromID, toID int64, amount decimal.Decimal) (domain.TransferOutcome, error) {
	if amount.Sign() <= 0 {
		return domain.TransferOutcome{}, errs.New(errs.KindInvalidRequest, "amount must be positive")
	}
	if fromID == toID {
		return domain.TransferOutcome{}, errs.New(errs.KindInvalidRequest, "fromId and toId must differ")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applied[transferID] {
		return domain.TransferOutcome{AlreadyApplied: true}, nil
	}

	from, ok1 := s.accounts[fromID]
	to, ok2 := s.accounts[toID]
	if !ok1 || !ok2 {
		return domain.TransferOutcome{}, errs.New(errs.KindAccountNotFound, "one or both accounts not found")
	}
	if from.Balance.LessThan(amount) {
		return domain.TransferOutcome{}, errs.New(errs.KindInsufficientFunds,
			fmt.Sprintf("account %d balance %s is less than %s", from.ID, from.Balance, amount))
	}

	from.Balance = from.Balance.Sub(amount)
	from.Version++
	to.Balance = to.Balance.Add(amount)
	to.Version++
	s.applied[transferID] = true

	return domain.TransferOutcome{Applied: true}, nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngineWithAccounts(t *testing.T, balances ...string) (*Engine, *fakeStore, []int64) {
	t.Helper()
	store := newFakeStore()
	engine := NewEngine(store, silentLogger())

	ctx := context.Background()
	ids := make([]int64, len(balances))
	for i, b := range balances {
		acc, err := engine.CreateAccount(ctx, decimal.RequireFromString(b))
		require.NoError(t, err)
		ids[i] = acc.ID
	}
	return engine, store, ids
}

func TestApplyTransferMovesBalance(t *testing.T) {
	engine, store, ids := newEngineWithAccounts(t, "100.00", "50.00")

	outcome, err := engine.ApplyTransfer(context.Background(), "t-1", ids[0], ids[1], decimal.RequireFromString("30.00"))
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	from, _ := store.GetAccount(context.Background(), ids[0])
	to, _ := store.GetAccount(context.Background(), ids[1])
	assert.True(t, from.Balance.Equal(decimal.RequireFromString("70.00")))
	assert.True(t, to.Balance.Equal(decimal.RequireFromString("80.00")))
}

func TestApplyTransferIsIdempotentOnTransferID(t *testing.T) {
	engine, store, ids := newEngineWithAccounts(t, "100.00", "50.00")
	ctx := context.Background()

	_, err := engine.ApplyTransfer(ctx, "t-dup", ids[0], ids[1], decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	outcome, err := engine.ApplyTransfer(ctx, "t-dup", ids[0], ids[1], decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyApplied)
	assert.False(t, outcome.Applied)

	from, _ := store.GetAccount(ctx, ids[0])
	assert.True(t, from.Balance.Equal(decimal.RequireFromString("90.00")), "replay must not double-debit")
}

func TestApplyTransferRejectsInsufficientFunds(t *testing.T) {
	engine, _, ids := newEngineWithAccounts(t, "10.00", "1.00")

	_, err := engine.ApplyTransfer(context.Background(), "t-2", ids[0], ids[1], decimal.RequireFromString("50.00"))
	require.Error(t, err)
	assert.Equal(t, errs.KindInsufficientFunds, errs.KindOf(err))
}

func TestApplyTransferRejectsSelfTransfer(t *testing.T) {
	engine, _, ids := newEngineWithAccounts(t, "10.00")

	_, err := engine.ApplyTransfer(context.Background(), "t-3", ids[0], ids[0], decimal.RequireFromString("1.00"))
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidRequest, errs.KindOf(err))
}

func TestApplyTransferRejectsNonPositiveAmount(t *testing.T) {
	engine, _, ids := newEngineWithAccounts(t, "10.00", "10.00")

	for _, amt := range []string{"0", "-5.00"} {
		_, err := engine.ApplyTransfer(context.Background(), "t-"+amt, ids[0], ids[1], decimal.RequireFromString(amt))
		require.Error(t, err)
		assert.Equal(t, errs.KindInvalidRequest, errs.KindOf(err))
	}
}

func TestApplyTransferRejectsUnknownAccount(t *testing.T) {
	engine, _, ids := newEngineWithAccounts(t, "10.00")

	_, err := engine.ApplyTransfer(context.Background(), "t-4", ids[0], 99999, decimal.RequireFromString("1.00"))
	require.Error(t, err)
	assert.Equal(t, errs.KindAccountNotFound, errs.KindOf(err))
}

func TestCreateAccountRejectsNonPositiveBalance(t *testing.T) {
	engine, _, _ := newEngineWithAccounts(t)

	_, err := engine.CreateAccount(context.Background(), decimal.Zero)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidRequest, errs.KindOf(err))
}

// TestApplyTransferConcurrentNoDeadlock fires many goroutines applying
// random transfers among a small pool of accounts, standing in for a
// live-database hotspot/deadlock scenario: the fake store enforces the
// same balance/idempotency invariants the SQL layer does, so surviving
// this without a stuck goroutine or a conservation violation is a
// meaningful in-process check.
func TestApplyTransferConcurrentNoDeadlock(t *testing.T) {
	const numAccounts = 8
	const numTransfers = 500

	engine, store, ids := newEngineWithAccounts(t,
		"1000.00", "1000.00", "1000.00", "1000.00", "1000.00", "1000.00", "1000.00", "1000.00")

	totalBefore := decimal.Zero
	for _, id := range ids {
		acc, _ := store.GetAccount(context.Background(), id)
		totalBefore = totalBefore.Add(acc.Balance)
	}

	var wg sync.WaitGroup
	wg.Add(numTransfers)
	for i := 0; i < numTransfers; i++ {
		i := i
		go func() {
			defer wg.Done()
			from := ids[rand.Intn(numAccounts)]
			to := ids[rand.Intn(numAccounts)]
			if from == to {
				to = ids[(rand.Intn(numAccounts-1)+1+int(from))%numAccounts]
			}
			amount := decimal.RequireFromString("1.00")
			_, _ = engine.ApplyTransfer(context.Background(), fmt.Sprintf("conc-%d", i), from, to, amount)
		}()
	}
	wg.Wait()

	totalAfter := decimal.Zero
	for _, id := range ids {
		acc, err := store.GetAccount(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, acc.Balance.GreaterThanOrEqual(decimal.Zero), "account %d went negative", id)
		totalAfter = totalAfter.Add(acc.Balance)
	}

	assert.True(t, totalBefore.Equal(totalAfter), "conservation violated: %s != %s", totalBefore, totalAfter)
}
