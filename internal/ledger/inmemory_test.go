package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestGetOrCreateWalletConcurrentFirstAccess(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	owner := uuid.NewString()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := s.GetOrCreateWallet(ctx, owner)
			if err != nil {
				t.Errorf("get or create: %v", err)
				return
			}
			ids[i] = w.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("duplicate wallet for owner: %s vs %s", ids[i], ids[0])
		}
	}
}

func TestAdjustBalanceRejectsOverdraft(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	SeedBalance(s, w.ID, 500)

	if _, err := s.AdjustBalance(ctx, w.ID, -600); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	bal, err := s.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 500 {
		t.Fatalf("balance mutated by rejected debit: %d", bal)
	}

	newBal, err := s.AdjustBalance(ctx, w.ID, -500)
	if err != nil {
		t.Fatalf("adjust to zero: %v", err)
	}
	if newBal != 0 {
		t.Fatalf("expected zero balance, got %d", newBal)
	}
}

func TestWithdrawalDebitFirstThenDenyRestores(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	SeedBalance(s, w.ID, 1_000)

	tx, err := s.RequestWithdrawal(ctx, w.ID, 600, "Withdrawal request")
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if tx.Status != StatusPending {
		t.Fatalf("expected pending, got %s", tx.Status)
	}
	if bal, _ := s.Balance(ctx, w.ID); bal != 400 {
		t.Fatalf("expected balance 400 after debit-first, got %d", bal)
	}

	denied, err := s.Deny(ctx, tx.ID, "insufficient provider balance")
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if denied.Status != StatusDenied || denied.Reason != "insufficient provider balance" {
		t.Fatalf("unexpected denial record: %+v", denied)
	}
	if bal, _ := s.Balance(ctx, w.ID); bal != 1_000 {
		t.Fatalf("expected balance restored to 1000, got %d", bal)
	}

	// A second deny is a no-op and must not refund again.
	if _, err := s.Deny(ctx, tx.ID, "again"); err != nil {
		t.Fatalf("repeat deny: %v", err)
	}
	if bal, _ := s.Balance(ctx, w.ID); bal != 1_000 {
		t.Fatalf("repeat deny changed balance: %d", bal)
	}
}

func TestWithdrawalSettleKeepsDebit(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	SeedBalance(s, w.ID, 1_000)

	tx, err := s.RequestWithdrawal(ctx, w.ID, 250, "")
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	settled, err := s.Settle(ctx, tx.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != StatusCleared {
		t.Fatalf("expected cleared, got %s", settled.Status)
	}
	if bal, _ := s.Balance(ctx, w.ID); bal != 750 {
		t.Fatalf("settle must not move funds again, balance %d", bal)
	}
}

func TestTransferConservation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	b, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	SeedBalance(s, a.ID, 500)

	res, err := s.Transfer(ctx, a.ID, b.ID, 200, "gift")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.FromBalance != 300 || res.ToBalance != 200 {
		t.Fatalf("unexpected balances: %+v", res)
	}
	if res.Debit.Kind != KindTransferOut || res.Credit.Kind != KindTransferIn {
		t.Fatalf("unexpected pair kinds: %s/%s", res.Debit.Kind, res.Credit.Kind)
	}
	if res.Debit.Status != StatusCleared || res.Credit.Status != StatusCleared {
		t.Fatal("transfers must settle synchronously")
	}
	if res.Debit.TransferGroup == "" || res.Debit.TransferGroup != res.Credit.TransferGroup {
		t.Fatalf("pair must share a correlation id: %q vs %q", res.Debit.TransferGroup, res.Credit.TransferGroup)
	}

	balA, _ := s.Balance(ctx, a.ID)
	balB, _ := s.Balance(ctx, b.ID)
	if balA+balB != 500 {
		t.Fatalf("transfer created or destroyed money: %d", balA+balB)
	}
}

func TestTransferPreconditions(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	b, _ := s.GetOrCreateWallet(ctx, uuid.NewString())

	if _, err := s.Transfer(ctx, a.ID, b.ID, 0, ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := s.Transfer(ctx, a.ID, a.ID, 100, ""); !errors.Is(err, ErrSameWallet) {
		t.Fatalf("expected same wallet error, got %v", err)
	}
	if _, err := s.Transfer(ctx, a.ID, b.ID, 100, ""); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := s.Transfer(ctx, a.ID, uuid.NewString(), 100, ""); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestSettleDepositCreditsExactlyOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())

	tx, err := s.CreateDeposit(ctx, w.ID, 2_500, "Top-up", "pr_123")
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}
	if bal, _ := s.Balance(ctx, w.ID); bal != 0 {
		t.Fatalf("pending deposit must not credit, balance %d", bal)
	}

	first, err := s.Settle(ctx, tx.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if first.Status != StatusCleared {
		t.Fatalf("expected cleared, got %s", first.Status)
	}
	second, err := s.Settle(ctx, tx.ID)
	if err != nil {
		t.Fatalf("replayed settle must succeed: %v", err)
	}
	if second.Status != StatusCleared {
		t.Fatalf("replayed settle changed state: %s", second.Status)
	}
	if bal, _ := s.Balance(ctx, w.ID); bal != 2_500 {
		t.Fatalf("wallet must be credited exactly once, balance %d", bal)
	}
}

func TestDenyAfterSettleIsNoop(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	tx, _ := s.CreateDeposit(ctx, w.ID, 900, "", "pr_x")

	if _, err := s.Settle(ctx, tx.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	res, err := s.Deny(ctx, tx.ID, "late failure")
	if err != nil {
		t.Fatalf("deny on terminal: %v", err)
	}
	if res.Status != StatusCleared {
		t.Fatalf("terminal state must not transition, got %s", res.Status)
	}
	if bal, _ := s.Balance(ctx, w.ID); bal != 900 {
		t.Fatalf("balance changed by no-op deny: %d", bal)
	}
}

func TestConcurrentWithdrawalsAtMostOneSucceeds(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	SeedBalance(s, w.ID, 1_000)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.RequestWithdrawal(ctx, w.ID, 600, "")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one withdrawal to succeed, got %d", successes)
	}
	if bal, _ := s.Balance(ctx, w.ID); bal != 400 {
		t.Fatalf("expected balance 400, got %d", bal)
	}
}

func TestConcurrentTransfersPreserveTotal(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	b, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	SeedBalance(s, a.ID, 100_000)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Transfer(ctx, a.ID, b.ID, 500, ""); err != nil {
				t.Errorf("transfer: %v", err)
			}
		}()
	}
	wg.Wait()

	balA, _ := s.Balance(ctx, a.ID)
	balB, _ := s.Balance(ctx, b.ID)
	if balA+balB != 100_000 {
		t.Fatalf("ledger not balanced after concurrency, total=%d", balA+balB)
	}
	if balB != workers*500 {
		t.Fatalf("expected %d on receiving wallet, got %d", workers*500, balB)
	}
}

func TestFindByProviderRef(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	tx, _ := s.CreateDeposit(ctx, w.ID, 100, "", "pr_known")

	found, err := s.FindByProviderRef(ctx, "pr_known")
	if err != nil {
		t.Fatalf("find by ref: %v", err)
	}
	if found.ID != tx.ID {
		t.Fatalf("expected %s, got %s", tx.ID, found.ID)
	}

	if _, err := s.FindByProviderRef(ctx, "pr_missing"); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("expected unknown transaction, got %v", err)
	}
}

func TestListTransactionsNewestFirst(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())

	var want []string
	for i := 0; i < 3; i++ {
		tx, err := s.CreateDeposit(ctx, w.ID, int64(100*(i+1)), "", "")
		if err != nil {
			t.Fatalf("create deposit %d: %v", i, err)
		}
		want = append([]string{tx.ID}, want...)
	}

	got, err := s.ListTransactions(ctx, w.ID, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(got))
	}
	for i := range got {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: expected %s got %s", i, want[i], got[i].ID)
		}
	}

	page, err := s.ListTransactions(ctx, w.ID, 1, 1)
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if len(page) != 1 || page[0].ID != want[1] {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestListPendingWithdrawals(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.GetOrCreateWallet(ctx, uuid.NewString())
	SeedBalance(s, w.ID, 10_000)

	first, _ := s.RequestWithdrawal(ctx, w.ID, 100, "")
	second, _ := s.RequestWithdrawal(ctx, w.ID, 200, "")
	if _, err := s.Settle(ctx, first.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	pending, err := s.ListPendingWithdrawals(ctx, 50)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("unexpected pending queue: %+v", pending)
	}
}
