package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
)

func TestMemberLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()

	if _, err := store.GetMember(ctx, "100"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := store.CreateMember(ctx, member.Member{ID: "100", Username: "alice"})
	if err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	if _, err := store.CreateMember(ctx, member.Member{ID: "100"}); err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	created.Username = "alice2"
	created.Earnings.AvailableBalance = decimal.RequireFromString("12.50")
	updated, err := store.UpdateMember(ctx, created)
	if err != nil {
		t.Fatalf("UpdateMember failed: %v", err)
	}
	if updated.Username != "alice2" {
		t.Fatalf("expected updated username, got %q", updated.Username)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("UpdateMember must preserve CreatedAt")
	}

	got, err := store.GetMember(ctx, "100")
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if !got.Earnings.AvailableBalance.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected balance %s", got.Earnings.AvailableBalance)
	}

	if _, err := store.UpdateMember(ctx, member.Member{ID: "missing"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMemberReturnsClone(t *testing.T) {
	ctx := context.Background()
	store := New()

	if _, err := store.CreateMember(ctx, member.Member{
		ID:        "100",
		Referrals: member.Referrals{Direct: []string{"200"}},
	}); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}

	got, err := store.GetMember(ctx, "100")
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	got.Referrals.Direct[0] = "tampered"

	again, err := store.GetMember(ctx, "100")
	if err != nil {
		t.Fatalf("GetMember failed: %v", err)
	}
	if again.Referrals.Direct[0] != "200" {
		t.Fatal("mutating a returned member must not affect the store")
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := New()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		if _, err := store.AppendTransaction(ctx, ledger.Transaction{
			MemberID:  "100",
			Kind:      ledger.KindROI,
			Amount:    decimal.NewFromInt(int64(i + 1)),
			Status:    ledger.StatusCompleted,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("AppendTransaction failed: %v", err)
		}
	}

	txs, err := store.ListTransactions(ctx, "100", 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if !txs[0].Amount.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected newest first, got amount %s", txs[0].Amount)
	}

	limited, err := store.ListTransactions(ctx, "100", 2)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(limited))
	}

	other, err := store.ListTransactions(ctx, "999", 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no transactions for unknown member, got %d", len(other))
	}
}

func TestAppendTransactionAssignsID(t *testing.T) {
	ctx := context.Background()
	store := New()

	tx, err := store.AppendTransaction(ctx, ledger.Transaction{
		MemberID: "100",
		Kind:     ledger.KindInvestment,
		Amount:   decimal.NewFromInt(10),
		Status:   ledger.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("AppendTransaction failed: %v", err)
	}
	if tx.ID == "" {
		t.Fatal("expected an assigned transaction id")
	}
	if tx.Timestamp.IsZero() {
		t.Fatal("expected an assigned timestamp")
	}

	if _, err := store.AppendTransaction(ctx, ledger.Transaction{Kind: ledger.KindROI}); err == nil {
		t.Fatal("expected missing member id to fail")
	}
}
