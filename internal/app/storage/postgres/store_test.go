package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGetMemberNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM members WHERE id =").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetMember(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateMember(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO members").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m, err := store.CreateMember(context.Background(), member.Member{
		ID:       "100",
		Username: "alice",
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be stamped")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMemberNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE members SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateMember(context.Background(), member.Member{ID: "ghost"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendTransactionAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := store.AppendTransaction(context.Background(), ledger.Transaction{
		MemberID: "100",
		Kind:     ledger.KindROI,
		Amount:   decimal.RequireFromString("0.25"),
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
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListTransactionsLimit(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "member_id", "kind", "amount", "status", "ts", "details"}).
		AddRow("tx-1", "100", "roi", "0.25", "completed", now, []byte(`{"booster":false}`))

	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs("100", 1).
		WillReturnRows(rows)

	txs, err := store.ListTransactions(context.Background(), "100", 1)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Kind != ledger.KindROI {
		t.Fatalf("unexpected kind %q", txs[0].Kind)
	}
	if txs[0].Details["booster"] != false {
		t.Fatalf("unexpected details %v", txs[0].Details)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
