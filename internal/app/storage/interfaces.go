// Package storage defines the persistence contracts consumed by the services.
// The engine never owns storage; implementations live in subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
)

// ErrNotFound is returned (possibly wrapped) when a record does not exist.
var ErrNotFound = errors.New("record not found")

// MemberStore persists member records.
type MemberStore interface {
	CreateMember(ctx context.Context, m member.Member) (member.Member, error)
	UpdateMember(ctx context.Context, m member.Member) (member.Member, error)
	GetMember(ctx context.Context, id string) (member.Member, error)
	ListMembers(ctx context.Context) ([]member.Member, error)
}

// TransactionLog is the append-only record of financial events. Listing is
// ordered newest-first; a limit of 0 means no limit.
type TransactionLog interface {
	AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	ListTransactions(ctx context.Context, memberID string, limit int) ([]ledger.Transaction, error)
}
