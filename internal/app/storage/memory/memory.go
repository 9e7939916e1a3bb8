// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
)

// Store keeps members and transactions in maps guarded by a single mutex.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	members      map[string]member.Member
	transactions map[string]ledger.Transaction
	byMember     map[string][]string
}

var _ storage.MemberStore = (*Store)(nil)
var _ storage.TransactionLog = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		members:      make(map[string]member.Member),
		transactions: make(map[string]ledger.Transaction),
		byMember:     make(map[string][]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// MemberStore implementation --------------------------------------------------

func (s *Store) CreateMember(_ context.Context, m member.Member) (member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		return member.Member{}, fmt.Errorf("member id is required")
	}
	if _, exists := s.members[m.ID]; exists {
		return member.Member{}, fmt.Errorf("member %s already exists", m.ID)
	}

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	s.members[m.ID] = cloneMember(m)
	return cloneMember(m), nil
}

func (s *Store) UpdateMember(_ context.Context, m member.Member) (member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.members[m.ID]
	if !ok {
		return member.Member{}, fmt.Errorf("member %s: %w", m.ID, storage.ErrNotFound)
	}

	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()

	s.members[m.ID] = cloneMember(m)
	return cloneMember(m), nil
}

func (s *Store) GetMember(_ context.Context, id string) (member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return member.Member{}, fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	return cloneMember(m), nil
}

func (s *Store) ListMembers(_ context.Context) ([]member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]member.Member, 0, len(s.members))
	for _, m := range s.members {
		result = append(result, cloneMember(m))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// TransactionLog implementation -----------------------------------------------

func (s *Store) AppendTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.MemberID == "" {
		return ledger.Transaction{}, fmt.Errorf("transaction member id is required")
	}
	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	} else if _, exists := s.transactions[tx.ID]; exists {
		return ledger.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	s.transactions[tx.ID] = cloneTransaction(tx)
	s.byMember[tx.MemberID] = append(s.byMember[tx.MemberID], tx.ID)
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, memberID string, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byMember[memberID]
	result := make([]ledger.Transaction, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneTransaction(s.transactions[id]))
	}
	// Newest first; append order breaks timestamp ties.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Clone helpers ---------------------------------------------------------------

func cloneMember(m member.Member) member.Member {
	clone := m
	if m.Referrals.Direct != nil {
		clone.Referrals.Direct = append([]string(nil), m.Referrals.Direct...)
	}
	if m.Package.PurchasedAt != nil {
		t := *m.Package.PurchasedAt
		clone.Package.PurchasedAt = &t
	}
	if m.Booster.CompletedAt != nil {
		t := *m.Booster.CompletedAt
		clone.Booster.CompletedAt = &t
	}
	if m.Withdrawal.LastWithdrawal != nil {
		t := *m.Withdrawal.LastWithdrawal
		clone.Withdrawal.LastWithdrawal = &t
	}
	return clone
}

func cloneTransaction(tx ledger.Transaction) ledger.Transaction {
	clone := tx
	if tx.Details != nil {
		clone.Details = make(map[string]interface{}, len(tx.Details))
		for k, v := range tx.Details {
			clone.Details[k] = v
		}
	}
	return clone
}
