// Package redis implements the storage contracts as JSON documents in Redis.
// It mirrors the document-per-member shape of the memory store and suits
// single-writer deployments where the engine's own locking serialises updates.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
)

const (
	memberKeyPrefix = "member:"
	memberIndexKey  = "members"
	txKeyPrefix     = "tx:"
)

// Store persists members and transactions in Redis.
type Store struct {
	client *redis.Client
}

var (
	_ storage.MemberStore    = (*Store)(nil)
	_ storage.TransactionLog = (*Store)(nil)
)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, addr string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func memberKey(id string) string { return memberKeyPrefix + id }
func txKey(memberID string) string { return txKeyPrefix + memberID }

// CreateMember stores a new member document and indexes its id.
func (s *Store) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if err := s.writeMember(ctx, m); err != nil {
		return member.Member{}, err
	}
	if err := s.client.SAdd(ctx, memberIndexKey, m.ID).Err(); err != nil {
		return member.Member{}, fmt.Errorf("failed to index member %s: %w", m.ID, err)
	}
	return m, nil
}

// UpdateMember replaces the stored document wholesale.
func (s *Store) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	exists, err := s.client.Exists(ctx, memberKey(m.ID)).Result()
	if err != nil {
		return member.Member{}, fmt.Errorf("failed to update member %s: %w", m.ID, err)
	}
	if exists == 0 {
		return member.Member{}, fmt.Errorf("member %s: %w", m.ID, storage.ErrNotFound)
	}

	m.UpdatedAt = time.Now().UTC()
	if err := s.writeMember(ctx, m); err != nil {
		return member.Member{}, err
	}
	return m, nil
}

func (s *Store) writeMember(ctx context.Context, m member.Member) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode member %s: %w", m.ID, err)
	}
	if err := s.client.Set(ctx, memberKey(m.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store member %s: %w", m.ID, err)
	}
	return nil
}

// GetMember fetches a member document by id.
func (s *Store) GetMember(ctx context.Context, id string) (member.Member, error) {
	data, err := s.client.Get(ctx, memberKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return member.Member{}, fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return member.Member{}, fmt.Errorf("failed to get member %s: %w", id, err)
	}

	var m member.Member
	if err := json.Unmarshal(data, &m); err != nil {
		return member.Member{}, fmt.Errorf("failed to decode member %s: %w", id, err)
	}
	return m, nil
}

// ListMembers returns every indexed member document.
func (s *Store) ListMembers(ctx context.Context) ([]member.Member, error) {
	ids, err := s.client.SMembers(ctx, memberIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	members := make([]member.Member, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMember(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			// Index entry outlived the document, skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// AppendTransaction prepends a transaction to the member's history list.
func (s *Store) AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to encode transaction %s: %w", tx.ID, err)
	}
	if err := s.client.LPush(ctx, txKey(tx.MemberID), data).Err(); err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to append transaction for %s: %w", tx.MemberID, err)
	}
	return tx, nil
}

// ListTransactions returns a member's history newest-first. A limit of 0
// returns everything.
func (s *Store) ListTransactions(ctx context.Context, memberID string, limit int) ([]ledger.Transaction, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := s.client.LRange(ctx, txKey(memberID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", memberID, err)
	}

	txs := make([]ledger.Transaction, 0, len(raw))
	for _, item := range raw {
		var tx ledger.Transaction
		if err := json.Unmarshal([]byte(item), &tx); err != nil {
			return nil, fmt.Errorf("failed to decode transaction for %s: %w", memberID, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
