// Package withdrawals enforces cooldown and limit gating on payout requests.
package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/locks"
	"github.com/podcastofficial/Usdt-miner/internal/app/metrics"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

// Gating failures. All are checked before any mutation.
var (
	ErrCooldownActive      = errors.New("withdrawal allowed once every 24 hours")
	ErrLimitExceeded       = errors.New("amount exceeds daily withdrawal limit")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Cooldown is the minimum spacing between withdrawal requests. Exactly 24
// hours since the last request is already allowed.
const Cooldown = 24 * time.Hour

// SettlementMethod tags every withdrawal transaction.
const SettlementMethod = "USDT_TRC20"

// Receipt confirms an accepted withdrawal request.
type Receipt struct {
	TransactionID string          `json:"transactionId"`
	NewBalance    decimal.Decimal `json:"newBalance"`
}

// Service records withdrawal requests. Requests stay pending; settlement is
// an external concern.
type Service struct {
	store  storage.MemberStore
	ledger storage.TransactionLog
	locks  *locks.Keyed
	log    *logger.Logger
	now    func() time.Time
}

// New constructs the withdrawal gate.
func New(store storage.MemberStore, log storage.TransactionLog, keyed *locks.Keyed, lg *logger.Logger) *Service {
	if lg == nil {
		lg = logger.NewDefault("withdrawals")
	}
	if keyed == nil {
		keyed = locks.New()
	}
	return &Service{
		store:  store,
		ledger: log,
		locks:  keyed,
		log:    lg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Request validates and records a withdrawal. On success the balance is
// debited, the cooldown clock restarts and a pending transaction is appended.
func (s *Service) Request(ctx context.Context, memberID string, amount decimal.Decimal, walletAddress string) (Receipt, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return Receipt{}, fmt.Errorf("wallet address is required")
	}
	if !amount.IsPositive() {
		return Receipt{}, fmt.Errorf("amount must be positive")
	}

	unlock := s.locks.Lock(memberID)
	defer unlock()

	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return Receipt{}, err
	}

	now := s.now()
	if last := m.Withdrawal.LastWithdrawal; last != nil {
		if now.Sub(*last) < Cooldown {
			metrics.ObserveWithdrawal("rejected_cooldown")
			return Receipt{}, ErrCooldownActive
		}
	}

	limit := m.Withdrawal.DailyLimit
	if limit.IsZero() {
		limit = m.Package.DailyCap
	}
	if amount.GreaterThan(limit) {
		metrics.ObserveWithdrawal("rejected_limit")
		return Receipt{}, fmt.Errorf("%w: maximum %s", ErrLimitExceeded, limit.String())
	}

	if amount.GreaterThan(m.Earnings.AvailableBalance) {
		metrics.ObserveWithdrawal("rejected_balance")
		return Receipt{}, ErrInsufficientBalance
	}

	m.Earnings.AvailableBalance = m.Earnings.AvailableBalance.Sub(amount)
	m.Earnings.TotalWithdrawn = m.Earnings.TotalWithdrawn.Add(amount)
	m.Withdrawal.LastWithdrawal = &now
	m.Withdrawal.WalletAddress = walletAddress
	m.LastActive = now

	if _, err := s.store.UpdateMember(ctx, m); err != nil {
		return Receipt{}, err
	}

	tx, err := s.ledger.AppendTransaction(ctx, ledger.Transaction{
		MemberID:  memberID,
		Kind:      ledger.KindWithdrawal,
		Amount:    amount,
		Status:    ledger.StatusPending,
		Timestamp: now,
		Details: map[string]interface{}{
			"walletAddress": walletAddress,
			"method":        SettlementMethod,
		},
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("record withdrawal: %w", err)
	}

	metrics.ObserveWithdrawal("accepted")
	s.log.WithField("member_id", memberID).
		WithField("amount", amount.String()).
		WithField("tx_id", tx.ID).
		Info("withdrawal request recorded")

	return Receipt{TransactionID: tx.ID, NewBalance: m.Earnings.AvailableBalance}, nil
}
