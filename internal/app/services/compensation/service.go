// Package compensation implements the earning engine: daily ROI accrual with
// the 250% lifetime cap, investments with referral commission and upline
// volume propagation, and binary matching income.
package compensation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/plan"
	"github.com/podcastofficial/Usdt-miner/internal/app/locks"
	"github.com/podcastofficial/Usdt-miner/internal/app/services/booster"
	"github.com/podcastofficial/Usdt-miner/internal/app/services/members"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

// ErrInvalidPackage rejects investments into unknown tiers.
var ErrInvalidPackage = errors.New("unknown package tier")

var (
	roiCapMultiplier = decimal.RequireFromString("2.5")
	commissionRate   = decimal.RequireFromString("0.08")
	binaryMatchRate  = decimal.RequireFromString("0.10")
	two              = decimal.NewFromInt(2)
	hundred          = decimal.NewFromInt(100)
)

// Dashboard is the per-member overview served to clients.
type Dashboard struct {
	Member        member.Member        `json:"member"`
	Transactions  []ledger.Transaction `json:"transactions"`
	TodayROI      decimal.Decimal      `json:"todayROI"`
	BinaryIncome  decimal.Decimal      `json:"binaryIncome"`
	Booster       booster.Report       `json:"booster"`
	Tiers         []plan.Tier          `json:"packages"`
	PlatformStats Stats                `json:"stats"`
}

// Stats aggregates platform-wide totals.
type Stats struct {
	TotalMembers     int             `json:"totalMembers"`
	ActiveMembers    int             `json:"activeMembers"`
	TotalInvestment  decimal.Decimal `json:"totalInvestment"`
	TotalWithdrawals decimal.Decimal `json:"totalWithdrawals"`
}

// Service computes and applies compensation-plan earnings.
type Service struct {
	store   storage.MemberStore
	ledger  storage.TransactionLog
	members *members.Service
	catalog plan.Catalog
	locks   *locks.Keyed
	log     *logger.Logger
}

// New constructs the engine. The catalog is bound at construction and never
// mutated afterwards.
func New(store storage.MemberStore, log storage.TransactionLog, membersSvc *members.Service, catalog plan.Catalog, keyed *locks.Keyed, lg *logger.Logger) *Service {
	if lg == nil {
		lg = logger.NewDefault("compensation")
	}
	if keyed == nil {
		keyed = locks.New()
	}
	return &Service{
		store:   store,
		ledger:  log,
		members: membersSvc,
		catalog: catalog,
		locks:   keyed,
		log:     lg,
	}
}

// Catalog exposes the bound tier table.
func (s *Service) Catalog() plan.Catalog { return s.catalog }

// Accrue computes the next daily ROI amount for a member without mutating
// anything. It returns zero when no package is active or the 250% lifetime
// cap has been reached; the final accrual before the cap is partial.
func (s *Service) Accrue(m member.Member) decimal.Decimal {
	if !m.HasPackage() {
		return decimal.Zero
	}

	maxROI := m.Package.Amount.Mul(roiCapMultiplier)
	if m.Package.ROIEarned.GreaterThanOrEqual(maxROI) {
		return decimal.Zero
	}

	rate := m.Package.DailyROI
	if m.Booster.Active {
		rate = rate.Mul(two)
	}

	remaining := maxROI.Sub(m.Package.ROIEarned)
	return decimal.Min(rate, remaining)
}

// BinaryIncome returns the matching volume and the income it would pay out:
// 10% of min(left, right), clamped to the package daily cap. It is read-only;
// matched volume is never consumed.
func (s *Service) BinaryIncome(m member.Member) (matching, income decimal.Decimal) {
	matching = decimal.Min(m.Binary.LeftVolume, m.Binary.RightVolume)
	income = matching.Mul(binaryMatchRate).Round(2)
	if income.GreaterThan(m.Package.DailyCap) {
		income = m.Package.DailyCap
	}
	return matching, income
}

// Invest replaces the member's package with the named tier. Replacement is
// wholesale: prior ROI progress is discarded and the lifetime cap restarts
// against the new amount. The invested volume is propagated up the tree and
// the immediate referrer earns a one-time 8% commission.
func (s *Service) Invest(ctx context.Context, memberID, tierName string) (plan.Tier, error) {
	tierName = strings.ToLower(strings.TrimSpace(tierName))
	tier, ok := s.catalog.Get(tierName)
	if !ok {
		return plan.Tier{}, fmt.Errorf("%w: %s", ErrInvalidPackage, tierName)
	}

	m, err := s.applyInvestment(ctx, memberID, tier)
	if err != nil {
		return plan.Tier{}, err
	}

	if _, err := s.ledger.AppendTransaction(ctx, ledger.Transaction{
		MemberID:  memberID,
		Kind:      ledger.KindInvestment,
		Amount:    tier.Amount,
		Status:    ledger.StatusCompleted,
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{"package": tier.Name},
	}); err != nil {
		return plan.Tier{}, fmt.Errorf("record investment: %w", err)
	}

	if err := s.members.PropagateVolume(ctx, memberID, tier.Amount); err != nil {
		return plan.Tier{}, fmt.Errorf("propagate volume: %w", err)
	}

	if m.Binary.ParentID != "" {
		if err := s.awardCommission(ctx, m.Binary.ParentID, memberID, tier.Amount); err != nil {
			return plan.Tier{}, fmt.Errorf("award commission: %w", err)
		}
	}

	s.log.WithField("member_id", memberID).
		WithField("package", tier.Name).
		WithField("amount", tier.Amount.String()).
		Info("investment recorded")
	return tier, nil
}

func (s *Service) applyInvestment(ctx context.Context, memberID string, tier plan.Tier) (member.Member, error) {
	unlock := s.locks.Lock(memberID)
	defer unlock()

	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return member.Member{}, err
	}

	now := time.Now().UTC()
	m.Package = member.Package{
		Name:        tier.Name,
		Amount:      tier.Amount,
		DailyROI:    tier.DailyROI,
		DailyCap:    tier.DailyCap,
		PurchasedAt: &now,
		ROIDays:     250,
	}
	m.Withdrawal.DailyLimit = tier.DailyCap
	m.Booster.DaysLeft = 7
	m.LastActive = now

	return s.store.UpdateMember(ctx, m)
}

// awardCommission credits the level-0 referrer with 8% of the invested
// amount. Commission never propagates beyond the immediate referrer.
func (s *Service) awardCommission(ctx context.Context, referrerID, investorID string, amount decimal.Decimal) error {
	commission := amount.Mul(commissionRate).Round(2)

	unlock := s.locks.Lock(referrerID)
	referrer, err := s.store.GetMember(ctx, referrerID)
	if err != nil {
		unlock()
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	referrer.Earnings.ReferralBalance = referrer.Earnings.ReferralBalance.Add(commission)
	referrer.Earnings.AvailableBalance = referrer.Earnings.AvailableBalance.Add(commission)
	referrer.Earnings.TotalReferral = referrer.Earnings.TotalReferral.Add(commission)

	_, err = s.store.UpdateMember(ctx, referrer)
	unlock()
	if err != nil {
		return err
	}

	_, err = s.ledger.AppendTransaction(ctx, ledger.Transaction{
		MemberID:  referrerID,
		Kind:      ledger.KindReferral,
		Amount:    commission,
		Status:    ledger.StatusCompleted,
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{"level": 0, "referredMember": investorID},
	})
	return err
}

// Dashboard assembles the member overview.
func (s *Service) Dashboard(ctx context.Context, memberID string) (Dashboard, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return Dashboard{}, err
	}

	transactions, err := s.ledger.ListTransactions(ctx, memberID, 10)
	if err != nil {
		return Dashboard{}, err
	}

	stats, err := s.PlatformStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	_, income := s.BinaryIncome(m)
	return Dashboard{
		Member:        m,
		Transactions:  transactions,
		TodayROI:      s.Accrue(m),
		BinaryIncome:  income,
		Booster:       booster.Evaluate(m),
		Tiers:         s.catalog.List(),
		PlatformStats: stats,
	}, nil
}

// PlatformStats aggregates totals over all members.
func (s *Service) PlatformStats(ctx context.Context) (Stats, error) {
	all, err := s.store.ListMembers(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{TotalMembers: len(all)}
	for _, m := range all {
		if m.HasPackage() {
			stats.ActiveMembers++
			stats.TotalInvestment = stats.TotalInvestment.Add(m.Package.Amount)
		}
		stats.TotalWithdrawals = stats.TotalWithdrawals.Add(m.Earnings.TotalWithdrawn)
	}
	return stats, nil
}
