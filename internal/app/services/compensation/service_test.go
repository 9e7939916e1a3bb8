package compensation

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/plan"
	"github.com/podcastofficial/Usdt-miner/internal/app/locks"
	"github.com/podcastofficial/Usdt-miner/internal/app/services/members"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage/memory"
)

func newTestEngine() (*Service, *members.Service, *memory.Store) {
	store := memory.New()
	keyed := locks.New()
	membersSvc := members.New(store, keyed, nil)
	svc := New(store, store, membersSvc, plan.DefaultCatalog(), keyed, nil)
	return svc, membersSvc, store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAccrueNoPackage(t *testing.T) {
	svc, _, _ := newTestEngine()
	if roi := svc.Accrue(member.Member{}); !roi.IsZero() {
		t.Fatalf("expected zero roi without a package, got %s", roi)
	}
}

func TestAccrueBoosterDoubles(t *testing.T) {
	svc, _, _ := newTestEngine()

	m := member.Member{
		Package: member.Package{Name: "silver", Amount: dec("25"), DailyROI: dec("0.25")},
	}
	if roi := svc.Accrue(m); !roi.Equal(dec("0.25")) {
		t.Fatalf("expected 0.25, got %s", roi)
	}

	m.Booster.Active = true
	if roi := svc.Accrue(m); !roi.Equal(dec("0.5")) {
		t.Fatalf("expected 0.5 with booster, got %s", roi)
	}
}

func TestAccruePartialFinalBeforeCap(t *testing.T) {
	svc, _, _ := newTestEngine()

	// Lifetime cap for silver is 62.5; at 62.4 earned only 0.1 remains.
	m := member.Member{
		Package: member.Package{
			Name:      "silver",
			Amount:    dec("25"),
			DailyROI:  dec("0.25"),
			ROIEarned: dec("62.4"),
		},
	}
	if roi := svc.Accrue(m); !roi.Equal(dec("0.1")) {
		t.Fatalf("expected partial final accrual 0.1, got %s", roi)
	}

	m.Package.ROIEarned = dec("62.5")
	if roi := svc.Accrue(m); !roi.IsZero() {
		t.Fatalf("expected zero at the lifetime cap, got %s", roi)
	}
}

func TestBinaryIncomeClampedToDailyCap(t *testing.T) {
	svc, _, _ := newTestEngine()

	m := member.Member{
		Package: member.Package{Name: "basic", Amount: dec("10"), DailyCap: dec("10")},
		Binary: member.BinaryPosition{
			LeftVolume:  dec("500"),
			RightVolume: dec("300"),
		},
	}
	matching, income := svc.BinaryIncome(m)
	if !matching.Equal(dec("300")) {
		t.Fatalf("expected matching volume 300, got %s", matching)
	}
	// 10% of 300 is 30, clamped to the basic daily cap of 10.
	if !income.Equal(dec("10")) {
		t.Fatalf("expected clamped income 10, got %s", income)
	}

	m.Binary.RightVolume = dec("50")
	_, income = svc.BinaryIncome(m)
	if !income.Equal(dec("5")) {
		t.Fatalf("expected income 5, got %s", income)
	}
}

func TestInvestUnknownTier(t *testing.T) {
	svc, membersSvc, _ := newTestEngine()
	ctx := context.Background()

	if _, err := membersSvc.Register(ctx, "100", members.Profile{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Invest(ctx, "100", "mega"); !errors.Is(err, ErrInvalidPackage) {
		t.Fatalf("expected ErrInvalidPackage, got %v", err)
	}
}

func TestInvestAwardsCommissionAndPropagatesVolume(t *testing.T) {
	svc, membersSvc, store := newTestEngine()
	ctx := context.Background()

	if _, err := membersSvc.Register(ctx, "root", members.Profile{}); err != nil {
		t.Fatalf("Register root failed: %v", err)
	}
	if _, err := membersSvc.Register(ctx, "child", members.Profile{ReferrerID: "root"}); err != nil {
		t.Fatalf("Register child failed: %v", err)
	}

	tier, err := svc.Invest(ctx, "child", "Basic")
	if err != nil {
		t.Fatalf("Invest failed: %v", err)
	}
	if tier.Name != "basic" {
		t.Fatalf("tier lookup must be case-insensitive, got %q", tier.Name)
	}

	child, _ := store.GetMember(ctx, "child")
	if child.Package.Name != "basic" || !child.Package.Amount.Equal(dec("10")) {
		t.Fatalf("unexpected package %+v", child.Package)
	}
	if child.Booster.DaysLeft != 7 {
		t.Fatalf("expected 7-day booster window, got %d", child.Booster.DaysLeft)
	}
	if !child.Withdrawal.DailyLimit.Equal(dec("10")) {
		t.Fatalf("expected daily limit 10, got %s", child.Withdrawal.DailyLimit)
	}

	root, _ := store.GetMember(ctx, "root")
	if !root.Binary.LeftVolume.Equal(dec("10")) {
		t.Fatalf("expected propagated left volume 10, got %s", root.Binary.LeftVolume)
	}
	// 8% of the 10 USDT basic package.
	if !root.Earnings.TotalReferral.Equal(dec("0.8")) {
		t.Fatalf("expected commission 0.8, got %s", root.Earnings.TotalReferral)
	}
	if !root.Earnings.AvailableBalance.Equal(dec("0.8")) {
		t.Fatalf("commission must be spendable, got %s", root.Earnings.AvailableBalance)
	}

	rootTxs, err := store.ListTransactions(ctx, "root", 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(rootTxs) != 1 || rootTxs[0].Kind != ledger.KindReferral {
		t.Fatalf("expected one referral transaction, got %+v", rootTxs)
	}
	if rootTxs[0].Details["level"] != 0 {
		t.Fatalf("commission must be level 0, got %v", rootTxs[0].Details["level"])
	}

	childTxs, err := store.ListTransactions(ctx, "child", 0)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(childTxs) != 1 || childTxs[0].Kind != ledger.KindInvestment {
		t.Fatalf("expected one investment transaction, got %+v", childTxs)
	}
}

func TestInvestReplacementResetsCapProgress(t *testing.T) {
	svc, membersSvc, store := newTestEngine()
	ctx := context.Background()

	if _, err := membersSvc.Register(ctx, "100", members.Profile{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Invest(ctx, "100", "basic"); err != nil {
		t.Fatalf("Invest failed: %v", err)
	}

	m, _ := store.GetMember(ctx, "100")
	m.Package.ROIEarned = dec("20")
	if _, err := store.UpdateMember(ctx, m); err != nil {
		t.Fatalf("UpdateMember failed: %v", err)
	}

	if _, err := svc.Invest(ctx, "100", "gold"); err != nil {
		t.Fatalf("second Invest failed: %v", err)
	}
	m, _ = store.GetMember(ctx, "100")
	if !m.Package.ROIEarned.IsZero() {
		t.Fatalf("replacement must reset roi progress, got %s", m.Package.ROIEarned)
	}
	if m.Package.Name != "gold" {
		t.Fatalf("expected gold package, got %q", m.Package.Name)
	}
}

func TestApplyAccrualUpdatesBalances(t *testing.T) {
	svc, membersSvc, store := newTestEngine()
	ctx := context.Background()

	if _, err := membersSvc.Register(ctx, "100", members.Profile{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Invest(ctx, "100", "silver"); err != nil {
		t.Fatalf("Invest failed: %v", err)
	}

	roi, err := svc.ApplyAccrual(ctx, "100")
	if err != nil {
		t.Fatalf("ApplyAccrual failed: %v", err)
	}
	if !roi.Equal(dec("0.25")) {
		t.Fatalf("expected roi 0.25, got %s", roi)
	}

	m, _ := store.GetMember(ctx, "100")
	if !m.Package.ROIEarned.Equal(dec("0.25")) {
		t.Fatalf("expected roi earned 0.25, got %s", m.Package.ROIEarned)
	}
	// 0.25 of 25 is 1%.
	if !m.Package.ROIPercentage.Equal(dec("1")) {
		t.Fatalf("expected roi percentage 1, got %s", m.Package.ROIPercentage)
	}
	if !m.Earnings.AvailableBalance.Equal(dec("0.25")) {
		t.Fatalf("expected balance 0.25, got %s", m.Earnings.AvailableBalance)
	}
}

func TestRunDailyAccrualDecaysBoosterWindow(t *testing.T) {
	svc, membersSvc, store := newTestEngine()
	ctx := context.Background()

	if _, err := membersSvc.Register(ctx, "100", members.Profile{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Invest(ctx, "100", "basic"); err != nil {
		t.Fatalf("Invest failed: %v", err)
	}

	// A member without a package is skipped entirely.
	if _, err := membersSvc.Register(ctx, "idle", members.Profile{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	summary, err := svc.RunDailyAccrual(ctx)
	if err != nil {
		t.Fatalf("RunDailyAccrual failed: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("expected 1 processed, got %d", summary.Processed)
	}
	if !summary.TotalROI.Equal(dec("0.1")) {
		t.Fatalf("expected total roi 0.1, got %s", summary.TotalROI)
	}
	if len(summary.Failures) != 0 {
		t.Fatalf("expected no failures, got %v", summary.Failures)
	}

	m, _ := store.GetMember(ctx, "100")
	if m.Booster.DaysLeft != 6 {
		t.Fatalf("expected booster window to decay to 6, got %d", m.Booster.DaysLeft)
	}

	// An active booster stops the decay.
	m.Booster.Active = true
	if _, err := store.UpdateMember(ctx, m); err != nil {
		t.Fatalf("UpdateMember failed: %v", err)
	}
	if _, err := svc.RunDailyAccrual(ctx); err != nil {
		t.Fatalf("RunDailyAccrual failed: %v", err)
	}
	m, _ = store.GetMember(ctx, "100")
	if m.Booster.DaysLeft != 6 {
		t.Fatalf("active booster must not decay the window, got %d", m.Booster.DaysLeft)
	}
}

func TestDashboard(t *testing.T) {
	svc, membersSvc, _ := newTestEngine()
	ctx := context.Background()

	if _, err := membersSvc.Register(ctx, "100", members.Profile{Username: "alice"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Invest(ctx, "100", "gold"); err != nil {
		t.Fatalf("Invest failed: %v", err)
	}

	dash, err := svc.Dashboard(ctx, "100")
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if dash.Member.ID != "100" {
		t.Fatalf("unexpected member %q", dash.Member.ID)
	}
	if !dash.TodayROI.Equal(dec("1")) {
		t.Fatalf("expected today roi 1, got %s", dash.TodayROI)
	}
	if len(dash.Tiers) != 6 {
		t.Fatalf("expected 6 tiers, got %d", len(dash.Tiers))
	}
	if len(dash.Transactions) != 1 {
		t.Fatalf("expected the investment transaction, got %d", len(dash.Transactions))
	}
	if dash.PlatformStats.TotalMembers != 1 || dash.PlatformStats.ActiveMembers != 1 {
		t.Fatalf("unexpected stats %+v", dash.PlatformStats)
	}
}

func TestPlatformStats(t *testing.T) {
	svc, membersSvc, store := newTestEngine()
	ctx := context.Background()

	if _, err := membersSvc.Register(ctx, "100", members.Profile{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := membersSvc.Register(ctx, "200", members.Profile{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Invest(ctx, "100", "diamond"); err != nil {
		t.Fatalf("Invest failed: %v", err)
	}

	m, _ := store.GetMember(ctx, "200")
	m.Earnings.TotalWithdrawn = dec("42")
	if _, err := store.UpdateMember(ctx, m); err != nil {
		t.Fatalf("UpdateMember failed: %v", err)
	}

	stats, err := svc.PlatformStats(ctx)
	if err != nil {
		t.Fatalf("PlatformStats failed: %v", err)
	}
	if stats.TotalMembers != 2 || stats.ActiveMembers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.TotalInvestment.Equal(dec("500")) {
		t.Fatalf("expected total investment 500, got %s", stats.TotalInvestment)
	}
	if !stats.TotalWithdrawals.Equal(dec("42")) {
		t.Fatalf("expected total withdrawals 42, got %s", stats.TotalWithdrawals)
	}
}
