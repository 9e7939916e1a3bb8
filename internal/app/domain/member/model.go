// Package member defines the participant record and its binary-tree position.
package member

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies the leg of the binary tree a member was placed on.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Member is one participant in the compensation scheme, keyed by an opaque
// external identifier (a Telegram id in the source domain).
type Member struct {
	ID         string
	Username   string
	FirstName  string
	LastName   string
	JoinedAt   time.Time
	LastActive time.Time
	Active     bool

	Package    Package
	Binary     BinaryPosition
	Earnings   Earnings
	Booster    Booster
	Referrals  Referrals
	Withdrawal Withdrawal
	Settings   Settings

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Package holds the member's current investment tier. An empty Name means no
// package has been purchased yet.
type Package struct {
	Name          string
	Amount        decimal.Decimal
	DailyROI      decimal.Decimal
	DailyCap      decimal.Decimal
	PurchasedAt   *time.Time
	ROIEarned     decimal.Decimal
	ROIPercentage decimal.Decimal
	ROIDays       int
}

// BinaryPosition records the member's place in the referral tree. Side is
// assigned exactly once, at placement, and never changes afterwards.
type BinaryPosition struct {
	ParentID    string
	Side        Side
	LeftVolume  decimal.Decimal
	RightVolume decimal.Decimal
	LeftCount   int
	RightCount  int
}

// Earnings tracks cumulative payouts and the spendable balance.
type Earnings struct {
	TotalROI         decimal.Decimal
	TotalBinary      decimal.Decimal
	TotalReferral    decimal.Decimal
	TotalWithdrawn   decimal.Decimal
	AvailableBalance decimal.Decimal
	ReferralBalance  decimal.Decimal
}

// Booster is the 2x ROI multiplier state. DaysLeft is the activation window,
// reset to 7 on each investment and decremented only by the daily accrual run.
type Booster struct {
	Active      bool
	Eligible    bool
	CompletedAt *time.Time
	DaysLeft    int
}

// Referrals lists directly-referred member ids in referral order.
type Referrals struct {
	Direct []string
}

// Withdrawal carries the gating state for payout requests.
type Withdrawal struct {
	LastWithdrawal *time.Time
	DailyLimit     decimal.Decimal
	WalletAddress  string
}

// Settings are informational member preferences.
type Settings struct {
	Notifications bool
	AutoReinvest  bool
}

// HasPackage reports whether the member holds an active investment package.
func (m Member) HasPackage() bool {
	return m.Package.Name != "" && m.Package.Amount.IsPositive()
}

// DirectCount returns the number of direct referrals.
func (m Member) DirectCount() int {
	return len(m.Referrals.Direct)
}

// DisplayName picks the best available human-readable name.
func (m Member) DisplayName() string {
	if m.Username != "" {
		return m.Username
	}
	if m.FirstName != "" {
		return m.FirstName
	}
	return "User"
}
