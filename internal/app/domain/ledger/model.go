// Package ledger defines the append-only financial transaction record.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a financial event.
type Kind string

const (
	KindInvestment Kind = "investment"
	KindROI        Kind = "roi"
	KindBinary     Kind = "binary"
	KindReferral   Kind = "referral"
	KindWithdrawal Kind = "withdrawal"
)

// Status is the settlement state of a transaction. Withdrawals are recorded
// as pending requests and are never auto-completed by the engine.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

// Transaction is immutable once appended to the log.
type Transaction struct {
	ID        string
	MemberID  string
	Kind      Kind
	Amount    decimal.Decimal
	Status    Status
	Timestamp time.Time
	Details   map[string]interface{}
}
