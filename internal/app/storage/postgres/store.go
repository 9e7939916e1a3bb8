// Package postgres implements the storage contracts on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
)

// Store persists members and the transaction log in PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var (
	_ storage.MemberStore    = (*Store)(nil)
	_ storage.TransactionLog = (*Store)(nil)
)

// Open connects to the database and applies pending migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection without running migrations.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// jsonStrings stores a string slice as a JSONB array.
type jsonStrings []string

func (j jsonStrings) Value() (driver.Value, error) {
	if j == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(j))
}

func (j *jsonStrings) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(j))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(j))
	default:
		return fmt.Errorf("unsupported type %T for jsonStrings", src)
	}
}

// jsonObject stores a free-form map as JSONB.
type jsonObject map[string]interface{}

func (j jsonObject) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(j))
}

func (j *jsonObject) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*map[string]interface{})(j))
	case string:
		return json.Unmarshal([]byte(v), (*map[string]interface{})(j))
	default:
		return fmt.Errorf("unsupported type %T for jsonObject", src)
	}
}

type memberRow struct {
	ID         string    `db:"id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	JoinedAt   time.Time `db:"joined_at"`
	LastActive time.Time `db:"last_active"`
	Active     bool      `db:"active"`

	PackageName        string          `db:"package_name"`
	PackageAmount      decimal.Decimal `db:"package_amount"`
	PackageDailyROI    decimal.Decimal `db:"package_daily_roi"`
	PackageDailyCap    decimal.Decimal `db:"package_daily_cap"`
	PackagePurchasedAt *time.Time      `db:"package_purchased_at"`
	ROIEarned          decimal.Decimal `db:"roi_earned"`
	ROIPercentage      decimal.Decimal `db:"roi_percentage"`
	ROIDays            int             `db:"roi_days"`

	ParentID    string          `db:"parent_id"`
	Side        string          `db:"side"`
	LeftVolume  decimal.Decimal `db:"left_volume"`
	RightVolume decimal.Decimal `db:"right_volume"`
	LeftCount   int             `db:"left_count"`
	RightCount  int             `db:"right_count"`

	TotalROI         decimal.Decimal `db:"total_roi"`
	TotalBinary      decimal.Decimal `db:"total_binary"`
	TotalReferral    decimal.Decimal `db:"total_referral"`
	TotalWithdrawn   decimal.Decimal `db:"total_withdrawn"`
	AvailableBalance decimal.Decimal `db:"available_balance"`
	ReferralBalance  decimal.Decimal `db:"referral_balance"`

	BoosterActive      bool       `db:"booster_active"`
	BoosterEligible    bool       `db:"booster_eligible"`
	BoosterCompletedAt *time.Time `db:"booster_completed_at"`
	BoosterDaysLeft    int        `db:"booster_days_left"`

	DirectReferrals jsonStrings `db:"direct_referrals"`

	LastWithdrawal *time.Time      `db:"last_withdrawal"`
	DailyLimit     decimal.Decimal `db:"daily_limit"`
	WalletAddress  string          `db:"wallet_address"`

	Notifications bool `db:"notifications"`
	AutoReinvest  bool `db:"auto_reinvest"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toRow(m member.Member) memberRow {
	return memberRow{
		ID:         m.ID,
		Username:   m.Username,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		JoinedAt:   m.JoinedAt,
		LastActive: m.LastActive,
		Active:     m.Active,

		PackageName:        m.Package.Name,
		PackageAmount:      m.Package.Amount,
		PackageDailyROI:    m.Package.DailyROI,
		PackageDailyCap:    m.Package.DailyCap,
		PackagePurchasedAt: m.Package.PurchasedAt,
		ROIEarned:          m.Package.ROIEarned,
		ROIPercentage:      m.Package.ROIPercentage,
		ROIDays:            m.Package.ROIDays,

		ParentID:    m.Binary.ParentID,
		Side:        string(m.Binary.Side),
		LeftVolume:  m.Binary.LeftVolume,
		RightVolume: m.Binary.RightVolume,
		LeftCount:   m.Binary.LeftCount,
		RightCount:  m.Binary.RightCount,

		TotalROI:         m.Earnings.TotalROI,
		TotalBinary:      m.Earnings.TotalBinary,
		TotalReferral:    m.Earnings.TotalReferral,
		TotalWithdrawn:   m.Earnings.TotalWithdrawn,
		AvailableBalance: m.Earnings.AvailableBalance,
		ReferralBalance:  m.Earnings.ReferralBalance,

		BoosterActive:      m.Booster.Active,
		BoosterEligible:    m.Booster.Eligible,
		BoosterCompletedAt: m.Booster.CompletedAt,
		BoosterDaysLeft:    m.Booster.DaysLeft,

		DirectReferrals: jsonStrings(m.Referrals.Direct),

		LastWithdrawal: m.Withdrawal.LastWithdrawal,
		DailyLimit:     m.Withdrawal.DailyLimit,
		WalletAddress:  m.Withdrawal.WalletAddress,

		Notifications: m.Settings.Notifications,
		AutoReinvest:  m.Settings.AutoReinvest,

		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (r memberRow) toDomain() member.Member {
	return member.Member{
		ID:         r.ID,
		Username:   r.Username,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		JoinedAt:   r.JoinedAt,
		LastActive: r.LastActive,
		Active:     r.Active,

		Package: member.Package{
			Name:          r.PackageName,
			Amount:        r.PackageAmount,
			DailyROI:      r.PackageDailyROI,
			DailyCap:      r.PackageDailyCap,
			PurchasedAt:   r.PackagePurchasedAt,
			ROIEarned:     r.ROIEarned,
			ROIPercentage: r.ROIPercentage,
			ROIDays:       r.ROIDays,
		},
		Binary: member.BinaryPosition{
			ParentID:    r.ParentID,
			Side:        member.Side(r.Side),
			LeftVolume:  r.LeftVolume,
			RightVolume: r.RightVolume,
			LeftCount:   r.LeftCount,
			RightCount:  r.RightCount,
		},
		Earnings: member.Earnings{
			TotalROI:         r.TotalROI,
			TotalBinary:      r.TotalBinary,
			TotalReferral:    r.TotalReferral,
			TotalWithdrawn:   r.TotalWithdrawn,
			AvailableBalance: r.AvailableBalance,
			ReferralBalance:  r.ReferralBalance,
		},
		Booster: member.Booster{
			Active:      r.BoosterActive,
			Eligible:    r.BoosterEligible,
			CompletedAt: r.BoosterCompletedAt,
			DaysLeft:    r.BoosterDaysLeft,
		},
		Referrals: member.Referrals{
			Direct: []string(r.DirectReferrals),
		},
		Withdrawal: member.Withdrawal{
			LastWithdrawal: r.LastWithdrawal,
			DailyLimit:     r.DailyLimit,
			WalletAddress:  r.WalletAddress,
		},
		Settings: member.Settings{
			Notifications: r.Notifications,
			AutoReinvest:  r.AutoReinvest,
		},

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const memberColumns = `id, username, first_name, last_name, joined_at, last_active, active,
	package_name, package_amount, package_daily_roi, package_daily_cap, package_purchased_at,
	roi_earned, roi_percentage, roi_days,
	parent_id, side, left_volume, right_volume, left_count, right_count,
	total_roi, total_binary, total_referral, total_withdrawn, available_balance, referral_balance,
	booster_active, booster_eligible, booster_completed_at, booster_days_left,
	direct_referrals, last_withdrawal, daily_limit, wallet_address,
	notifications, auto_reinvest, created_at, updated_at`

const insertMember = `INSERT INTO members (` + memberColumns + `) VALUES (
	:id, :username, :first_name, :last_name, :joined_at, :last_active, :active,
	:package_name, :package_amount, :package_daily_roi, :package_daily_cap, :package_purchased_at,
	:roi_earned, :roi_percentage, :roi_days,
	:parent_id, :side, :left_volume, :right_volume, :left_count, :right_count,
	:total_roi, :total_binary, :total_referral, :total_withdrawn, :available_balance, :referral_balance,
	:booster_active, :booster_eligible, :booster_completed_at, :booster_days_left,
	:direct_referrals, :last_withdrawal, :daily_limit, :wallet_address,
	:notifications, :auto_reinvest, :created_at, :updated_at)`

const updateMember = `UPDATE members SET
	username = :username, first_name = :first_name, last_name = :last_name,
	joined_at = :joined_at, last_active = :last_active, active = :active,
	package_name = :package_name, package_amount = :package_amount,
	package_daily_roi = :package_daily_roi, package_daily_cap = :package_daily_cap,
	package_purchased_at = :package_purchased_at,
	roi_earned = :roi_earned, roi_percentage = :roi_percentage, roi_days = :roi_days,
	parent_id = :parent_id, side = :side,
	left_volume = :left_volume, right_volume = :right_volume,
	left_count = :left_count, right_count = :right_count,
	total_roi = :total_roi, total_binary = :total_binary, total_referral = :total_referral,
	total_withdrawn = :total_withdrawn, available_balance = :available_balance,
	referral_balance = :referral_balance,
	booster_active = :booster_active, booster_eligible = :booster_eligible,
	booster_completed_at = :booster_completed_at, booster_days_left = :booster_days_left,
	direct_referrals = :direct_referrals,
	last_withdrawal = :last_withdrawal, daily_limit = :daily_limit,
	wallet_address = :wallet_address,
	notifications = :notifications, auto_reinvest = :auto_reinvest,
	updated_at = :updated_at
	WHERE id = :id`

// CreateMember inserts a new member record.
func (s *Store) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if _, err := s.db.NamedExecContext(ctx, insertMember, toRow(m)); err != nil {
		return member.Member{}, fmt.Errorf("failed to create member %s: %w", m.ID, err)
	}
	return m, nil
}

// UpdateMember replaces the stored record wholesale.
func (s *Store) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	m.UpdatedAt = time.Now().UTC()

	res, err := s.db.NamedExecContext(ctx, updateMember, toRow(m))
	if err != nil {
		return member.Member{}, fmt.Errorf("failed to update member %s: %w", m.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return member.Member{}, fmt.Errorf("failed to update member %s: %w", m.ID, err)
	}
	if affected == 0 {
		return member.Member{}, fmt.Errorf("member %s: %w", m.ID, storage.ErrNotFound)
	}
	return m, nil
}

// GetMember fetches a member by id.
func (s *Store) GetMember(ctx context.Context, id string) (member.Member, error) {
	var row memberRow
	err := s.db.GetContext(ctx, &row, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return member.Member{}, fmt.Errorf("member %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return member.Member{}, fmt.Errorf("failed to get member %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// ListMembers returns every member record.
func (s *Store) ListMembers(ctx context.Context) ([]member.Member, error) {
	var rows []memberRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+memberColumns+` FROM members ORDER BY joined_at`); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	members := make([]member.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toDomain())
	}
	return members, nil
}

type transactionRow struct {
	ID       string          `db:"id"`
	MemberID string          `db:"member_id"`
	Kind     string          `db:"kind"`
	Amount   decimal.Decimal `db:"amount"`
	Status   string          `db:"status"`
	TS       time.Time       `db:"ts"`
	Details  jsonObject      `db:"details"`
}

// AppendTransaction records a financial event. A missing id or timestamp is
// filled in by the store.
func (s *Store) AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	row := transactionRow{
		ID:       tx.ID,
		MemberID: tx.MemberID,
		Kind:     string(tx.Kind),
		Amount:   tx.Amount,
		Status:   string(tx.Status),
		TS:       tx.Timestamp,
		Details:  jsonObject(tx.Details),
	}
	const q = `INSERT INTO transactions (id, member_id, kind, amount, status, ts, details)
		VALUES (:id, :member_id, :kind, :amount, :status, :ts, :details)`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to append transaction for %s: %w", tx.MemberID, err)
	}
	return tx, nil
}

// ListTransactions returns a member's transactions newest-first. A limit of 0
// returns the full history.
func (s *Store) ListTransactions(ctx context.Context, memberID string, limit int) ([]ledger.Transaction, error) {
	q := `SELECT id, member_id, kind, amount, status, ts, details FROM transactions
		WHERE member_id = $1 ORDER BY ts DESC`
	args := []interface{}{memberID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", memberID, err)
	}
	txs := make([]ledger.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, ledger.Transaction{
			ID:        r.ID,
			MemberID:  r.MemberID,
			Kind:      ledger.Kind(r.Kind),
			Amount:    r.Amount,
			Status:    ledger.Status(r.Status),
			Timestamp: r.TS,
			Details:   map[string]interface{}(r.Details),
		})
	}
	return txs, nil
}
