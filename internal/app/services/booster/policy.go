// Package booster implements the 2x ROI multiplier eligibility window.
package booster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/locks"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

// RequiredReferrals is the direct-referral threshold for activation.
const RequiredReferrals = 2

// Activation preconditions.
var (
	ErrAlreadyActive         = errors.New("booster already active")
	ErrInsufficientReferrals = errors.New("not enough direct referrals")
	ErrWindowExpired         = errors.New("booster activation window expired")
)

// Report describes a member's booster standing.
type Report struct {
	Eligible bool   `json:"eligible"`
	Active   bool   `json:"active,omitempty"`
	Expired  bool   `json:"expired,omitempty"`
	Needed   int    `json:"needed,omitempty"`
	DaysLeft int    `json:"daysLeft,omitempty"`
	Message  string `json:"message"`
}

// Evaluate is the pure eligibility check. Once active the booster is
// terminal; only the pre-activation window decays.
func Evaluate(m member.Member) Report {
	if m.Booster.Active {
		return Report{Active: true, Message: "Booster active (2x ROI)"}
	}
	if m.Booster.DaysLeft <= 0 {
		return Report{Expired: true, Message: "Booster period expired"}
	}

	count := m.DirectCount()
	if count >= RequiredReferrals {
		return Report{Eligible: true, Message: "Eligible for booster activation"}
	}

	needed := RequiredReferrals - count
	return Report{
		Needed:   needed,
		DaysLeft: m.Booster.DaysLeft,
		Message:  fmt.Sprintf("Need %d more direct referrals", needed),
	}
}

// Service applies booster activation against the store.
type Service struct {
	store storage.MemberStore
	locks *locks.Keyed
	log   *logger.Logger
}

// New constructs a booster service.
func New(store storage.MemberStore, keyed *locks.Keyed, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("booster")
	}
	if keyed == nil {
		keyed = locks.New()
	}
	return &Service{store: store, locks: keyed, log: log}
}

// Eligibility reports the member's current standing.
func (s *Service) Eligibility(ctx context.Context, memberID string) (Report, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return Report{}, err
	}
	return Evaluate(m), nil
}

// Activate turns the booster on. It fails when already active, when fewer
// than two direct referrals exist, or when the activation window has expired.
func (s *Service) Activate(ctx context.Context, memberID string) error {
	unlock := s.locks.Lock(memberID)
	defer unlock()

	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return err
	}

	if m.Booster.Active {
		return ErrAlreadyActive
	}
	if m.DirectCount() < RequiredReferrals {
		return ErrInsufficientReferrals
	}
	if m.Booster.DaysLeft <= 0 {
		return ErrWindowExpired
	}

	now := time.Now().UTC()
	m.Booster.Active = true
	m.Booster.Eligible = false
	m.Booster.CompletedAt = &now
	m.LastActive = now

	if _, err := s.store.UpdateMember(ctx, m); err != nil {
		return err
	}

	s.log.WithField("member_id", memberID).Info("booster activated")
	return nil
}
