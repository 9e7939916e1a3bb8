// Package members manages registration and the binary referral tree.
package members

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/locks"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

// Profile carries the registration payload for a new member.
type Profile struct {
	Username   string
	FirstName  string
	LastName   string
	ReferrerID string
}

// TeamNode is one entry of a side-filtered team tree.
type TeamNode struct {
	ID            string          `json:"id"`
	DisplayName   string          `json:"displayName"`
	PackageAmount decimal.Decimal `json:"packageAmount"`
	Children      []TeamNode      `json:"children"`
}

// ReferralEntry describes one direct referral.
type ReferralEntry struct {
	ID            string          `json:"id"`
	DisplayName   string          `json:"displayName"`
	PackageAmount decimal.Decimal `json:"packageAmount"`
	JoinedAt      time.Time       `json:"joinedAt"`
}

// ReferralData is the referral overview for one member.
type ReferralData struct {
	Direct       []ReferralEntry `json:"direct"`
	TotalDirect  int             `json:"totalDirect"`
	ReferralLink string          `json:"referralLink"`
	EarnedDirect decimal.Decimal `json:"earnedDirect"`
	EarnedTotal  decimal.Decimal `json:"earnedTotal"`
}

// DefaultTreeDepth bounds team queries unless the caller asks otherwise.
const DefaultTreeDepth = 3

// Service maintains member records and their binary-tree placement.
type Service struct {
	store       storage.MemberStore
	locks       *locks.Keyed
	log         *logger.Logger
	botUsername string
}

// New constructs a members service.
func New(store storage.MemberStore, keyed *locks.Keyed, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("members")
	}
	if keyed == nil {
		keyed = locks.New()
	}
	return &Service{
		store:       store,
		locks:       keyed,
		log:         log,
		botUsername: "usdt_miner_bot",
	}
}

// WithBotUsername overrides the bot handle used in referral links.
func (s *Service) WithBotUsername(name string) *Service {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		s.botUsername = trimmed
	}
	return s
}

// Register creates a member record, or returns the existing one unchanged.
// Registration with a referrer places the new member into the referrer's
// binary tree; an unknown or self referrer is skipped silently.
func (s *Service) Register(ctx context.Context, id string, profile Profile) (member.Member, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return member.Member{}, fmt.Errorf("member id is required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if existing, err := s.store.GetMember(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return member.Member{}, err
	}

	now := time.Now().UTC()
	m := member.Member{
		ID:         id,
		Username:   strings.TrimSpace(profile.Username),
		FirstName:  strings.TrimSpace(profile.FirstName),
		LastName:   strings.TrimSpace(profile.LastName),
		JoinedAt:   now,
		LastActive: now,
		Active:     true,
		Package:    member.Package{ROIDays: 250},
		Settings:   member.Settings{Notifications: true},
	}

	m, err := s.store.CreateMember(ctx, m)
	if err != nil {
		return member.Member{}, err
	}

	if referrerID := strings.TrimSpace(profile.ReferrerID); referrerID != "" && referrerID != id {
		placed, err := s.place(ctx, m, referrerID)
		if err != nil {
			return member.Member{}, err
		}
		m = placed
	}

	s.log.WithField("member_id", m.ID).
		WithField("referrer_id", m.Binary.ParentID).
		Info("member registered")
	return m, nil
}

// place appends the new member to the referrer's direct list and assigns the
// binary side, favouring left on a tie. An absent referrer is a silent no-op.
func (s *Service) place(ctx context.Context, m member.Member, referrerID string) (member.Member, error) {
	unlock := s.locks.Lock(referrerID)
	defer unlock()

	referrer, err := s.store.GetMember(ctx, referrerID)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.WithField("member_id", m.ID).
			WithField("referrer_id", referrerID).
			Warn("referrer not found; member joins as root")
		return m, nil
	}
	if err != nil {
		return member.Member{}, err
	}

	if !contains(referrer.Referrals.Direct, m.ID) {
		referrer.Referrals.Direct = append(referrer.Referrals.Direct, m.ID)
	}

	side := member.SideRight
	if referrer.Binary.LeftCount <= referrer.Binary.RightCount {
		side = member.SideLeft
	}
	if side == member.SideLeft {
		referrer.Binary.LeftCount++
	} else {
		referrer.Binary.RightCount++
	}

	if _, err := s.store.UpdateMember(ctx, referrer); err != nil {
		return member.Member{}, err
	}

	m.Binary.ParentID = referrerID
	m.Binary.Side = side
	return s.store.UpdateMember(ctx, m)
}

// PropagateVolume walks the ancestor chain to the root, crediting the invested
// amount to each parent's left or right volume according to the child's side
// at that hop. There is no depth limit.
func (s *Service) PropagateVolume(ctx context.Context, memberID string, amount decimal.Decimal) error {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return err
	}

	side := m.Binary.Side
	parentID := m.Binary.ParentID
	for parentID != "" {
		parent, err := s.creditParent(ctx, parentID, side, amount)
		if errors.Is(err, storage.ErrNotFound) {
			s.log.WithField("parent_id", parentID).Warn("upline chain broken; stopping propagation")
			return nil
		}
		if err != nil {
			return err
		}
		side = parent.Binary.Side
		parentID = parent.Binary.ParentID
	}
	return nil
}

func (s *Service) creditParent(ctx context.Context, parentID string, side member.Side, amount decimal.Decimal) (member.Member, error) {
	unlock := s.locks.Lock(parentID)
	defer unlock()

	parent, err := s.store.GetMember(ctx, parentID)
	if err != nil {
		return member.Member{}, err
	}

	switch side {
	case member.SideLeft:
		parent.Binary.LeftVolume = parent.Binary.LeftVolume.Add(amount)
	case member.SideRight:
		parent.Binary.RightVolume = parent.Binary.RightVolume.Add(amount)
	}

	return s.store.UpdateMember(ctx, parent)
}

// Get fetches a member record.
func (s *Service) Get(ctx context.Context, id string) (member.Member, error) {
	return s.store.GetMember(ctx, id)
}

// List returns every registered member.
func (s *Service) List(ctx context.Context) ([]member.Member, error) {
	return s.store.ListMembers(ctx)
}

// Touch stamps the member's last-active time.
func (s *Service) Touch(ctx context.Context, id string) {
	unlock := s.locks.Lock(id)
	defer unlock()

	m, err := s.store.GetMember(ctx, id)
	if err != nil {
		return
	}
	m.LastActive = time.Now().UTC()
	if _, err := s.store.UpdateMember(ctx, m); err != nil {
		s.log.WithError(err).WithField("member_id", id).Warn("touch failed")
	}
}

// Team returns the descendants reachable through children whose assigned side
// equals side, filtered at every level. Depth 0 yields an empty list.
func (s *Service) Team(ctx context.Context, memberID string, side member.Side, depth int) ([]TeamNode, error) {
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	if depth <= 0 {
		return []TeamNode{}, nil
	}

	all, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]member.Member, len(all))
	for _, m := range all {
		index[m.ID] = m
	}

	return buildTeam(index, memberID, side, depth), nil
}

func buildTeam(index map[string]member.Member, parentID string, side member.Side, depth int) []TeamNode {
	if depth <= 0 {
		return []TeamNode{}
	}

	parent, ok := index[parentID]
	if !ok {
		return []TeamNode{}
	}

	result := []TeamNode{}
	for _, childID := range parent.Referrals.Direct {
		child, ok := index[childID]
		if !ok || child.Binary.Side != side {
			continue
		}
		result = append(result, TeamNode{
			ID:            child.ID,
			DisplayName:   child.DisplayName(),
			PackageAmount: child.Package.Amount,
			Children:      buildTeam(index, child.ID, side, depth-1),
		})
	}
	return result
}

// ReferralData assembles the direct referral overview and deep link.
func (s *Service) ReferralData(ctx context.Context, memberID string) (ReferralData, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return ReferralData{}, err
	}

	direct := make([]ReferralEntry, 0, len(m.Referrals.Direct))
	for _, id := range m.Referrals.Direct {
		ref, err := s.store.GetMember(ctx, id)
		if err != nil {
			continue
		}
		direct = append(direct, ReferralEntry{
			ID:            ref.ID,
			DisplayName:   ref.DisplayName(),
			PackageAmount: ref.Package.Amount,
			JoinedAt:      ref.JoinedAt,
		})
	}

	return ReferralData{
		Direct:       direct,
		TotalDirect:  len(direct),
		ReferralLink: fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, m.ID),
		EarnedDirect: m.Earnings.TotalReferral,
		EarnedTotal:  m.Earnings.TotalReferral,
	}, nil
}

func contains(list []string, id string) bool {
	for _, item := range list {
		if item == id {
			return true
		}
	}
	return false
}
