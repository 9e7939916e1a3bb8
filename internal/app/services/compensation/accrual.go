package compensation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/podcastofficial/Usdt-miner/internal/app/domain/ledger"
	"github.com/podcastofficial/Usdt-miner/internal/app/metrics"
)

// RunSummary reports one batch accrual pass. Failures are aggregated per
// member; a failing member never aborts the run.
type RunSummary struct {
	Processed int               `json:"processed"`
	TotalROI  decimal.Decimal   `json:"totalROI"`
	Failures  map[string]string `json:"failures,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	Duration  time.Duration     `json:"-"`
}

// ApplyAccrual reads the member under its lock, accrues the daily ROI and
// writes the result back, recording a roi transaction tagged with the booster
// state in effect. It returns the accrued amount, which may be zero.
func (s *Service) ApplyAccrual(ctx context.Context, memberID string) (decimal.Decimal, error) {
	unlock := s.locks.Lock(memberID)
	defer unlock()
	return s.applyAccrualLocked(ctx, memberID)
}

func (s *Service) applyAccrualLocked(ctx context.Context, memberID string) (decimal.Decimal, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}

	roi := s.Accrue(m)
	if roi.IsZero() {
		return decimal.Zero, nil
	}

	now := time.Now().UTC()
	m.Package.ROIEarned = m.Package.ROIEarned.Add(roi)
	m.Package.ROIPercentage = m.Package.ROIEarned.Div(m.Package.Amount).Mul(hundred).Round(2)
	m.Earnings.TotalROI = m.Earnings.TotalROI.Add(roi)
	m.Earnings.AvailableBalance = m.Earnings.AvailableBalance.Add(roi)
	m.LastActive = now

	if _, err := s.store.UpdateMember(ctx, m); err != nil {
		return decimal.Zero, err
	}

	if _, err := s.ledger.AppendTransaction(ctx, ledger.Transaction{
		MemberID:  memberID,
		Kind:      ledger.KindROI,
		Amount:    roi,
		Status:    ledger.StatusCompleted,
		Timestamp: now,
		Details:   map[string]interface{}{"booster": m.Booster.Active},
	}); err != nil {
		return decimal.Zero, fmt.Errorf("record roi: %w", err)
	}

	return roi, nil
}

// RunDailyAccrual processes every member with an active package: accrue and
// apply the daily ROI, then decay the booster window for members whose
// booster is not yet active. The decay happens here and nowhere else.
func (s *Service) RunDailyAccrual(ctx context.Context) (RunSummary, error) {
	started := time.Now().UTC()
	summary := RunSummary{StartedAt: started}

	all, err := s.store.ListMembers(ctx)
	if err != nil {
		return summary, err
	}

	for _, m := range all {
		if !m.HasPackage() {
			continue
		}

		roi, err := s.accrueAndDecay(ctx, m.ID)
		if err != nil {
			if summary.Failures == nil {
				summary.Failures = make(map[string]string)
			}
			summary.Failures[m.ID] = err.Error()
			s.log.WithError(err).WithField("member_id", m.ID).Error("accrual failed")
			continue
		}
		if roi.IsPositive() {
			summary.Processed++
			summary.TotalROI = summary.TotalROI.Add(roi)
		}
	}

	summary.Duration = time.Since(started)
	roiFloat, _ := summary.TotalROI.Float64()
	metrics.ObserveAccrualRun(summary.Processed, len(summary.Failures), roiFloat, summary.Duration)

	s.log.WithField("processed", summary.Processed).
		WithField("total_roi", summary.TotalROI.String()).
		WithField("failures", len(summary.Failures)).
		Info("daily accrual run complete")
	return summary, nil
}

func (s *Service) accrueAndDecay(ctx context.Context, memberID string) (decimal.Decimal, error) {
	unlock := s.locks.Lock(memberID)
	defer unlock()

	roi, err := s.applyAccrualLocked(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}

	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	// The window decays whether or not ROI accrued today.
	if !m.Booster.Active && m.Booster.DaysLeft > 0 {
		m.Booster.DaysLeft--
		if _, err := s.store.UpdateMember(ctx, m); err != nil {
			return decimal.Zero, err
		}
	}
	return roi, nil
}
