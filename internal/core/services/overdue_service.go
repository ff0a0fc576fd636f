package services

import (
	"context"
	"time"

	"pledge-desk/internal/adapters/persistence/repositories"
	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/pkg/logger"
	"pledge-desk/internal/pkg/metrics"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OverdueService runs the nightly overdue sweep
type OverdueService struct {
	repo        repositories.PledgeRepository
	penaltyRate decimal.Decimal
	now         func() time.Time
	cron        *cron.Cron
	log         *zap.Logger
}

// NewOverdueService creates a new overdue service. penaltyRate is ‰ of the
// unpaid period amount per day past due.
func NewOverdueService(repo repositories.PledgeRepository, penaltyRate decimal.Decimal, log *zap.Logger) *OverdueService {
	return &OverdueService{
		repo:        repo,
		penaltyRate: penaltyRate,
		now:         time.Now,
		log:         logger.OrNop(log).Named("overdue"),
	}
}

// Start schedules the sweep with a standard five-field cron spec
func (s *OverdueService) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return err
	}
	s.cron = c
	c.Start()

	s.log.Info("🚀 Overdue sweep scheduled", zap.String("spec", spec))
	return nil
}

// Stop waits for a running sweep to finish
func (s *OverdueService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("🛑 Overdue sweep stopped")
}

func (s *OverdueService) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.MarkOverdue(ctx, s.now()); err != nil {
		s.log.Error("❌ Overdue sweep failed", zap.Error(err))
	}
}

// MarkOverdue flags every unpaid period due before asOf as OVERDUE,
// recomputes its penalty and moves BORROWING pledges to OVERDUE. It returns
// how many periods became overdue in this run.
func (s *OverdueService) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	asOf = dayOf(asOf)
	marked := 0

	err := s.repo.WithinTransaction(ctx, func(repo repositories.PledgeRepository) error {
		entries, err := repo.ListPastDueEntries(ctx, asOf)
		if err != nil {
			return err
		}

		touched := map[string]bool{}
		for _, e := range entries {
			if open, seen := touched[e.PledgeID]; seen && !open {
				continue
			}

			pledge, err := repo.GetByID(ctx, e.PledgeID)
			if err != nil {
				return err
			}
			if pledge.IsClosed() {
				touched[e.PledgeID] = false
				continue
			}
			touched[e.PledgeID] = true

			days := daysBetween(e.DueDate, asOf)
			e.PenaltyInterest = Penalty(e.TotalAmount.Sub(e.PaidAmount), s.penaltyRate, days)
			if e.Status == string(domain.PeriodPending) {
				marked++
			}
			e.Status = string(domain.PeriodOverdue)
			if err := repo.UpdateEntry(ctx, e); err != nil {
				return err
			}

			if pledge.Status == string(domain.StatusBorrowing) {
				pledge.Status = string(domain.StatusOverdue)
				if err := repo.Update(ctx, pledge); err != nil {
					return err
				}
				s.log.Warn("⚠️ Pledge overdue", zap.String("pledge_id", pledge.ID), zap.Int("days", days))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.OverdueEntriesMarked.Add(float64(marked))
	if marked > 0 {
		s.log.Info("📌 Marked periods overdue", zap.Int("count", marked))
	}
	return marked, nil
}

// Penalty is rate ‰ of the unpaid amount for each day past due
func Penalty(unpaid, rate decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 || !unpaid.IsPositive() {
		return decimal.Zero
	}
	return unpaid.Mul(rate).Div(perMille).Mul(decimal.NewFromInt(int64(days))).Round(0)
}
