package config

import (
	"context"
	"time"

	"pledge-desk/internal/adapters/persistence/models"
	"pledge-desk/internal/adapters/persistence/repositories"
	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/core/services"
	"pledge-desk/internal/pkg/password"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Seeder handles demo data seeding
type Seeder struct {
	users   repositories.UserRepository
	pledges repositories.PledgeRepository
	log     *zap.Logger
	now     func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(users repositories.UserRepository, pledges repositories.PledgeRepository, log *zap.Logger) *Seeder {
	return &Seeder{users: users, pledges: pledges, log: log, now: time.Now}
}

// Demo staff accounts. Development only.
var demoUsers = []struct {
	username, fullName, password, role string
}{
	{"clerk", "Counter Clerk", "clerk12345", models.RoleClerk},
	{"manager", "Branch Manager", "manager12345", models.RoleManager},
}

// Run executes all seeders
func (s *Seeder) Run(ctx context.Context) error {
	s.log.Info("🌱 Running seeders...")

	if err := s.seedUsers(ctx); err != nil {
		s.log.Warn("⚠️ User seeder skipped", zap.Error(err))
	}
	if err := s.seedPledges(ctx); err != nil {
		return err
	}

	s.log.Info("✅ Seeding completed")
	return nil
}

func (s *Seeder) seedUsers(ctx context.Context) error {
	for _, u := range demoUsers {
		exists, err := s.users.ExistsByUsername(ctx, u.username)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		hashed, err := password.Hash(u.password)
		if err != nil {
			return err
		}
		if err := s.users.Create(ctx, &models.User{
			Username: u.username,
			FullName: u.fullName,
			Password: hashed,
			Role:     u.role,
			IsActive: true,
		}); err != nil {
			return err
		}
		s.log.Info("✅ Demo user created", zap.String("username", u.username))
	}
	return nil
}

func (s *Seeder) seedPledges(ctx context.Context) error {
	today := domain.NewDate(s.now()).Time

	demo := []*models.Pledge{
		{
			ID:           "P1",
			CustomerRef:  "C-1001",
			CustomerName: "Somchai Jaidee",
			Collateral:   "Gold necklace 2 baht",
			Principal:    decimal.NewFromInt(10_000_000),
			InterestRate: decimal.RequireFromString("0.5"),
			RateUnit:     string(domain.RatePerMillePerDay),
			PeriodCount:  6,
			PeriodLength: 30,
			TermUnit:     string(domain.TermDay),
			StartDate:    today.AddDate(0, 0, -45),
			Status:       string(domain.StatusBorrowing),
		},
		{
			ID:           "P2",
			CustomerRef:  "C-1002",
			CustomerName: "Malee Suksan",
			Collateral:   "Laptop",
			Principal:    decimal.NewFromInt(8_000_000),
			InterestRate: decimal.NewFromInt(3),
			RateUnit:     string(domain.RatePercentPerMonth),
			PeriodCount:  3,
			PeriodLength: 1,
			TermUnit:     string(domain.TermMonth),
			StartDate:    today.AddDate(0, -6, 0),
			Status:       string(domain.StatusLiquidated),
		},
		{
			ID:           "P3",
			CustomerRef:  "C-1003",
			CustomerName: "Anan Rungreung",
			Collateral:   "Motorcycle",
			Principal:    decimal.NewFromInt(25_000_000),
			InterestRate: decimal.NewFromInt(2),
			RateUnit:     string(domain.RatePercentPerMonth),
			PeriodCount:  12,
			PeriodLength: 1,
			TermUnit:     string(domain.TermMonth),
			StartDate:    today.AddDate(0, -1, -10),
			Status:       string(domain.StatusBorrowing),
		},
	}

	for _, p := range demo {
		exists, err := s.pledges.Exists(ctx, p.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		p.RemainingPrincipal = p.Principal
		entries := services.BuildSchedule(p)

		err = s.pledges.WithinTransaction(ctx, func(repo repositories.PledgeRepository) error {
			if err := repo.Create(ctx, p); err != nil {
				return err
			}
			if err := repo.CreateEntries(ctx, entries); err != nil {
				return err
			}
			return s.seedHistory(ctx, repo, p, entries)
		})
		if err != nil {
			return err
		}
		s.log.Info("✅ Demo pledge created", zap.String("pledge_id", p.ID), zap.String("status", p.Status))
	}
	return nil
}

// seedHistory pays the first period and charges an appraisal fee
func (s *Seeder) seedHistory(ctx context.Context, repo repositories.PledgeRepository, p *models.Pledge, entries []*models.ScheduleEntry) error {
	if err := repo.CreateFee(ctx, &models.OneTimeFee{
		ID:       uuid.NewString(),
		PledgeID: p.ID,
		FeeType:  "APPRAISAL",
		Amount:   decimal.NewFromInt(50_000),
		FeeDate:  p.StartDate,
		Note:     "Collateral appraisal",
	}); err != nil {
		return err
	}

	if len(entries) == 0 || p.Status == string(domain.StatusLiquidated) {
		return nil
	}

	first := entries[0]
	paidAt := first.DueDate
	first.PaidAmount = first.TotalAmount
	first.Status = string(domain.PeriodPaid)
	first.PaidAt = &paidAt
	if err := repo.UpdateEntry(ctx, first); err != nil {
		return err
	}

	return repo.CreateTransaction(ctx, &models.PaymentTransaction{
		ID:            uuid.NewString(),
		PledgeID:      p.ID,
		EntryID:       &first.ID,
		PeriodNumber:  first.PeriodNumber,
		Type:          string(domain.TxInterestPayment),
		Amount:        first.TotalAmount,
		TxDate:        paidAt,
		PaymentMethod: string(domain.PaymentCash),
	})
}
