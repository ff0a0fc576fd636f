package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"pledge-desk/internal/adapters/persistence/models"
	"pledge-desk/internal/adapters/persistence/repositories"
	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/pkg/export"
	"pledge-desk/internal/pkg/pagination"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d.Time
}

func amount(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// seedPledge stores P1: 1,000,000 at 1 ‰/day, three 30-day periods from
// 2025-01-01, so every period accrues 30,000
func seedPledge(t *testing.T, repo repositories.PledgeRepository) *models.Pledge {
	t.Helper()
	p := &models.Pledge{
		ID:                 "P1",
		CustomerRef:        "C-1",
		Principal:          amount(1_000_000),
		RemainingPrincipal: amount(1_000_000),
		InterestRate:       amount(1),
		RateUnit:           string(domain.RatePerMillePerDay),
		PeriodCount:        3,
		PeriodLength:       30,
		TermUnit:           string(domain.TermDay),
		StartDate:          day("2025-01-01"),
		Status:             string(domain.StatusBorrowing),
	}
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, p))
	require.NoError(t, repo.CreateEntries(ctx, BuildSchedule(p)))
	return p
}

func newInterestService(t *testing.T) (*InterestService, repositories.PledgeRepository) {
	t.Helper()
	repo := repositories.NewMemoryPledgeRepository()
	seedPledge(t, repo)
	svc := NewInterestService(repo, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return day("2025-01-16") })
	return svc, repo
}

func scheduleOf(t *testing.T, repo repositories.PledgeRepository) []*models.ScheduleEntry {
	t.Helper()
	out, err := repo.AllEntries(context.Background(), "P1")
	require.NoError(t, err)
	return out
}

func TestBuildSchedule_PerMillePerDay(t *testing.T) {
	repo := repositories.NewMemoryPledgeRepository()
	seedPledge(t, repo)

	got := scheduleOf(t, repo)
	require.Len(t, got, 3)

	dues := []string{"2025-01-31", "2025-03-02", "2025-04-01"}
	for i, e := range got {
		assert.Equal(t, i+1, e.PeriodNumber)
		assert.Equal(t, dues[i], domain.NewDate(e.DueDate).String())
		assert.True(t, amount(30_000).Equal(e.InterestAmount), "period %d interest %s", i+1, e.InterestAmount)
		assert.True(t, e.TotalAmount.Equal(e.InterestAmount))
		assert.Equal(t, string(domain.PeriodPending), e.Status)
	}
	assert.True(t, got[1].StartDate.Equal(got[0].DueDate))
}

func TestPeriodInterest_PercentPerMonth(t *testing.T) {
	principal := amount(10_000_000)

	whole := PeriodInterest(principal, amount(2), domain.RatePercentPerMonth, day("2025-01-01"), day("2025-02-01"))
	assert.Equal(t, "200000", whole.String())

	half := PeriodInterest(principal, amount(2), domain.RatePercentPerMonth, day("2025-01-01"), day("2025-01-16"))
	assert.Equal(t, "100000", half.String())

	none := PeriodInterest(principal, amount(2), domain.RatePercentPerMonth, day("2025-01-01"), day("2025-01-01"))
	assert.True(t, none.IsZero())
}

func TestGetSummary(t *testing.T) {
	svc, _ := newInterestService(t)

	s, err := svc.GetSummary(context.Background(), "P1")
	require.NoError(t, err)

	assert.Equal(t, "P1", s.PledgeID)
	assert.Equal(t, "1000000", s.RemainingPrincipal.String())
	assert.Equal(t, "15000", s.InterestToDate.String())
	assert.True(t, s.TotalPaid.IsZero())
	assert.Equal(t, "2025-01-31", s.NextDueDate.String())
	assert.Equal(t, 0, s.OverdueDays)
	assert.Equal(t, 3, s.TotalPeriods)
	assert.Equal(t, 0, s.PaidPeriods)
	assert.Equal(t, domain.StatusBorrowing, s.Status)
}

func TestGetSummary_NotFound(t *testing.T) {
	svc, _ := newInterestService(t)

	_, err := svc.GetSummary(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPledgeNotFound)

	_, _, err = svc.ListPeriodDetails(context.Background(), "nope", pagination.NewParams(1, 10))
	assert.ErrorIs(t, err, ErrPledgeNotFound)
}

func TestListPeriodDetails_Pages(t *testing.T) {
	svc, _ := newInterestService(t)

	items, total, err := svc.ListPeriodDetails(context.Background(), "P1", pagination.NewParams(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].PeriodNumber)
}

func TestSettle(t *testing.T) {
	ctx := context.Background()

	t.Run("too low", func(t *testing.T) {
		svc, repo := newInterestService(t)

		_, err := svc.Settle(ctx, "P1", &SettleInput{Amount: amount(1_014_999), SettleDate: "2025-01-16"}, 1)
		assert.ErrorIs(t, err, ErrSettlementTooLow)

		p, err := repo.GetByID(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, string(domain.StatusBorrowing), p.Status)
	})

	t.Run("covers principal and accrued interest", func(t *testing.T) {
		svc, repo := newInterestService(t)

		res, err := svc.Settle(ctx, "P1", &SettleInput{Amount: amount(1_015_000), SettleDate: "2025-01-16", Note: "closing"}, 1)
		require.NoError(t, err)
		assert.NotEmpty(t, res.Reference)

		p, err := repo.GetByID(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, string(domain.StatusPaid), p.Status)
		assert.True(t, p.RemainingPrincipal.IsZero())

		s, err := svc.GetSummary(ctx, "P1")
		require.NoError(t, err)
		assert.True(t, s.InterestToDate.IsZero())
		assert.Equal(t, 3, s.PaidPeriods)
		assert.Equal(t, "1015000", s.TotalPaid.String())
	})
}

func TestPartialPrincipal(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)

	_, err := svc.PartialPrincipal(ctx, "P1", &PrincipalChangeInput{Amount: amount(400_000), Date: "2025-01-16"}, 1)
	require.NoError(t, err)

	p, err := repo.GetByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "600000", p.RemainingPrincipal.String())
	assert.Equal(t, "1000000", p.Principal.String())

	got := scheduleOf(t, repo)
	assert.Equal(t, "30000", got[0].InterestAmount.String(), "running period keeps its price")
	assert.Equal(t, "18000", got[1].InterestAmount.String())
	assert.Equal(t, "18000", got[2].TotalAmount.String())

	history, total, err := svc.ListPaymentHistory(ctx, "P1", pagination.NewParams(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, domain.TxPartialPrincipal, history[0].Type)
	assert.Equal(t, "400000", history[0].Amount.String())
}

func TestPartialPrincipal_FullAmountRolledBack(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)

	_, err := svc.PartialPrincipal(ctx, "P1", &PrincipalChangeInput{Amount: amount(1_000_000), Date: "2025-01-16"}, 1)
	assert.ErrorIs(t, err, ErrAmountExceedsPrincipal)

	p, err := repo.GetByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "1000000", p.RemainingPrincipal.String())

	_, total, err := repo.ListTransactions(ctx, "P1", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAdditionalLoan(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)

	res, err := svc.AdditionalLoan(ctx, "P1", &PrincipalChangeInput{Amount: amount(500_000), Date: "2025-01-16"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Additional loan recorded", res.Message)

	p, err := repo.GetByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "1500000", p.Principal.String())
	assert.Equal(t, "1500000", p.RemainingPrincipal.String())
	assert.Equal(t, "45000", scheduleOf(t, repo)[1].InterestAmount.String())
}

func TestExtendTerm(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)

	_, err := svc.ExtendTerm(ctx, "P1", &ExtendInput{TermNumber: 2, ExtendDays: 15, Reason: "customer request"}, 1)
	require.NoError(t, err)

	got := scheduleOf(t, repo)
	require.Len(t, got, 5)
	assert.Equal(t, "2025-04-01", domain.NewDate(got[3].StartDate).String())
	assert.Equal(t, "2025-04-16", domain.NewDate(got[3].DueDate).String())
	assert.Equal(t, "15000", got[3].InterestAmount.String())
	assert.Equal(t, "2025-05-01", domain.NewDate(got[4].DueDate).String())

	p, err := repo.GetByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.PeriodCount)
}

func TestPayInterest(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)
	first := scheduleOf(t, repo)[0]

	res, err := svc.PayInterest(ctx, "P1", &PayInterestInput{
		PeriodNumber: 1, PayDate: "2025-01-20", Amount: amount(10_000), PaymentMethod: "CASH", EntryID: first.ID,
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Partial interest payment recorded", res.Message)

	got := scheduleOf(t, repo)[0]
	assert.Equal(t, string(domain.PeriodPending), got.Status)
	assert.Equal(t, "10000", got.PaidAmount.String())

	res, err = svc.PayInterest(ctx, "P1", &PayInterestInput{
		PeriodNumber: 1, PayDate: "2025-01-31", Amount: amount(20_000), PaymentMethod: "TRANSFER", EntryID: first.ID,
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Interest payment recorded", res.Message)

	got = scheduleOf(t, repo)[0]
	assert.Equal(t, string(domain.PeriodPaid), got.Status)
	require.NotNil(t, got.PaidAt)

	history, _, err := svc.ListPaymentHistory(ctx, "P1", pagination.NewParams(1, 10))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.PaymentTransfer, history[0].PaymentMethod, "newest first")
	assert.Equal(t, 1, history[0].PeriodNumber)
}

func TestPayInterest_PenaltyKeepsPeriodOpen(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)
	first := scheduleOf(t, repo)[0]
	first.PenaltyInterest = amount(900)
	first.Status = string(domain.PeriodOverdue)
	require.NoError(t, repo.UpdateEntry(ctx, first))

	// the desk reconciles against the same figure
	assert.Equal(t, "30900", first.ToDomain().Outstanding().String())

	pay := func(n int64) *MutationResult {
		res, err := svc.PayInterest(ctx, "P1", &PayInterestInput{
			PeriodNumber: 1, PayDate: "2025-02-05", Amount: amount(n), PaymentMethod: "CASH", EntryID: first.ID,
		}, 1)
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, "Partial interest payment recorded", pay(30_000).Message)
	got := scheduleOf(t, repo)[0]
	assert.Equal(t, string(domain.PeriodOverdue), got.Status)
	assert.Equal(t, "900", got.Owed().String())

	assert.Equal(t, "Interest payment recorded", pay(900).Message)
	got = scheduleOf(t, repo)[0]
	assert.Equal(t, string(domain.PeriodPaid), got.Status)
	assert.True(t, got.Owed().IsZero())
}

func TestPayInterest_Errors(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)
	first := scheduleOf(t, repo)[0]

	pay := func(entryID string, period int) error {
		_, err := svc.PayInterest(ctx, "P1", &PayInterestInput{
			PeriodNumber: period, PayDate: "2025-01-31", Amount: amount(30_000), PaymentMethod: "CASH", EntryID: entryID,
		}, 1)
		return err
	}

	assert.ErrorIs(t, pay("missing", 1), ErrEntryNotFound)
	assert.ErrorIs(t, pay(first.ID, 2), ErrPeriodMismatch)
	require.NoError(t, pay(first.ID, 1))
	assert.ErrorIs(t, pay(first.ID, 1), ErrPeriodAlreadyPaid)

	_, err := svc.PayInterest(ctx, "P1", &PayInterestInput{
		PeriodNumber: 2, PayDate: "2025-01-31", Amount: decimal.RequireFromString("10.5"), PaymentMethod: "CASH", EntryID: first.ID,
	}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "amount", ve.Field)
}

func TestMutations_ClosedContract(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)

	p, err := repo.GetByID(ctx, "P1")
	require.NoError(t, err)
	p.Status = string(domain.StatusLiquidated)
	require.NoError(t, repo.Update(ctx, p))

	_, err = svc.Settle(ctx, "P1", &SettleInput{Amount: amount(2_000_000), SettleDate: "2025-01-16"}, 1)
	assert.ErrorIs(t, err, ErrContractClosed)

	_, err = svc.ExtendTerm(ctx, "P1", &ExtendInput{TermNumber: 1, ExtendDays: 30}, 1)
	assert.ErrorIs(t, err, ErrContractClosed)

	_, err = svc.AdditionalLoan(ctx, "P1", &PrincipalChangeInput{Amount: amount(1), Date: "2025-01-16"}, 1)
	assert.ErrorIs(t, err, ErrContractClosed)

	s, err := svc.GetSummary(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, s.InterestToDate.IsZero())
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newInterestService(t)

	var xlsx bytes.Buffer
	require.NoError(t, svc.Export(ctx, "P1", domain.TabDetails, export.FormatExcel, &xlsx))
	assert.True(t, bytes.HasPrefix(xlsx.Bytes(), []byte("PK")))

	var pdf bytes.Buffer
	require.NoError(t, svc.Export(ctx, "P1", domain.TabOneTimeFees, export.FormatPDF, &pdf))
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")))

	err := svc.Export(ctx, "P1", domain.Tab("bogus"), export.FormatPDF, &pdf)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
