package services

import (
	"time"

	"pledge-desk/internal/adapters/persistence/models"
	"pledge-desk/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	perMille   = decimal.NewFromInt(1000)
	percent    = decimal.NewFromInt(100)
	daysPerMon = decimal.NewFromInt(30)
)

// PeriodInterest is the interest principal earns between start and due.
// Amounts are whole currency units.
func PeriodInterest(principal, rate decimal.Decimal, unit domain.RateUnit, start, due time.Time) decimal.Decimal {
	days := daysBetween(start, due)
	if days <= 0 {
		return decimal.Zero
	}

	switch unit {
	case domain.RatePercentPerMonth:
		return principal.Mul(rate).Div(percent).Mul(monthsBetween(start, due)).Round(0)
	default:
		return principal.Mul(rate).Div(perMille).Mul(decimal.NewFromInt(int64(days))).Round(0)
	}
}

// BuildSchedule lays out every period of a new pledge, interest only
func BuildSchedule(p *models.Pledge) []*models.ScheduleEntry {
	return appendPeriods(p, 1, p.StartDate, p.PeriodCount, p.PeriodLength, domain.TermUnit(p.TermUnit))
}

// appendPeriods builds count consecutive periods starting at start
func appendPeriods(p *models.Pledge, first int, start time.Time, count, length int, unit domain.TermUnit) []*models.ScheduleEntry {
	entries := make([]*models.ScheduleEntry, 0, count)
	from := dayOf(start)
	for i := 0; i < count; i++ {
		due := advance(from, length, unit)
		interest := PeriodInterest(p.RemainingPrincipal, p.InterestRate, domain.RateUnit(p.RateUnit), from, due)
		entries = append(entries, &models.ScheduleEntry{
			ID:              uuid.NewString(),
			PledgeID:        p.ID,
			PeriodNumber:    first + i,
			StartDate:       from,
			DueDate:         due,
			InterestAmount:  interest,
			PrincipalAmount: decimal.Zero,
			TotalAmount:     interest,
			PaidAmount:      decimal.Zero,
			PenaltyInterest: decimal.Zero,
			Status:          string(domain.PeriodPending),
		})
		from = due
	}
	return entries
}

// reprice recomputes the interest of an unpaid period that has not started
// by asOf for a new principal. It reports whether anything changed.
func reprice(e *models.ScheduleEntry, p *models.Pledge, asOf time.Time) bool {
	if e.Status == string(domain.PeriodPaid) || e.StartDate.Before(dayOf(asOf)) {
		return false
	}
	interest := PeriodInterest(p.RemainingPrincipal, p.InterestRate, domain.RateUnit(p.RateUnit), e.StartDate, e.DueDate)
	if interest.Equal(e.InterestAmount) {
		return false
	}
	e.InterestAmount = interest
	e.TotalAmount = interest.Add(e.PrincipalAmount)
	return true
}

// accrued is what e has earned by asOf and is still unpaid, penalty
// included. The running period accrues pro rata by day.
func accrued(e *models.ScheduleEntry, asOf time.Time) decimal.Decimal {
	if e.Status == string(domain.PeriodPaid) {
		return decimal.Zero
	}

	earned := e.PenaltyInterest
	asOf = dayOf(asOf)
	switch {
	case !asOf.After(e.StartDate):
	case !asOf.Before(e.DueDate):
		earned = earned.Add(e.TotalAmount)
	default:
		total := decimal.NewFromInt(int64(daysBetween(e.StartDate, e.DueDate)))
		elapsed := decimal.NewFromInt(int64(daysBetween(e.StartDate, asOf)))
		earned = earned.Add(e.TotalAmount.Mul(elapsed).Div(total).Round(0))
	}

	owed := earned.Sub(e.PaidAmount)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

func advance(from time.Time, length int, unit domain.TermUnit) time.Time {
	if unit == domain.TermMonth {
		return from.AddDate(0, length, 0)
	}
	return from.AddDate(0, 0, length)
}

func monthsBetween(start, due time.Time) decimal.Decimal {
	m := (due.Year()-start.Year())*12 + int(due.Month()-start.Month())
	if m > 0 && start.AddDate(0, m, 0).Equal(due) {
		return decimal.NewFromInt(int64(m))
	}
	return decimal.NewFromInt(int64(daysBetween(start, due))).Div(daysPerMon)
}

func daysBetween(from, to time.Time) int {
	return int(dayOf(to).Sub(dayOf(from)).Hours() / 24)
}

func dayOf(t time.Time) time.Time {
	return domain.NewDate(t).Time
}
