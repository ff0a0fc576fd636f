package services

import (
	"context"
	"testing"

	"pledge-desk/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPenalty(t *testing.T) {
	assert.Equal(t, "300", Penalty(amount(30_000), amount(1), 10).String())
	assert.True(t, Penalty(amount(30_000), amount(1), 0).IsZero())
	assert.True(t, Penalty(amount(0), amount(1), 10).IsZero())
}

func TestMarkOverdue(t *testing.T) {
	ctx := context.Background()
	svc, repo := newInterestService(t)
	overdue := NewOverdueService(repo, amount(1), zaptest.NewLogger(t))

	marked, err := overdue.MarkOverdue(ctx, day("2025-02-10"))
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	first := scheduleOf(t, repo)[0]
	assert.Equal(t, string(domain.PeriodOverdue), first.Status)
	assert.Equal(t, "300", first.PenaltyInterest.String())

	p, err := repo.GetByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusOverdue), p.Status)

	// a second run on the same day is idempotent
	marked, err = overdue.MarkOverdue(ctx, day("2025-02-10"))
	require.NoError(t, err)
	assert.Zero(t, marked)
	assert.Equal(t, "300", scheduleOf(t, repo)[0].PenaltyInterest.String())

	_, err = svc.PayInterest(ctx, "P1", &PayInterestInput{
		PeriodNumber: 1, PayDate: "2025-02-10", Amount: amount(30_300), PaymentMethod: "CASH", EntryID: first.ID,
	}, 1)
	require.NoError(t, err)

	p, err = repo.GetByID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusBorrowing), p.Status)
	assert.Equal(t, string(domain.PeriodPaid), scheduleOf(t, repo)[0].Status)
}

func TestMarkOverdue_SkipsClosedPledges(t *testing.T) {
	ctx := context.Background()
	_, repo := newInterestService(t)

	p, err := repo.GetByID(ctx, "P1")
	require.NoError(t, err)
	p.Status = string(domain.StatusLiquidated)
	require.NoError(t, repo.Update(ctx, p))

	marked, err := NewOverdueService(repo, amount(1), nil).MarkOverdue(ctx, day("2025-06-01"))
	require.NoError(t, err)
	assert.Zero(t, marked)
	assert.Equal(t, string(domain.PeriodPending), scheduleOf(t, repo)[0].Status)
}

func TestOverdueService_StartRejectsBadSpec(t *testing.T) {
	_, repo := newInterestService(t)
	overdue := NewOverdueService(repo, amount(1), nil)

	assert.Error(t, overdue.Start("not a spec"))
	overdue.Stop()
}
