package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"pledge-desk/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeLedger records every call in order
type fakeLedger struct {
	mu    sync.Mutex
	calls []string

	summary    *domain.InterestSummary
	summaryErr error
	schedule   []domain.PaymentScheduleEntry
	details    func(page, size int) (*domain.Page[domain.PaymentScheduleEntry], error)
	mutateErr  error
	mutateGate chan struct{}
	mutated    []domain.WorkflowAction
}

func (f *fakeLedger) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeLedger) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLedger) Mutated() []domain.WorkflowAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.WorkflowAction(nil), f.mutated...)
}

func (f *fakeLedger) GetSummary(_ context.Context, id string) (*domain.InterestSummary, error) {
	f.record("GET summary %s", id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	s := *f.summary
	return &s, nil
}

func (f *fakeLedger) GetContract(_ context.Context, id string) (*domain.PledgeContract, error) {
	f.record("GET contract %s", id)
	return &domain.PledgeContract{ID: id, Status: domain.StatusBorrowing}, nil
}

func (f *fakeLedger) GetPeriodDetails(_ context.Context, id string, page, size int) (*domain.Page[domain.PaymentScheduleEntry], error) {
	f.record("GET details %s %d %d", id, page, size)
	if f.details != nil {
		return f.details(page, size)
	}
	return &domain.Page[domain.PaymentScheduleEntry]{
		Items: f.schedule,
		Meta:  domain.PageMeta{Page: page, Size: size, Total: int64(len(f.schedule)), TotalPages: 1},
	}, nil
}

func (f *fakeLedger) GetPaymentHistory(_ context.Context, id string, page, size int) (*domain.Page[domain.LedgerTransaction], error) {
	f.record("GET payment-history %s %d %d", id, page, size)
	return &domain.Page[domain.LedgerTransaction]{Meta: domain.PageMeta{Page: page, Size: size}}, nil
}

func (f *fakeLedger) GetOneTimeFees(_ context.Context, id string, page, size int) (*domain.Page[domain.OneTimeFee], error) {
	f.record("GET one-time-fees %s %d %d", id, page, size)
	return &domain.Page[domain.OneTimeFee]{Meta: domain.PageMeta{Page: page, Size: size}}, nil
}

func (f *fakeLedger) mutate(a domain.WorkflowAction) (domain.Ack, error) {
	f.record("POST %s %s", a.Kind(), a.PledgeID())
	if f.mutateGate != nil {
		<-f.mutateGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutated = append(f.mutated, a)
	if f.mutateErr != nil {
		return domain.Ack{}, f.mutateErr
	}
	return domain.Ack{Message: "ok", Reference: "ref-1"}, nil
}

func (f *fakeLedger) Settle(_ context.Context, a domain.Settle) (domain.Ack, error) {
	return f.mutate(a)
}

func (f *fakeLedger) ExtendTerm(_ context.Context, a domain.ExtendTerm) (domain.Ack, error) {
	return f.mutate(a)
}

func (f *fakeLedger) PartialPrincipal(_ context.Context, a domain.PartialPrincipal) (domain.Ack, error) {
	return f.mutate(a)
}

func (f *fakeLedger) AdditionalLoan(_ context.Context, a domain.AdditionalLoan) (domain.Ack, error) {
	return f.mutate(a)
}

func (f *fakeLedger) PayInterest(_ context.Context, a domain.PayInterest) (domain.Ack, error) {
	return f.mutate(a)
}

// fakeGate answers every request with confirm, optionally waiting for release
type fakeGate struct {
	mu       sync.Mutex
	requests []ConfirmationRequest
	confirm  bool
	edit     domain.WorkflowAction
	entered  chan struct{}
	release  chan struct{}
}

func (g *fakeGate) Confirm(ctx context.Context, req ConfirmationRequest) (GateResult, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return Cancelled(), ctx.Err()
		}
	}
	if g.confirm {
		return Confirmed(g.edit), nil
	}
	return Cancelled(), nil
}

func (g *fakeGate) Requests() []ConfirmationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ConfirmationRequest(nil), g.requests...)
}

// fakePresenter keeps everything it was asked to render. The workflow
// serializes its calls.
type fakePresenter struct {
	summaries     []*domain.InterestSummary
	details       []*domain.Page[domain.PaymentScheduleEntry]
	histories     []*domain.Page[domain.LedgerTransaction]
	notifications []Notification
	completed     []SubmitResult
	loading       []string
}

func (p *fakePresenter) ShowSummary(s *domain.InterestSummary)           { p.summaries = append(p.summaries, s) }
func (p *fakePresenter) ShowContract(*domain.PledgeContract)             {}
func (p *fakePresenter) ShowOneTimeFees(*domain.Page[domain.OneTimeFee]) {}
func (p *fakePresenter) Notify(n Notification)                           { p.notifications = append(p.notifications, n) }
func (p *fakePresenter) ActionCompleted(r SubmitResult)                  { p.completed = append(p.completed, r) }

func (p *fakePresenter) ShowPeriodDetails(pg *domain.Page[domain.PaymentScheduleEntry]) {
	p.details = append(p.details, pg)
}

func (p *fakePresenter) ShowPaymentHistory(pg *domain.Page[domain.LedgerTransaction]) {
	p.histories = append(p.histories, pg)
}

func (p *fakePresenter) SetLoading(r Resource, loading bool) {
	p.loading = append(p.loading, fmt.Sprintf("%s=%t", r, loading))
}

func newSummary(id string, status domain.ContractStatus) *domain.InterestSummary {
	return &domain.InterestSummary{
		PledgeID:           id,
		RemainingPrincipal: decimal.NewFromInt(8000000),
		InterestToDate:     decimal.NewFromInt(120000),
		TotalPaid:          decimal.Zero,
		Status:             status,
	}
}

type harness struct {
	ledger    *fakeLedger
	gate      *fakeGate
	presenter *fakePresenter
	wf        *PledgeInterestWorkflow
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		ledger:    &fakeLedger{summary: newSummary("P1", domain.StatusBorrowing)},
		gate:      &fakeGate{confirm: true},
		presenter: &fakePresenter{},
	}
	h.wf = New(h.ledger, h.gate, h.presenter, zaptest.NewLogger(t))
	return h
}

func partialPrincipal(t *testing.T, id string, amount int64) domain.PartialPrincipal {
	t.Helper()
	a, err := domain.NewPartialPrincipal(
		domain.Target{PledgeID: id, Status: domain.StatusBorrowing},
		domain.PrincipalChangeInput{Amount: decimal.NewFromInt(amount), Date: "2025-11-20"},
	)
	require.NoError(t, err)
	return a
}

func TestSubmit_PartialPrincipalThenSummary(t *testing.T) {
	h := newHarness(t)
	action := partialPrincipal(t, "P1", 3000000)

	res, err := h.wf.Submit(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "ref-1", res.Ack.Reference)

	assert.Equal(t, []string{"POST partial-principal P1", "GET summary P1"}, h.ledger.Calls())

	mutated := h.ledger.Mutated()
	require.Len(t, mutated, 1)
	sent := mutated[0].(domain.PartialPrincipal)
	assert.True(t, sent.Amount().Equal(decimal.NewFromInt(3000000)))
	assert.Equal(t, "2025-11-20", sent.Date().String())
	assert.Equal(t, "", sent.Note())

	require.Len(t, h.presenter.summaries, 1)
	require.Len(t, h.presenter.completed, 1)
	assert.Empty(t, h.presenter.notifications)
	assert.Equal(t, StateIdle, h.wf.State())
}

func TestSubmit_RefreshesActiveTab(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.wf.LoadPaymentHistory(ctx, "P1", 2, 5))
	_, err := h.wf.Submit(ctx, partialPrincipal(t, "P1", 1000000))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GET payment-history P1 2 5",
		"POST partial-principal P1",
		"GET summary P1",
		"GET payment-history P1 2 5",
	}, h.ledger.Calls())
	assert.Len(t, h.presenter.histories, 2)
	assert.Len(t, h.presenter.completed, 1)
}

func TestSubmit_DoubleSubmitDispatchesOnce(t *testing.T) {
	h := newHarness(t)
	h.gate.entered = make(chan struct{}, 1)
	h.gate.release = make(chan struct{})
	action := partialPrincipal(t, "P1", 3000000)

	type outcome struct {
		res SubmitResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := h.wf.Submit(context.Background(), action)
		first <- outcome{res, err}
	}()

	<-h.gate.entered
	assert.Equal(t, StateAwaitingConfirmation, h.wf.State())

	res, err := h.wf.Submit(context.Background(), action)
	assert.ErrorIs(t, err, domain.ErrActionInProgress)
	assert.Equal(t, StatusFailed, res.Status)

	close(h.gate.release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, StatusCompleted, got.res.Status)

	assert.Len(t, h.ledger.Mutated(), 1)
	assert.Len(t, h.gate.Requests(), 1)
	require.Len(t, h.presenter.notifications, 1)
	assert.Equal(t, LevelWarning, h.presenter.notifications[0].Level)
}

func TestSubmit_BusyWhileSubmitting(t *testing.T) {
	h := newHarness(t)
	h.ledger.mutateGate = make(chan struct{})
	action := partialPrincipal(t, "P1", 3000000)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.wf.Submit(context.Background(), action)
	}()

	require.Eventually(t, func() bool { return h.wf.State() == StateSubmitting }, time.Second, time.Millisecond)
	_, err := h.wf.Submit(context.Background(), action)
	assert.ErrorIs(t, err, domain.ErrActionInProgress)

	close(h.ledger.mutateGate)
	<-done
	assert.Len(t, h.ledger.Mutated(), 1)
}

func TestSubmit_CancelledMakesNoCalls(t *testing.T) {
	h := newHarness(t)
	h.gate.confirm = false

	actions := []domain.WorkflowAction{partialPrincipal(t, "P1", 3000000)}
	settle, err := domain.NewSettle(domain.Target{PledgeID: "P1"}, domain.SettleInput{Amount: decimal.NewFromInt(8120000), SettleDate: "2025-11-20"})
	require.NoError(t, err)
	extend, err := domain.NewExtendTerm(domain.Target{PledgeID: "P1"}, domain.ExtendTermInput{TermNumber: 1, ExtendDays: 30})
	require.NoError(t, err)
	loan, err := domain.NewAdditionalLoan(domain.Target{PledgeID: "P1"}, domain.PrincipalChangeInput{Amount: decimal.NewFromInt(500000), Date: "2025-11-20"})
	require.NoError(t, err)
	actions = append(actions, settle, extend, loan)

	for _, a := range actions {
		res, err := h.wf.Submit(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, res.Status)
		assert.Equal(t, a, res.Action)
		assert.Equal(t, StateIdle, h.wf.State())
	}

	assert.Empty(t, h.ledger.Calls())
	assert.Empty(t, h.presenter.notifications)
	assert.Empty(t, h.presenter.completed)
}

func TestSubmit_UnbuiltActionNeverReachesLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, a := range []domain.WorkflowAction{domain.Settle{}, domain.PayInterest{}, domain.ExtendTerm{}} {
		res, err := h.wf.Submit(ctx, a)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "action", ve.Field)
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, StateIdle, h.wf.State())
	}

	assert.Empty(t, h.gate.Requests())
	assert.Empty(t, h.ledger.Calls())
	assert.Len(t, h.presenter.notifications, 3)
}

func TestSubmit_GateCannotSwapInUnbuiltAction(t *testing.T) {
	h := newHarness(t)
	h.gate.edit = domain.PartialPrincipal{}

	res, err := h.wf.Submit(context.Background(), partialPrincipal(t, "P1", 1000))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Len(t, h.gate.Requests(), 1)
	assert.Empty(t, h.ledger.Calls())
	assert.Empty(t, h.presenter.completed)
	assert.Equal(t, StateIdle, h.wf.State())
}

func TestSubmit_RejectedLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.wf.LoadSummary(ctx, "P1"))
	before := h.wf.Summary()

	h.ledger.mutateErr = &domain.RemoteError{StatusCode: http.StatusConflict, Message: "Amount exceeds remaining principal"}
	action := partialPrincipal(t, "P1", 9000000)

	res, err := h.wf.Submit(ctx, action)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, action, res.Action)

	var mre *domain.MutationRejectedError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, domain.ActionPartialPrincipal, mre.Action)
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.Equal(t, []string{"GET summary P1", "POST partial-principal P1"}, h.ledger.Calls())
	assert.Same(t, before, h.wf.Summary())
	require.Len(t, h.presenter.notifications, 1)
	assert.Equal(t, "Amount exceeds remaining principal", h.presenter.notifications[0].Message)
	assert.Empty(t, h.presenter.completed)
	assert.Equal(t, StateIdle, h.wf.State())
}

func TestSubmit_TransportFailureIsRejection(t *testing.T) {
	h := newHarness(t)
	h.ledger.mutateErr = &domain.TransportError{Op: "settle", Err: context.DeadlineExceeded}

	res, err := h.wf.Submit(context.Background(), partialPrincipal(t, "P1", 1000))
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	var mre *domain.MutationRejectedError
	assert.True(t, errors.As(err, &mre))
	require.Len(t, h.presenter.notifications, 1)
	assert.Equal(t, "The ledger did not answer in time. Please try again.", h.presenter.notifications[0].Message)
	assert.Len(t, h.ledger.Mutated(), 1)
}

func TestTerminalContract_RejectedLocally(t *testing.T) {
	target := domain.Target{PledgeID: "P2", Status: domain.StatusLiquidated}

	_, err := domain.NewSettle(target, domain.SettleInput{Amount: decimal.NewFromInt(1), SettleDate: "2025-11-20"})
	assert.ErrorIs(t, err, domain.ErrContractTerminal)
	_, err = domain.NewExtendTerm(target, domain.ExtendTermInput{TermNumber: 1, ExtendDays: 30})
	assert.ErrorIs(t, err, domain.ErrContractTerminal)
	_, err = domain.NewPartialPrincipal(target, domain.PrincipalChangeInput{Amount: decimal.NewFromInt(1), Date: "2025-11-20"})
	assert.ErrorIs(t, err, domain.ErrContractTerminal)
	_, err = domain.NewAdditionalLoan(target, domain.PrincipalChangeInput{Amount: decimal.NewFromInt(1), Date: "2025-11-20"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "status", ve.Field)
	_, err = domain.NewPayInterest(target, domain.PayInterestInput{
		EntryID: "e-1", PeriodNumber: 1, PayDate: "2025-11-20", Amount: decimal.NewFromInt(1), PaymentMethod: domain.PaymentCash,
	})
	assert.ErrorIs(t, err, domain.ErrContractTerminal)
}

func TestSubmit_TerminalSummaryBlocksAction(t *testing.T) {
	h := newHarness(t)
	h.ledger.summary = newSummary("P2", domain.StatusLiquidated)
	ctx := context.Background()
	require.NoError(t, h.wf.LoadSummary(ctx, "P2"))

	// built before the liquidation was known
	action := partialPrincipal(t, "P2", 1000000)
	res, err := h.wf.Submit(ctx, action)

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.ErrorIs(t, err, domain.ErrContractTerminal)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, h.gate.Requests())
	assert.Empty(t, h.ledger.Mutated())
	assert.Equal(t, []string{"GET summary P2"}, h.ledger.Calls())
	assert.Len(t, h.presenter.notifications, 1)
}

func TestLoadPeriodDetails_DiscardsSupersededResponse(t *testing.T) {
	h := newHarness(t)
	startedA := make(chan struct{})
	releaseA := make(chan struct{})
	h.ledger.details = func(page, size int) (*domain.Page[domain.PaymentScheduleEntry], error) {
		entries := make([]domain.PaymentScheduleEntry, size)
		for i := range entries {
			entries[i] = domain.PaymentScheduleEntry{ID: fmt.Sprintf("e-%d", i+1), PeriodNumber: i + 1}
		}
		if size == 5 {
			close(startedA)
			<-releaseA
		}
		return &domain.Page[domain.PaymentScheduleEntry]{Items: entries, Meta: domain.PageMeta{Page: page, Size: size}}, nil
	}

	errA := make(chan error, 1)
	go func() { errA <- h.wf.LoadPeriodDetails(context.Background(), "P1", 1, 5) }()
	<-startedA

	require.NoError(t, h.wf.LoadPeriodDetails(context.Background(), "P1", 1, 20))
	close(releaseA)
	assert.ErrorIs(t, <-errA, domain.ErrStaleResponse)

	require.Len(t, h.presenter.details, 1)
	assert.Equal(t, 20, h.presenter.details[0].Meta.Size)
	assert.Len(t, h.presenter.details[0].Items, 20)
	assert.Empty(t, h.presenter.notifications)
	assert.Equal(t, StateIdle, h.wf.State())
	assert.Equal(t, []string{"details=true", "details=false"}, h.presenter.loading)
}

func TestLoadSummary_FailureKeepsPreviousSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.wf.LoadSummary(ctx, "P1"))
	shown := h.wf.Summary()

	h.ledger.summaryErr = &domain.TransportError{Op: "summary", Err: errors.New("connection refused")}
	err := h.wf.LoadSummary(ctx, "P1")

	var fe *domain.RecoverableFetchError
	require.True(t, errors.As(err, &fe))
	assert.Same(t, shown, h.wf.Summary())
	assert.Len(t, h.presenter.summaries, 1)
	require.Len(t, h.presenter.notifications, 1)
	assert.Equal(t, LevelError, h.presenter.notifications[0].Level)

	// manual retry
	h.ledger.summaryErr = nil
	require.NoError(t, h.wf.Refresh(ctx, "P1"))
	assert.Len(t, h.presenter.summaries, 2)
}

func TestLoadPeriodDetails_FailureRendersEmptyPage(t *testing.T) {
	h := newHarness(t)
	h.ledger.details = func(page, size int) (*domain.Page[domain.PaymentScheduleEntry], error) {
		return nil, &domain.RemoteError{StatusCode: http.StatusInternalServerError, Message: "Failed to load schedule"}
	}

	err := h.wf.LoadPeriodDetails(context.Background(), "P1", 0, 0)
	require.Error(t, err)

	require.Len(t, h.presenter.details, 1)
	assert.Empty(t, h.presenter.details[0].Items)
	assert.Equal(t, 1, h.presenter.details[0].Meta.Page)
	assert.Equal(t, 10, h.presenter.details[0].Meta.Size)
	require.Len(t, h.presenter.notifications, 1)
	assert.Equal(t, "Failed to load schedule", h.presenter.notifications[0].Message)
}

func TestPayInterest_Reconciliation(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		warnings int
		contains string
	}{
		{"exact amount", 240000, 0, ""},
		{"over payment", 300000, 1, "exceeds the period 2 total of 240000 by 60000"},
		{"partial payment", 200000, 1, "40000 short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gate.confirm = false
			h.ledger.schedule = []domain.PaymentScheduleEntry{
				{ID: "e-1", PeriodNumber: 1, TotalAmount: decimal.NewFromInt(240000), Status: domain.PeriodPaid},
				{ID: "e-2", PeriodNumber: 2, TotalAmount: decimal.NewFromInt(240000), Status: domain.PeriodPending},
			}
			ctx := context.Background()
			require.NoError(t, h.wf.LoadPeriodDetails(ctx, "P1", 1, 10))

			res, err := h.wf.PayInterest(ctx, "P1", InterestPaymentDraft{
				PeriodNumber:  2,
				Amount:        decimal.NewFromInt(tt.amount),
				PaymentMethod: domain.PaymentTransfer,
				PayDate:       "2025-11-30",
			})
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, res.Status)

			reqs := h.gate.Requests()
			require.Len(t, reqs, 1)
			require.Len(t, reqs[0].Warnings, tt.warnings)
			if tt.contains != "" {
				assert.Contains(t, reqs[0].Warnings[0], tt.contains)
			}

			pay := reqs[0].Action.(domain.PayInterest)
			assert.Equal(t, "e-2", pay.EntryID())
			assert.Equal(t, 2, pay.PeriodNumber())
			assert.Equal(t, []string{"GET details P1 1 10"}, h.ledger.Calls())
		})
	}
}

func TestPayInterest_ReconcilesPenaltyAndPriorPayments(t *testing.T) {
	overdue := domain.PaymentScheduleEntry{
		ID: "e-1", PeriodNumber: 1, TotalAmount: decimal.NewFromInt(30000),
		PenaltyInterest: decimal.NewFromInt(900), Status: domain.PeriodOverdue,
	}
	partlyPaid := domain.PaymentScheduleEntry{
		ID: "e-1", PeriodNumber: 1, TotalAmount: decimal.NewFromInt(30000),
		PaidAmount: decimal.NewFromInt(10000), Status: domain.PeriodPending,
	}

	tests := []struct {
		name     string
		entry    domain.PaymentScheduleEntry
		amount   int64
		warnings []string
	}{
		{"total without penalty", overdue, 30000, []string{
			"Amount 30000 is 900 short of the period 1 total of 30000 plus 900 penalty interest. It will be recorded as a partial payment.",
		}},
		{"total with penalty", overdue, 30900, nil},
		{"beyond penalty", overdue, 31000, []string{
			"Amount 31000 exceeds the period 1 total of 30000 plus 900 penalty interest by 100.",
		}},
		{"remainder after partial", partlyPaid, 20000, nil},
		{"total after partial", partlyPaid, 30000, []string{
			"Amount 30000 exceeds the period 1 total of 30000 less 10000 already paid by 10000.",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.warnings, reconcile(tt.entry, decimal.NewFromInt(tt.amount)))
		})
	}
}

func TestPayInterest_RejectsUnknownOrPaidPeriod(t *testing.T) {
	h := newHarness(t)
	h.ledger.schedule = []domain.PaymentScheduleEntry{
		{ID: "e-1", PeriodNumber: 1, TotalAmount: decimal.NewFromInt(240000), Status: domain.PeriodPaid},
	}
	ctx := context.Background()
	draft := InterestPaymentDraft{PeriodNumber: 1, Amount: decimal.NewFromInt(240000), PaymentMethod: domain.PaymentCash, PayDate: "2025-11-30"}

	_, err := h.wf.PayInterest(ctx, "P1", draft)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, h.wf.LoadPeriodDetails(ctx, "P1", 1, 10))
	_, err = h.wf.PayInterest(ctx, "P1", draft)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Message, "already paid")

	draft.PeriodNumber = 7
	_, err = h.wf.PayInterest(ctx, "P1", draft)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Empty(t, h.gate.Requests())
	assert.Empty(t, h.ledger.Mutated())
	assert.Len(t, h.presenter.notifications, 3)
}

func TestClose_MutationFinishesSilently(t *testing.T) {
	h := newHarness(t)
	h.ledger.mutateGate = make(chan struct{})

	action := partialPrincipal(t, "P1", 1000000)
	done := make(chan SubmitResult, 1)
	go func() {
		res, _ := h.wf.Submit(context.Background(), action)
		done <- res
	}()

	require.Eventually(t, func() bool { return h.wf.State() == StateSubmitting }, time.Second, time.Millisecond)
	h.wf.Close()
	close(h.ledger.mutateGate)

	res := <-done
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"POST partial-principal P1"}, h.ledger.Calls())
	assert.Empty(t, h.presenter.completed)
	assert.Empty(t, h.presenter.summaries)

	assert.ErrorIs(t, h.wf.LoadSummary(context.Background(), "P1"), domain.ErrWorkflowClosed)
}

func TestClose_DropsInFlightRead(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	release := make(chan struct{})
	h.ledger.details = func(page, size int) (*domain.Page[domain.PaymentScheduleEntry], error) {
		close(started)
		<-release
		return &domain.Page[domain.PaymentScheduleEntry]{Meta: domain.PageMeta{Page: page, Size: size}}, nil
	}

	errc := make(chan error, 1)
	go func() { errc <- h.wf.LoadPeriodDetails(context.Background(), "P1", 1, 10) }()
	<-started
	h.wf.Close()
	close(release)

	assert.ErrorIs(t, <-errc, domain.ErrWorkflowClosed)
	assert.Empty(t, h.presenter.details)
}
