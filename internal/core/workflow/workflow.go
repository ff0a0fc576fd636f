// Package workflow coordinates the actions a clerk can take on an open
// pledge contract: settle, extend term, reduce principal, additional loan
// and pay interest for a period. The remote ledger computes every amount;
// the workflow only validates, asks for confirmation, dispatches one call
// and re-fetches what the call invalidated.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/pkg/logger"
	"pledge-desk/internal/pkg/metrics"
	"pledge-desk/internal/pkg/pagination"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State of a workflow instance
type State string

const (
	StateIdle                 State = "IDLE"
	StateLoading              State = "LOADING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateSubmitting           State = "SUBMITTING"
)

// Status is the outcome of one submit attempt
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// SubmitResult reports one submit attempt. Action is always the action the
// caller asked for so a form can stay populated after a failure.
type SubmitResult struct {
	Status   Status
	Action   domain.WorkflowAction
	Ack      domain.Ack
	Warnings []string
	Err      error
}

// InterestPaymentDraft is the pay-interest form before it is matched to a
// schedule entry
type InterestPaymentDraft struct {
	PeriodNumber  int
	Amount        decimal.Decimal
	PaymentMethod domain.PaymentMethod
	PayDate       string
	Note          string
}

type phase int

const (
	phaseNone phase = iota
	phaseAwaiting
	phaseSubmitting
)

type tabPage struct {
	page int
	size int
}

// PledgeInterestWorkflow is owned by one open dialog. It is safe for
// concurrent use; reads may overlap, mutations never do.
type PledgeInterestWorkflow struct {
	ledger    InterestLedger
	gate      ConfirmationGate
	presenter Presenter
	logger    *zap.Logger

	mu          sync.Mutex
	closed      bool
	phase       phase
	pending     domain.WorkflowAction
	generations map[Resource]uint64
	inFlight    map[Resource]int
	pages       map[domain.Tab]tabPage
	activeTab   domain.Tab
	summary     *domain.InterestSummary
	schedule    []domain.PaymentScheduleEntry
	scheduleFor string
}

// New creates a workflow in the Idle state with nothing loaded
func New(ledger InterestLedger, gate ConfirmationGate, presenter Presenter, log *zap.Logger) *PledgeInterestWorkflow {
	return &PledgeInterestWorkflow{
		ledger:      ledger,
		gate:        gate,
		presenter:   presenter,
		logger:      logger.OrNop(log).Named("workflow"),
		generations: make(map[Resource]uint64),
		inFlight:    make(map[Resource]int),
		pages:       make(map[domain.Tab]tabPage),
	}
}

// State reports where the workflow is. A pending action outranks reads in
// flight.
func (w *PledgeInterestWorkflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.phase == phaseSubmitting:
		return StateSubmitting
	case w.phase == phaseAwaiting:
		return StateAwaitingConfirmation
	}
	for _, n := range w.inFlight {
		if n > 0 {
			return StateLoading
		}
	}
	return StateIdle
}

// Summary returns the last summary rendered, which may be stale after a
// failed refresh
func (w *PledgeInterestWorkflow) Summary() *domain.InterestSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary
}

// Pending is the action awaiting confirmation or being submitted, if any
func (w *PledgeInterestWorkflow) Pending() domain.WorkflowAction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// ActiveTab is the tab most recently loaded
func (w *PledgeInterestWorkflow) ActiveTab() domain.Tab {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeTab
}

// Close detaches the workflow from its dialog. Read responses arriving
// later are dropped and an in-flight mutation finishes without signalling.
func (w *PledgeInterestWorkflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// LoadSummary fetches the summary. On failure the previous summary stays
// on screen.
func (w *PledgeInterestWorkflow) LoadSummary(ctx context.Context, pledgeID string) error {
	gen, err := w.begin(ResourceSummary)
	if err != nil {
		return err
	}

	s, err := w.ledger.GetSummary(ctx, pledgeID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if ferr := w.finishLocked(ResourceSummary, gen); ferr != nil {
		return ferr
	}
	if err != nil {
		return w.fetchFailedLocked("load summary", err)
	}
	w.summary = s
	w.presenter.ShowSummary(s)
	return nil
}

// LoadContract fetches the contract metadata
func (w *PledgeInterestWorkflow) LoadContract(ctx context.Context, pledgeID string) error {
	gen, err := w.begin(ResourceContract)
	if err != nil {
		return err
	}

	c, err := w.ledger.GetContract(ctx, pledgeID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if ferr := w.finishLocked(ResourceContract, gen); ferr != nil {
		return ferr
	}
	if err != nil {
		return w.fetchFailedLocked("load contract", err)
	}
	w.presenter.ShowContract(c)
	return nil
}

// LoadPeriodDetails fetches one page of the payment schedule. On failure
// an empty page is rendered.
func (w *PledgeInterestWorkflow) LoadPeriodDetails(ctx context.Context, pledgeID string, page, size int) error {
	return loadTab(ctx, w, domain.TabDetails, pledgeID, page, size,
		w.ledger.GetPeriodDetails,
		func(p *domain.Page[domain.PaymentScheduleEntry]) {
			w.schedule = p.Items
			w.scheduleFor = pledgeID
			w.presenter.ShowPeriodDetails(p)
		})
}

// LoadPaymentHistory fetches one page of payment history
func (w *PledgeInterestWorkflow) LoadPaymentHistory(ctx context.Context, pledgeID string, page, size int) error {
	return loadTab(ctx, w, domain.TabPaymentHistory, pledgeID, page, size,
		w.ledger.GetPaymentHistory, w.presenter.ShowPaymentHistory)
}

// LoadOneTimeFees fetches one page of one-time fees
func (w *PledgeInterestWorkflow) LoadOneTimeFees(ctx context.Context, pledgeID string, page, size int) error {
	return loadTab(ctx, w, domain.TabOneTimeFees, pledgeID, page, size,
		w.ledger.GetOneTimeFees, w.presenter.ShowOneTimeFees)
}

// Refresh reloads the summary and the active tab. It is the manual retry
// after a failed read.
func (w *PledgeInterestWorkflow) Refresh(ctx context.Context, pledgeID string) error {
	err := w.LoadSummary(ctx, pledgeID)
	if tabErr := w.reloadActiveTab(ctx, pledgeID); err == nil {
		err = tabErr
	}
	return err
}

// loadTab runs one paged read. show is called with the workflow lock held.
func loadTab[T any](
	ctx context.Context,
	w *PledgeInterestWorkflow,
	tab domain.Tab,
	pledgeID string,
	page, size int,
	fetch func(context.Context, string, int, int) (*domain.Page[T], error),
	show func(*domain.Page[T]),
) error {
	params := pagination.NewParams(page, size)
	res := Resource(tab)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return domain.ErrWorkflowClosed
	}
	w.pages[tab] = tabPage{page: params.Page, size: params.Size}
	w.activeTab = tab
	gen := w.beginLocked(res)
	w.mu.Unlock()

	p, err := fetch(ctx, pledgeID, params.Page, params.Size)

	w.mu.Lock()
	defer w.mu.Unlock()
	if ferr := w.finishLocked(res, gen); ferr != nil {
		return ferr
	}
	if err != nil {
		show(domain.EmptyPage[T](params.Page, params.Size))
		return w.fetchFailedLocked("load "+string(tab), err)
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	show(p)
	return nil
}

func (w *PledgeInterestWorkflow) reloadActiveTab(ctx context.Context, pledgeID string) error {
	w.mu.Lock()
	tab := w.activeTab
	pg := w.pages[tab]
	w.mu.Unlock()

	switch tab {
	case domain.TabDetails:
		return w.LoadPeriodDetails(ctx, pledgeID, pg.page, pg.size)
	case domain.TabPaymentHistory:
		return w.LoadPaymentHistory(ctx, pledgeID, pg.page, pg.size)
	case domain.TabOneTimeFees:
		return w.LoadOneTimeFees(ctx, pledgeID, pg.page, pg.size)
	}
	return nil
}

func (w *PledgeInterestWorkflow) begin(r Resource) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, domain.ErrWorkflowClosed
	}
	return w.beginLocked(r), nil
}

func (w *PledgeInterestWorkflow) beginLocked(r Resource) uint64 {
	w.generations[r]++
	w.inFlight[r]++
	if w.inFlight[r] == 1 {
		w.presenter.SetLoading(r, true)
	}
	return w.generations[r]
}

// finishLocked returns nil when the response for gen may still be rendered
func (w *PledgeInterestWorkflow) finishLocked(r Resource, gen uint64) error {
	w.inFlight[r]--
	if w.closed {
		return domain.ErrWorkflowClosed
	}
	if w.inFlight[r] == 0 {
		w.presenter.SetLoading(r, false)
	}
	if w.generations[r] != gen {
		w.logger.Debug("dropping superseded response", zap.String("resource", string(r)), zap.Uint64("generation", gen))
		return domain.ErrStaleResponse
	}
	return nil
}

func (w *PledgeInterestWorkflow) fetchFailedLocked(op string, err error) error {
	ferr := &domain.RecoverableFetchError{Op: op, Err: err}
	w.logger.Warn("read failed", zap.String("operation", op), zap.Error(err))
	w.presenter.Notify(Notification{Level: LevelError, Message: domain.UserMessage(err), Err: ferr})
	return ferr
}

// Submit asks for confirmation and, if given, sends exactly one mutating
// call. On success the summary and the active tab are re-fetched before
// the presenter is told the action completed.
func (w *PledgeInterestWorkflow) Submit(ctx context.Context, action domain.WorkflowAction) (SubmitResult, error) {
	return w.submit(ctx, action, nil)
}

// PayInterest pays one period of the loaded schedule. The amount is
// reconciled against what is still owed on the period before confirmation is requested.
func (w *PledgeInterestWorkflow) PayInterest(ctx context.Context, pledgeID string, d InterestPaymentDraft) (SubmitResult, error) {
	w.mu.Lock()
	entry, found := w.findEntryLocked(pledgeID, d.PeriodNumber)
	target := w.targetLocked(pledgeID)
	w.mu.Unlock()

	if !found {
		return w.invalid(domain.ActionPayInterest, nil, domain.NewValidationError("periodNumber",
			fmt.Sprintf("period %d is not on the loaded schedule page", d.PeriodNumber)))
	}
	if entry.Status == domain.PeriodPaid {
		return w.invalid(domain.ActionPayInterest, nil, domain.NewValidationError("periodNumber",
			fmt.Sprintf("period %d is already paid", d.PeriodNumber)))
	}

	action, err := domain.NewPayInterest(target, domain.PayInterestInput{
		EntryID:       entry.ID,
		PeriodNumber:  d.PeriodNumber,
		PayDate:       d.PayDate,
		Amount:        d.Amount,
		PaymentMethod: d.PaymentMethod,
		Note:          d.Note,
	})
	if err != nil {
		return w.invalid(domain.ActionPayInterest, nil, err)
	}
	return w.submit(ctx, action, reconcile(entry, d.Amount))
}

// reconcile compares an entered amount with what the ledger needs to close
// the period: its total plus penalty interest, less anything already paid.
func reconcile(e domain.PaymentScheduleEntry, amount decimal.Decimal) []string {
	due := e.Outstanding()
	owed := fmt.Sprintf("the period %d total of %s", e.PeriodNumber, e.TotalAmount.String())
	if e.PenaltyInterest.IsPositive() {
		owed += fmt.Sprintf(" plus %s penalty interest", e.PenaltyInterest.String())
	}
	if e.PaidAmount.IsPositive() {
		owed += fmt.Sprintf(" less %s already paid", e.PaidAmount.String())
	}

	switch amount.Cmp(due) {
	case 1:
		return []string{fmt.Sprintf("Amount %s exceeds %s by %s.",
			amount.String(), owed, amount.Sub(due).String())}
	case -1:
		return []string{fmt.Sprintf("Amount %s is %s short of %s. It will be recorded as a partial payment.",
			amount.String(), due.Sub(amount).String(), owed)}
	}
	return nil
}

func (w *PledgeInterestWorkflow) findEntryLocked(pledgeID string, period int) (domain.PaymentScheduleEntry, bool) {
	if w.scheduleFor != pledgeID {
		return domain.PaymentScheduleEntry{}, false
	}
	for _, e := range w.schedule {
		if e.PeriodNumber == period {
			return e, true
		}
	}
	return domain.PaymentScheduleEntry{}, false
}

func (w *PledgeInterestWorkflow) targetLocked(pledgeID string) domain.Target {
	t := domain.Target{PledgeID: pledgeID}
	if w.summary != nil && w.summary.PledgeID == pledgeID {
		t.Status = w.summary.Status
	}
	return t
}

func (w *PledgeInterestWorkflow) submit(ctx context.Context, action domain.WorkflowAction, warnings []string) (SubmitResult, error) {
	if action == nil {
		return w.invalid("", nil, domain.CheckBuilt(nil))
	}
	kind := action.Kind()
	if err := domain.CheckBuilt(action); err != nil {
		return w.invalid(kind, action, err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return SubmitResult{Status: StatusFailed, Action: action, Err: domain.ErrWorkflowClosed}, domain.ErrWorkflowClosed
	}
	if w.phase != phaseNone {
		w.mu.Unlock()
		metrics.WorkflowActions.WithLabelValues(string(kind), "busy").Inc()
		return w.fail(action, warnings, domain.ErrActionInProgress)
	}
	if t := w.targetLocked(action.PledgeID()); t.Status.IsTerminal() {
		w.mu.Unlock()
		return w.invalid(kind, action, &domain.ValidationError{
			Field:   "status",
			Message: "contract is " + string(t.Status) + " and cannot be changed",
			Err:     domain.ErrContractTerminal,
		})
	}
	w.phase = phaseAwaiting
	w.pending = action
	w.mu.Unlock()

	res, err := w.gate.Confirm(ctx, ConfirmationRequest{Action: action, Warnings: warnings})
	if err != nil {
		w.reset()
		metrics.WorkflowActions.WithLabelValues(string(kind), "failed").Inc()
		return w.fail(action, warnings, err)
	}
	if !res.IsConfirmed() {
		w.reset()
		metrics.WorkflowActions.WithLabelValues(string(kind), "cancelled").Inc()
		w.logger.Info("action cancelled", zap.String("action", string(kind)), zap.String("pledge_id", action.PledgeID()))
		return SubmitResult{Status: StatusCancelled, Action: action, Warnings: warnings}, nil
	}

	confirmed := action
	if edited := res.Action(); edited != nil {
		if edited.Kind() != kind || edited.PledgeID() != action.PledgeID() {
			w.reset()
			return w.invalid(kind, action, domain.NewValidationError("action", "confirmed action does not match the request"))
		}
		if err := domain.CheckBuilt(edited); err != nil {
			w.reset()
			return w.invalid(kind, action, err)
		}
		confirmed = edited
	}

	w.mu.Lock()
	w.phase = phaseSubmitting
	w.pending = confirmed
	w.mu.Unlock()

	ack, err := w.dispatch(ctx, confirmed)
	if err != nil {
		w.reset()
		metrics.WorkflowActions.WithLabelValues(string(kind), "rejected").Inc()
		w.logger.Warn("action rejected",
			zap.String("action", string(kind)),
			zap.String("pledge_id", confirmed.PledgeID()),
			zap.Error(err),
		)
		return w.fail(action, warnings, &domain.MutationRejectedError{Action: kind, Err: err})
	}

	metrics.WorkflowActions.WithLabelValues(string(kind), "completed").Inc()
	w.logger.Info("action completed",
		zap.String("action", string(kind)),
		zap.String("pledge_id", confirmed.PledgeID()),
		zap.String("reference", ack.Reference),
	)

	// Refresh failures notify on their own; the mutation itself landed.
	_ = w.Refresh(ctx, confirmed.PledgeID())

	result := SubmitResult{Status: StatusCompleted, Action: confirmed, Ack: ack, Warnings: warnings}
	w.mu.Lock()
	w.phase = phaseNone
	w.pending = nil
	if !w.closed {
		w.presenter.ActionCompleted(result)
	}
	w.mu.Unlock()
	return result, nil
}

func (w *PledgeInterestWorkflow) dispatch(ctx context.Context, action domain.WorkflowAction) (domain.Ack, error) {
	switch a := action.(type) {
	case domain.Settle:
		return w.ledger.Settle(ctx, a)
	case domain.ExtendTerm:
		return w.ledger.ExtendTerm(ctx, a)
	case domain.PartialPrincipal:
		return w.ledger.PartialPrincipal(ctx, a)
	case domain.AdditionalLoan:
		return w.ledger.AdditionalLoan(ctx, a)
	case domain.PayInterest:
		return w.ledger.PayInterest(ctx, a)
	}
	return domain.Ack{}, fmt.Errorf("unsupported action %T", action)
}

func (w *PledgeInterestWorkflow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.phase = phaseNone
	w.pending = nil
}

func (w *PledgeInterestWorkflow) invalid(kind domain.ActionKind, action domain.WorkflowAction, err error) (SubmitResult, error) {
	if kind != "" {
		metrics.WorkflowActions.WithLabelValues(string(kind), "invalid").Inc()
	}
	return w.fail(action, nil, err)
}

// fail notifies once and builds the failed result
func (w *PledgeInterestWorkflow) fail(action domain.WorkflowAction, warnings []string, err error) (SubmitResult, error) {
	level := LevelError
	if errors.Is(err, domain.ErrActionInProgress) {
		level = LevelWarning
	}

	w.mu.Lock()
	if !w.closed {
		w.presenter.Notify(Notification{Level: level, Message: domain.UserMessage(err), Err: err})
	}
	w.mu.Unlock()
	return SubmitResult{Status: StatusFailed, Action: action, Warnings: warnings, Err: err}, err
}
