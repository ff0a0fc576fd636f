package workflow

import (
	"context"

	"pledge-desk/internal/core/domain"
)

// InterestLedger is the remote authority the workflow reads from and
// mutates through. *ledger.Client satisfies it.
type InterestLedger interface {
	GetSummary(ctx context.Context, pledgeID string) (*domain.InterestSummary, error)
	GetContract(ctx context.Context, pledgeID string) (*domain.PledgeContract, error)
	GetPeriodDetails(ctx context.Context, pledgeID string, page, size int) (*domain.Page[domain.PaymentScheduleEntry], error)
	GetPaymentHistory(ctx context.Context, pledgeID string, page, size int) (*domain.Page[domain.LedgerTransaction], error)
	GetOneTimeFees(ctx context.Context, pledgeID string, page, size int) (*domain.Page[domain.OneTimeFee], error)

	Settle(ctx context.Context, a domain.Settle) (domain.Ack, error)
	ExtendTerm(ctx context.Context, a domain.ExtendTerm) (domain.Ack, error)
	PartialPrincipal(ctx context.Context, a domain.PartialPrincipal) (domain.Ack, error)
	AdditionalLoan(ctx context.Context, a domain.AdditionalLoan) (domain.Ack, error)
	PayInterest(ctx context.Context, a domain.PayInterest) (domain.Ack, error)
}

// ConfirmationRequest is what the user is asked to approve
type ConfirmationRequest struct {
	Action   domain.WorkflowAction
	Warnings []string
}

// GateResult is either Confirmed(action) or Cancelled
type GateResult struct {
	confirmed bool
	action    domain.WorkflowAction
}

// Confirmed approves a. The gate may hand back an edited action of the
// same kind for the same pledge; nil keeps the requested one.
func Confirmed(a domain.WorkflowAction) GateResult {
	return GateResult{confirmed: true, action: a}
}

// Cancelled rejects the request
func Cancelled() GateResult {
	return GateResult{}
}

func (r GateResult) IsConfirmed() bool             { return r.confirmed }
func (r GateResult) Action() domain.WorkflowAction { return r.action }

// ConfirmationGate blocks until the user approves or rejects an action.
// A non-nil error is treated like a failed attempt, never as approval.
type ConfirmationGate interface {
	Confirm(ctx context.Context, req ConfirmationRequest) (GateResult, error)
}

// Resource names something the presenter renders
type Resource string

const (
	ResourceSummary        Resource = "summary"
	ResourceContract       Resource = "contract"
	ResourcePeriodDetails  Resource = Resource(domain.TabDetails)
	ResourcePaymentHistory Resource = Resource(domain.TabPaymentHistory)
	ResourceOneTimeFees    Resource = Resource(domain.TabOneTimeFees)
)

// Level of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one user-visible message
type Notification struct {
	Level   Level
	Message string
	Err     error
}

// Presenter renders workflow state. Calls are serialized by the workflow
// and must not call back into it.
type Presenter interface {
	ShowSummary(s *domain.InterestSummary)
	ShowContract(c *domain.PledgeContract)
	ShowPeriodDetails(p *domain.Page[domain.PaymentScheduleEntry])
	ShowPaymentHistory(p *domain.Page[domain.LedgerTransaction])
	ShowOneTimeFees(p *domain.Page[domain.OneTimeFee])
	SetLoading(r Resource, loading bool)
	Notify(n Notification)
	ActionCompleted(r SubmitResult)
}
