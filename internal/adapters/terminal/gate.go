package terminal

import (
	"context"
	"fmt"
	"strings"

	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/core/workflow"
)

// Gate asks for a y/N answer before an action is sent to the ledger.
// Anything but y or yes cancels, and so does end of input.
type Gate struct {
	console *Console
}

var _ workflow.ConfirmationGate = (*Gate)(nil)

// NewGate creates a gate reading answers from c
func NewGate(c *Console) *Gate {
	return &Gate{console: c}
}

func (g *Gate) Confirm(ctx context.Context, req workflow.ConfirmationRequest) (workflow.GateResult, error) {
	if err := ctx.Err(); err != nil {
		return workflow.Cancelled(), err
	}

	g.console.Printf("%s\n", Describe(req.Action))
	for _, w := range req.Warnings {
		g.console.Printf("warning: %s\n", w)
	}

	answer, ok := g.console.Prompt("Proceed? [y/N] ")
	if !ok {
		return workflow.Cancelled(), nil
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return workflow.Confirmed(nil), nil
	}
	return workflow.Cancelled(), nil
}

// Describe renders an action as one confirmation line
func Describe(a domain.WorkflowAction) string {
	switch a := a.(type) {
	case domain.Settle:
		return fmt.Sprintf("Settle pledge %s with %s on %s", a.PledgeID(), money(a.Amount()), a.SettleDate())
	case domain.ExtendTerm:
		return fmt.Sprintf("Extend pledge %s by %d period(s) of %d days", a.PledgeID(), a.TermNumber(), a.ExtendDays())
	case domain.PartialPrincipal:
		return fmt.Sprintf("Reduce principal of pledge %s by %s on %s", a.PledgeID(), money(a.Amount()), a.Date())
	case domain.AdditionalLoan:
		return fmt.Sprintf("Lend %s more on pledge %s on %s", money(a.Amount()), a.PledgeID(), a.Date())
	case domain.PayInterest:
		return fmt.Sprintf("Pay %s interest for period %d of pledge %s by %s on %s",
			money(a.Amount()), a.PeriodNumber(), a.PledgeID(), a.PaymentMethod(), a.PayDate())
	case nil:
		return "No action"
	}
	return string(a.Kind()) + " on pledge " + a.PledgeID()
}
