package terminal

import (
	"fmt"
	"io"
	"text/tabwriter"

	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/core/workflow"

	"github.com/shopspring/decimal"
)

// Presenter renders workflow output as plain text tables
type Presenter struct {
	console *Console
}

var _ workflow.Presenter = (*Presenter)(nil)

// NewPresenter creates a presenter writing to c
func NewPresenter(c *Console) *Presenter {
	return &Presenter{console: c}
}

func (p *Presenter) ShowSummary(s *domain.InterestSummary) {
	p.table(func(w io.Writer) {
		fmt.Fprintf(w, "Pledge\t%s\t%s\n", s.PledgeID, s.Status)
		fmt.Fprintf(w, "Principal\t%s\t(remaining %s)\n", money(s.Principal), money(s.RemainingPrincipal))
		fmt.Fprintf(w, "Rate\t%s\t%s\n", s.InterestRate.String(), s.RateUnit)
		fmt.Fprintf(w, "Interest to date\t%s\t\n", money(s.InterestToDate))
		fmt.Fprintf(w, "Total paid\t%s\t\n", money(s.TotalPaid))
		fmt.Fprintf(w, "Periods paid\t%d / %d\t\n", s.PaidPeriods, s.TotalPeriods)
		fmt.Fprintf(w, "Next due\t%s\t\n", day(s.NextDueDate))
		if s.OverdueDays > 0 {
			fmt.Fprintf(w, "Overdue\t%d days\tpenalty %s\n", s.OverdueDays, money(s.PenaltyInterest))
		}
	})
}

func (p *Presenter) ShowContract(c *domain.PledgeContract) {
	p.table(func(w io.Writer) {
		fmt.Fprintf(w, "Contract\t%s\t%s\n", c.ID, c.Status)
		fmt.Fprintf(w, "Customer\t%s\t%s\n", c.CustomerRef, c.CustomerName)
		fmt.Fprintf(w, "Collateral\t%s\t\n", c.Collateral)
		fmt.Fprintf(w, "Principal\t%s\t\n", money(c.Principal))
		fmt.Fprintf(w, "Rate\t%s\t%s\n", c.InterestRate.String(), c.RateUnit)
		fmt.Fprintf(w, "Term\t%d x %d\t%s\n", c.PeriodCount, c.PeriodLength, c.TermUnit)
		fmt.Fprintf(w, "Started\t%s\t\n", day(c.StartDate))
	})
}

func (p *Presenter) ShowPeriodDetails(pg *domain.Page[domain.PaymentScheduleEntry]) {
	p.table(func(w io.Writer) {
		fmt.Fprintln(w, "#\tSTART\tDUE\tINTEREST\tPRINCIPAL\tTOTAL\tPAID\tPENALTY\tSTATUS")
		for _, e := range pg.Items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.PeriodNumber, day(e.StartDate), day(e.DueDate),
				money(e.InterestAmount), money(e.PrincipalAmount), money(e.TotalAmount),
				money(e.PaidAmount), money(e.PenaltyInterest), e.Status)
		}
	})
	p.footer(pg.Meta)
}

func (p *Presenter) ShowPaymentHistory(pg *domain.Page[domain.LedgerTransaction]) {
	p.table(func(w io.Writer) {
		fmt.Fprintln(w, "DATE\tTYPE\tPERIOD\tAMOUNT\tMETHOD\tNOTE")
		for _, tx := range pg.Items {
			period := "-"
			if tx.PeriodNumber > 0 {
				period = fmt.Sprint(tx.PeriodNumber)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				day(tx.Date), tx.Type, period, money(tx.Amount), tx.PaymentMethod, tx.Note)
		}
	})
	p.footer(pg.Meta)
}

func (p *Presenter) ShowOneTimeFees(pg *domain.Page[domain.OneTimeFee]) {
	p.table(func(w io.Writer) {
		fmt.Fprintln(w, "DATE\tFEE\tAMOUNT\tNOTE")
		for _, f := range pg.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", day(f.Date), f.FeeType, money(f.Amount), f.Note)
		}
	})
	p.footer(pg.Meta)
}

// SetLoading only announces the start of a load
func (p *Presenter) SetLoading(r workflow.Resource, loading bool) {
	if loading {
		p.console.Printf("… loading %s\n", r)
	}
}

func (p *Presenter) Notify(n workflow.Notification) {
	p.console.Printf("[%s] %s\n", n.Level, n.Message)
}

func (p *Presenter) ActionCompleted(r workflow.SubmitResult) {
	msg := r.Ack.Message
	if msg == "" {
		msg = "Done"
	}
	if r.Ack.Reference != "" {
		msg += " (ref " + r.Ack.Reference + ")"
	}
	p.console.Printf("✅ %s: %s\n", r.Action.Kind(), msg)
}

func (p *Presenter) table(fn func(w io.Writer)) {
	p.console.write(func(out io.Writer) {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fn(tw)
		tw.Flush()
	})
}

func (p *Presenter) footer(m domain.PageMeta) {
	p.console.Printf("page %d/%d, %d rows\n", m.Page, max(m.TotalPages, 1), m.Total)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(0)
}

func day(d domain.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.String()
}
