package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/core/workflow"
	"pledge-desk/internal/pkg/export"

	"github.com/shopspring/decimal"
)

// Desk is the part of the workflow the shell drives
type Desk interface {
	LoadSummary(ctx context.Context, pledgeID string) error
	LoadContract(ctx context.Context, pledgeID string) error
	LoadPeriodDetails(ctx context.Context, pledgeID string, page, size int) error
	LoadPaymentHistory(ctx context.Context, pledgeID string, page, size int) error
	LoadOneTimeFees(ctx context.Context, pledgeID string, page, size int) error
	Submit(ctx context.Context, action domain.WorkflowAction) (workflow.SubmitResult, error)
	PayInterest(ctx context.Context, pledgeID string, d workflow.InterestPaymentDraft) (workflow.SubmitResult, error)
	Summary() *domain.InterestSummary
}

// Exporter downloads a tab as a document
type Exporter interface {
	ExportTab(ctx context.Context, pledgeID string, tab domain.Tab, format export.Format, w io.Writer) (int64, error)
}

const usage = `commands:
  summary
  contract
  details [page] [size]
  history [page] [size]
  fees [page] [size]
  settle <amount> <yyyy-MM-dd> [note]
  extend <periods> <days> [reason]
  principal <amount> <yyyy-MM-dd> [note]
  loan <amount> <yyyy-MM-dd> [note]
  pay <period> <amount> <CASH|TRANSFER|CARD> <yyyy-MM-dd> [note]
  export <details|payment-history|one-time-fees> <pdf|excel> [file]
  quit
`

var errUsage = errors.New("usage")

// Shell runs desk commands against one pledge
type Shell struct {
	console   *Console
	desk      Desk
	exporter  Exporter
	pledgeID  string
	exportDir string
}

// NewShell creates a shell for pledgeID. Exports are written to exportDir.
func NewShell(c *Console, desk Desk, exporter Exporter, pledgeID, exportDir string) *Shell {
	if exportDir == "" {
		exportDir = "."
	}
	return &Shell{
		console:   c,
		desk:      desk,
		exporter:  exporter,
		pledgeID:  pledgeID,
		exportDir: exportDir,
	}
}

// Run reads commands until quit, end of input or ctx is done
func (s *Shell) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		line, ok := s.console.Prompt(s.pledgeID + "> ")
		if !ok {
			return nil
		}
		if s.Exec(ctx, line) {
			return nil
		}
	}
	return ctx.Err()
}

// Exec runs one command line and reports whether the shell should stop.
// Workflow failures are already shown by the presenter.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		s.console.Printf("%s", usage)
		return false
	case "summary":
		err = s.desk.LoadSummary(ctx, s.pledgeID)
	case "contract":
		err = s.desk.LoadContract(ctx, s.pledgeID)
	case "details", "history", "fees":
		err = s.loadTab(ctx, cmd, args)
	case "settle", "principal", "loan":
		err = s.submitAmount(ctx, cmd, args)
	case "extend":
		err = s.extend(ctx, args)
	case "pay":
		err = s.pay(ctx, args)
	case "export":
		err = s.export(ctx, args)
	default:
		s.console.Printf("unknown command %q, type help\n", cmd)
		return false
	}

	var ve *domain.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		s.console.Printf("%s\n", err)
	case errors.As(err, &ve) && !isSubmitted(err):
		s.console.Printf("[error] %s\n", domain.UserMessage(err))
	}
	return false
}

// submitted marks an error the workflow has already reported
type submitted struct{ err error }

func (e submitted) Error() string { return e.err.Error() }
func (e submitted) Unwrap() error { return e.err }

func isSubmitted(err error) bool {
	var s submitted
	return errors.As(err, &s)
}

func (s *Shell) loadTab(ctx context.Context, cmd string, args []string) error {
	page, size := 1, 10
	var err error
	if len(args) > 0 {
		if page, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("%w: %s [page] [size]", errUsage, cmd)
		}
	}
	if len(args) > 1 {
		if size, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("%w: %s [page] [size]", errUsage, cmd)
		}
	}

	switch cmd {
	case "details":
		return s.desk.LoadPeriodDetails(ctx, s.pledgeID, page, size)
	case "history":
		return s.desk.LoadPaymentHistory(ctx, s.pledgeID, page, size)
	}
	return s.desk.LoadOneTimeFees(ctx, s.pledgeID, page, size)
}

func (s *Shell) submitAmount(ctx context.Context, cmd string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: %s <amount> <yyyy-MM-dd> [note]", errUsage, cmd)
	}
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return domain.NewValidationError("amount", "must be a number")
	}
	date, note := args[1], strings.Join(args[2:], " ")

	var action domain.WorkflowAction
	switch cmd {
	case "settle":
		action, err = domain.NewSettle(s.target(), domain.SettleInput{Amount: amount, SettleDate: date, Note: note})
	case "principal":
		action, err = domain.NewPartialPrincipal(s.target(), domain.PrincipalChangeInput{Amount: amount, Date: date, Note: note})
	default:
		action, err = domain.NewAdditionalLoan(s.target(), domain.PrincipalChangeInput{Amount: amount, Date: date, Note: note})
	}
	if err != nil {
		return err
	}
	return s.submit(ctx, action)
}

func (s *Shell) extend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: extend <periods> <days> [reason]", errUsage)
	}
	terms, err1 := strconv.Atoi(args[0])
	days, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return fmt.Errorf("%w: extend <periods> <days> [reason]", errUsage)
	}

	action, err := domain.NewExtendTerm(s.target(), domain.ExtendTermInput{
		TermNumber: terms,
		ExtendDays: days,
		Reason:     strings.Join(args[2:], " "),
	})
	if err != nil {
		return err
	}
	return s.submit(ctx, action)
}

func (s *Shell) pay(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("%w: pay <period> <amount> <CASH|TRANSFER|CARD> <yyyy-MM-dd> [note]", errUsage)
	}
	period, err := strconv.Atoi(args[0])
	if err != nil {
		return domain.NewValidationError("periodNumber", "must be a whole number")
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return domain.NewValidationError("amount", "must be a number")
	}

	res, err := s.desk.PayInterest(ctx, s.pledgeID, workflow.InterestPaymentDraft{
		PeriodNumber:  period,
		Amount:        amount,
		PaymentMethod: domain.PaymentMethod(strings.ToUpper(args[2])),
		PayDate:       args[3],
		Note:          strings.Join(args[4:], " "),
	})
	return s.reported(res, err)
}

func (s *Shell) submit(ctx context.Context, action domain.WorkflowAction) error {
	res, err := s.desk.Submit(ctx, action)
	return s.reported(res, err)
}

func (s *Shell) reported(res workflow.SubmitResult, err error) error {
	if res.Status == workflow.StatusCancelled {
		s.console.Printf("Cancelled, nothing was sent.\n")
	}
	if err != nil {
		return submitted{err}
	}
	return nil
}

func (s *Shell) export(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: export <details|payment-history|one-time-fees> <pdf|excel> [file]", errUsage)
	}
	tab := domain.Tab(args[0])
	if !tab.Valid() {
		return domain.NewValidationError("tab", "must be details, payment-history or one-time-fees")
	}
	format, err := export.ParseFormat(args[1])
	if err != nil {
		return domain.NewValidationError("type", "must be pdf or excel")
	}

	name := s.pledgeID + "-" + string(tab) + format.Extension()
	if len(args) > 2 {
		name = args[2]
	}
	path := filepath.Join(s.exportDir, name)

	f, err := os.Create(path)
	if err != nil {
		s.console.Printf("[error] %v\n", err)
		return nil
	}
	n, err := s.exporter.ExportTab(ctx, s.pledgeID, tab, format, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		s.console.Printf("[error] export failed: %s\n", domain.UserMessage(err))
		return nil
	}

	s.console.Printf("Saved %s (%d bytes)\n", path, n)
	return nil
}

func (s *Shell) target() domain.Target {
	t := domain.Target{PledgeID: s.pledgeID}
	if sum := s.desk.Summary(); sum != nil && sum.PledgeID == s.pledgeID {
		t.Status = sum.Status
	}
	return t
}
