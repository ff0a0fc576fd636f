package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pledge-desk/internal/adapters/persistence/models"
	"pledge-desk/internal/adapters/persistence/repositories"
	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/pkg/export"
	"pledge-desk/internal/pkg/logger"
	"pledge-desk/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Interest ledger errors
var (
	ErrPledgeNotFound         = errors.New("pledge not found")
	ErrEntryNotFound          = errors.New("schedule period not found")
	ErrContractClosed         = errors.New("contract is closed")
	ErrPeriodAlreadyPaid      = errors.New("period is already paid")
	ErrPeriodMismatch         = errors.New("period number does not match the schedule entry")
	ErrAmountExceedsPrincipal = errors.New("amount must be less than the remaining principal")
	ErrSettlementTooLow       = errors.New("amount does not cover the outstanding balance")
)

// SettleInput represents the settle request
type SettleInput struct {
	Amount     decimal.Decimal `json:"amount"`
	SettleDate string          `json:"settleDate" validate:"required,datetime=2006-01-02"`
	Note       string          `json:"note" validate:"max=500"`
}

// ExtendInput represents the extend-term request
type ExtendInput struct {
	TermNumber int    `json:"termNumber" validate:"gte=1,lte=120"`
	ExtendDays int    `json:"extendDays" validate:"gte=1,lte=3650"`
	Reason     string `json:"reason" validate:"max=500"`
}

// PrincipalChangeInput represents the partial-principal and additional-loan requests
type PrincipalChangeInput struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date" validate:"required,datetime=2006-01-02"`
	Note   string          `json:"note" validate:"max=500"`
}

// PayInterestInput represents the pay-interest request
type PayInterestInput struct {
	PeriodNumber  int             `json:"periodNumber" validate:"gte=1"`
	PayDate       string          `json:"payDate" validate:"required,datetime=2006-01-02"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=CASH TRANSFER CARD"`
	EntryID       string          `json:"id" validate:"required"`
	Note          string          `json:"note" validate:"max=500"`
}

// MutationResult is returned by every mutating operation
type MutationResult struct {
	Message   string `json:"-"`
	Reference string `json:"reference"`
}

// InterestService implements the interest ledger
type InterestService struct {
	repo repositories.PledgeRepository
	now  func() time.Time
	log  *zap.Logger
}

// NewInterestService creates a new interest service
func NewInterestService(repo repositories.PledgeRepository, log *zap.Logger) *InterestService {
	return &InterestService{
		repo: repo,
		now:  time.Now,
		log:  logger.OrNop(log).Named("interest"),
	}
}

// WithClock replaces the service's clock
func (s *InterestService) WithClock(now func() time.Time) *InterestService {
	s.now = now
	return s
}

// ============================================================
// Reads
// ============================================================

// GetSummary aggregates the ledger's view of a pledge as of today
func (s *InterestService) GetSummary(ctx context.Context, pledgeID string) (*domain.InterestSummary, error) {
	pledge, err := s.getPledge(ctx, s.repo, pledgeID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.AllEntries(ctx, pledgeID)
	if err != nil {
		return nil, err
	}

	totalPaid, err := s.repo.SumTransactions(ctx, pledgeID,
		string(domain.TxInterestPayment),
		string(domain.TxPartialPrincipal),
		string(domain.TxSettlement),
	)
	if err != nil {
		return nil, err
	}

	asOf := dayOf(s.now())
	summary := &domain.InterestSummary{
		PledgeID:           pledge.ID,
		RemainingPrincipal: pledge.RemainingPrincipal,
		InterestToDate:     decimal.Zero,
		TotalPaid:          totalPaid,
		Principal:          pledge.Principal,
		InterestRate:       pledge.InterestRate,
		RateUnit:           domain.RateUnit(pledge.RateUnit),
		Status:             domain.ContractStatus(pledge.Status),
		PenaltyInterest:    decimal.Zero,
		TotalPeriods:       len(entries),
	}

	for _, e := range entries {
		summary.PenaltyInterest = summary.PenaltyInterest.Add(e.PenaltyInterest)
		if e.Status == string(domain.PeriodPaid) {
			summary.PaidPeriods++
			continue
		}
		if !pledge.IsClosed() {
			summary.InterestToDate = summary.InterestToDate.Add(accrued(e, asOf))
		}
		if summary.NextDueDate.IsZero() {
			summary.NextDueDate = domain.NewDate(e.DueDate)
			if days := daysBetween(e.DueDate, asOf); days > 0 {
				summary.OverdueDays = days
			}
		}
	}

	return summary, nil
}

// GetContract returns the contract terms
func (s *InterestService) GetContract(ctx context.Context, pledgeID string) (*domain.PledgeContract, error) {
	pledge, err := s.getPledge(ctx, s.repo, pledgeID)
	if err != nil {
		return nil, err
	}
	return pledge.ToDomain(), nil
}

// ListPeriodDetails returns one page of the payment schedule
func (s *InterestService) ListPeriodDetails(ctx context.Context, pledgeID string, params *pagination.Params) ([]domain.PaymentScheduleEntry, int64, error) {
	if err := s.ensureExists(ctx, pledgeID); err != nil {
		return nil, 0, err
	}

	rows, total, err := s.repo.ListEntries(ctx, pledgeID, params.Offset, params.Size)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.PaymentScheduleEntry, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.ToDomain())
	}
	return items, total, nil
}

// ListPaymentHistory returns one page of ledger transactions, newest first
func (s *InterestService) ListPaymentHistory(ctx context.Context, pledgeID string, params *pagination.Params) ([]domain.LedgerTransaction, int64, error) {
	if err := s.ensureExists(ctx, pledgeID); err != nil {
		return nil, 0, err
	}

	rows, total, err := s.repo.ListTransactions(ctx, pledgeID, params.Offset, params.Size)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.LedgerTransaction, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.ToDomain())
	}
	return items, total, nil
}

// ListOneTimeFees returns one page of one-time fees
func (s *InterestService) ListOneTimeFees(ctx context.Context, pledgeID string, params *pagination.Params) ([]domain.OneTimeFee, int64, error) {
	if err := s.ensureExists(ctx, pledgeID); err != nil {
		return nil, 0, err
	}

	rows, total, err := s.repo.ListFees(ctx, pledgeID, params.Offset, params.Size)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.OneTimeFee, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.ToDomain())
	}
	return items, total, nil
}

// ============================================================
// Mutations
// ============================================================

// Settle closes the pledge. The amount must cover the remaining principal
// plus everything accrued up to the settle date.
func (s *InterestService) Settle(ctx context.Context, pledgeID string, input *SettleInput, userID uint) (*MutationResult, error) {
	if err := domain.CheckAmount(input.Amount); err != nil {
		return nil, err
	}
	date, err := parseDay(input.SettleDate)
	if err != nil {
		return nil, err
	}

	result := &MutationResult{Message: "Contract settled"}
	err = s.repo.WithinTransaction(ctx, func(repo repositories.PledgeRepository) error {
		pledge, err := s.openPledge(ctx, repo, pledgeID)
		if err != nil {
			return err
		}

		entries, err := repo.AllEntries(ctx, pledgeID)
		if err != nil {
			return err
		}

		due := pledge.RemainingPrincipal
		for _, e := range entries {
			due = due.Add(accrued(e, date))
		}
		if input.Amount.LessThan(due) {
			return fmt.Errorf("%w: %s required", ErrSettlementTooLow, due.String())
		}

		for _, e := range entries {
			if e.Status == string(domain.PeriodPaid) {
				continue
			}
			e.Status = string(domain.PeriodPaid)
			e.PaidAt = &date
			if err := repo.UpdateEntry(ctx, e); err != nil {
				return err
			}
		}

		pledge.Status = string(domain.StatusPaid)
		pledge.RemainingPrincipal = decimal.Zero
		pledge.SettledAt = &date
		if err := repo.Update(ctx, pledge); err != nil {
			return err
		}

		tx := newTransaction(pledgeID, domain.TxSettlement, input.Amount, date, input.Note, userID)
		result.Reference = tx.ID
		return repo.CreateTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("✅ Pledge settled", zap.String("pledge_id", pledgeID), zap.String("amount", input.Amount.String()))
	return result, nil
}

// ExtendTerm appends input.TermNumber periods of input.ExtendDays days each
// after the last scheduled period
func (s *InterestService) ExtendTerm(ctx context.Context, pledgeID string, input *ExtendInput, userID uint) (*MutationResult, error) {
	result := &MutationResult{Message: "Term extended"}
	err := s.repo.WithinTransaction(ctx, func(repo repositories.PledgeRepository) error {
		pledge, err := s.openPledge(ctx, repo, pledgeID)
		if err != nil {
			return err
		}

		entries, err := repo.AllEntries(ctx, pledgeID)
		if err != nil {
			return err
		}

		next, from := 1, pledge.StartDate
		if n := len(entries); n > 0 {
			next, from = entries[n-1].PeriodNumber+1, entries[n-1].DueDate
		}

		added := appendPeriods(pledge, next, from, input.TermNumber, input.ExtendDays, domain.TermDay)
		if err := repo.CreateEntries(ctx, added); err != nil {
			return err
		}

		pledge.PeriodCount += input.TermNumber
		if err := repo.Update(ctx, pledge); err != nil {
			return err
		}

		tx := newTransaction(pledgeID, domain.TxExtension, decimal.Zero, dayOf(s.now()), input.Reason, userID)
		result.Reference = tx.ID
		return repo.CreateTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("✅ Pledge term extended",
		zap.String("pledge_id", pledgeID),
		zap.Int("periods", input.TermNumber),
		zap.Int("days", input.ExtendDays),
	)
	return result, nil
}

// PartialPrincipal repays part of the principal. Repaying all of it is a
// settlement, not a partial repayment.
func (s *InterestService) PartialPrincipal(ctx context.Context, pledgeID string, input *PrincipalChangeInput, userID uint) (*MutationResult, error) {
	return s.changePrincipal(ctx, pledgeID, input, userID, domain.TxPartialPrincipal)
}

// AdditionalLoan lends more against the same collateral
func (s *InterestService) AdditionalLoan(ctx context.Context, pledgeID string, input *PrincipalChangeInput, userID uint) (*MutationResult, error) {
	return s.changePrincipal(ctx, pledgeID, input, userID, domain.TxAdditionalLoan)
}

func (s *InterestService) changePrincipal(ctx context.Context, pledgeID string, input *PrincipalChangeInput, userID uint, kind domain.TransactionType) (*MutationResult, error) {
	if err := domain.CheckAmount(input.Amount); err != nil {
		return nil, err
	}
	date, err := parseDay(input.Date)
	if err != nil {
		return nil, err
	}

	result := &MutationResult{Message: "Principal reduced"}
	if kind == domain.TxAdditionalLoan {
		result.Message = "Additional loan recorded"
	}

	err = s.repo.WithinTransaction(ctx, func(repo repositories.PledgeRepository) error {
		pledge, err := s.openPledge(ctx, repo, pledgeID)
		if err != nil {
			return err
		}

		if kind == domain.TxPartialPrincipal {
			if !input.Amount.LessThan(pledge.RemainingPrincipal) {
				return ErrAmountExceedsPrincipal
			}
			pledge.RemainingPrincipal = pledge.RemainingPrincipal.Sub(input.Amount)
		} else {
			pledge.Principal = pledge.Principal.Add(input.Amount)
			pledge.RemainingPrincipal = pledge.RemainingPrincipal.Add(input.Amount)
		}
		if err := repo.Update(ctx, pledge); err != nil {
			return err
		}

		entries, err := repo.AllEntries(ctx, pledgeID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !reprice(e, pledge, date) {
				continue
			}
			if err := repo.UpdateEntry(ctx, e); err != nil {
				return err
			}
		}

		tx := newTransaction(pledgeID, kind, input.Amount, date, input.Note, userID)
		result.Reference = tx.ID
		return repo.CreateTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("✅ Principal changed",
		zap.String("pledge_id", pledgeID),
		zap.String("type", string(kind)),
		zap.String("amount", input.Amount.String()),
	)
	return result, nil
}

// PayInterest records a payment against one schedule period. The period is
// marked paid once the payment covers it, penalty included; a smaller
// amount is kept as a partial payment.
func (s *InterestService) PayInterest(ctx context.Context, pledgeID string, input *PayInterestInput, userID uint) (*MutationResult, error) {
	if err := domain.CheckAmount(input.Amount); err != nil {
		return nil, err
	}
	date, err := parseDay(input.PayDate)
	if err != nil {
		return nil, err
	}

	result := &MutationResult{Message: "Interest payment recorded"}
	err = s.repo.WithinTransaction(ctx, func(repo repositories.PledgeRepository) error {
		pledge, err := s.openPledge(ctx, repo, pledgeID)
		if err != nil {
			return err
		}

		entry, err := repo.GetEntry(ctx, pledgeID, input.EntryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		if entry.PeriodNumber != input.PeriodNumber {
			return ErrPeriodMismatch
		}
		if entry.Status == string(domain.PeriodPaid) {
			return ErrPeriodAlreadyPaid
		}

		owed := entry.Owed()
		entry.PaidAmount = entry.PaidAmount.Add(input.Amount)
		if !input.Amount.LessThan(owed) {
			entry.Status = string(domain.PeriodPaid)
			entry.PaidAt = &date
		} else {
			result.Message = "Partial interest payment recorded"
		}
		if err := repo.UpdateEntry(ctx, entry); err != nil {
			return err
		}

		if pledge.Status == string(domain.StatusOverdue) {
			if err := s.clearOverdue(ctx, repo, pledge, date); err != nil {
				return err
			}
		}

		tx := newTransaction(pledgeID, domain.TxInterestPayment, input.Amount, date, input.Note, userID)
		tx.EntryID = &entry.ID
		tx.PeriodNumber = entry.PeriodNumber
		tx.PaymentMethod = input.PaymentMethod
		result.Reference = tx.ID
		return repo.CreateTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("✅ Interest paid",
		zap.String("pledge_id", pledgeID),
		zap.Int("period", input.PeriodNumber),
		zap.String("amount", input.Amount.String()),
	)
	return result, nil
}

// clearOverdue moves an OVERDUE pledge back to BORROWING once no past-due
// period is left unpaid
func (s *InterestService) clearOverdue(ctx context.Context, repo repositories.PledgeRepository, pledge *models.Pledge, asOf time.Time) error {
	entries, err := repo.AllEntries(ctx, pledge.ID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Status != string(domain.PeriodPaid) && e.DueDate.Before(asOf) {
			return nil
		}
	}
	pledge.Status = string(domain.StatusBorrowing)
	return repo.Update(ctx, pledge)
}

// ============================================================
// Export
// ============================================================

// Export renders one tab of a pledge as pdf or excel
func (s *InterestService) Export(ctx context.Context, pledgeID string, tab domain.Tab, format export.Format, w io.Writer) error {
	table, err := s.exportTable(ctx, pledgeID, tab)
	if err != nil {
		return err
	}
	return export.Write(w, format, *table)
}

func (s *InterestService) exportTable(ctx context.Context, pledgeID string, tab domain.Tab) (*export.Table, error) {
	if err := s.ensureExists(ctx, pledgeID); err != nil {
		return nil, err
	}

	switch tab {
	case domain.TabDetails:
		rows, err := s.repo.AllEntries(ctx, pledgeID)
		if err != nil {
			return nil, err
		}
		t := &export.Table{
			Title:   "Payment schedule " + pledgeID,
			Headers: []string{"Period", "Start", "Due", "Interest", "Principal", "Total", "Paid", "Penalty", "Status"},
		}
		for _, r := range rows {
			t.Rows = append(t.Rows, []string{
				fmt.Sprint(r.PeriodNumber),
				domain.NewDate(r.StartDate).String(),
				domain.NewDate(r.DueDate).String(),
				r.InterestAmount.String(),
				r.PrincipalAmount.String(),
				r.TotalAmount.String(),
				r.PaidAmount.String(),
				r.PenaltyInterest.String(),
				r.Status,
			})
		}
		return t, nil

	case domain.TabPaymentHistory:
		rows, _, err := s.repo.ListTransactions(ctx, pledgeID, 0, -1)
		if err != nil {
			return nil, err
		}
		t := &export.Table{
			Title:   "Payment history " + pledgeID,
			Headers: []string{"Date", "Type", "Period", "Amount", "Method", "Note"},
		}
		for _, r := range rows {
			t.Rows = append(t.Rows, []string{
				domain.NewDate(r.TxDate).String(),
				r.Type,
				periodLabel(r.PeriodNumber),
				r.Amount.String(),
				r.PaymentMethod,
				r.Note,
			})
		}
		return t, nil

	case domain.TabOneTimeFees:
		rows, _, err := s.repo.ListFees(ctx, pledgeID, 0, -1)
		if err != nil {
			return nil, err
		}
		t := &export.Table{
			Title:   "One-time fees " + pledgeID,
			Headers: []string{"Date", "Fee", "Amount", "Note"},
		}
		for _, r := range rows {
			t.Rows = append(t.Rows, []string{
				domain.NewDate(r.FeeDate).String(),
				r.FeeType,
				r.Amount.String(),
				r.Note,
			})
		}
		return t, nil
	}

	return nil, fmt.Errorf("%w: unknown tab %q", domain.ErrInvalidInput, tab)
}

// ============================================================
// Helpers
// ============================================================

func (s *InterestService) getPledge(ctx context.Context, repo repositories.PledgeRepository, pledgeID string) (*models.Pledge, error) {
	pledge, err := repo.GetByID(ctx, pledgeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPledgeNotFound
		}
		return nil, err
	}
	return pledge, nil
}

// openPledge loads a pledge that still accepts mutations
func (s *InterestService) openPledge(ctx context.Context, repo repositories.PledgeRepository, pledgeID string) (*models.Pledge, error) {
	pledge, err := s.getPledge(ctx, repo, pledgeID)
	if err != nil {
		return nil, err
	}
	if pledge.IsClosed() {
		return nil, fmt.Errorf("%w: pledge is %s", ErrContractClosed, pledge.Status)
	}
	return pledge, nil
}

func (s *InterestService) ensureExists(ctx context.Context, pledgeID string) error {
	ok, err := s.repo.Exists(ctx, pledgeID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPledgeNotFound
	}
	return nil
}

func newTransaction(pledgeID string, kind domain.TransactionType, amount decimal.Decimal, date time.Time, note string, userID uint) *models.PaymentTransaction {
	return &models.PaymentTransaction{
		ID:          uuid.NewString(),
		PledgeID:    pledgeID,
		Type:        string(kind),
		Amount:      amount,
		TxDate:      date,
		Note:        note,
		PerformedBy: userID,
	}
}

func parseDay(s string) (time.Time, error) {
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be yyyy-MM-dd", domain.ErrInvalidInput)
	}
	return d.Time, nil
}

func periodLabel(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprint(n)
}
