package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ActionKind names a mutating ledger action
type ActionKind string

const (
	ActionSettle           ActionKind = "settle"
	ActionExtendTerm       ActionKind = "extend"
	ActionPartialPrincipal ActionKind = "partial-principal"
	ActionAdditionalLoan   ActionKind = "additional-loan"
	ActionPayInterest      ActionKind = "pay-interest"
)

// WorkflowAction is one of Settle, ExtendTerm, PartialPrincipal,
// AdditionalLoan or PayInterest. Only the New* constructors mark a value
// as validated; CheckBuilt rejects anything else, zero values included.
type WorkflowAction interface {
	Kind() ActionKind
	PledgeID() string
	validated() bool
}

// CheckBuilt reports a ValidationError unless a came out of a New* constructor
func CheckBuilt(a WorkflowAction) error {
	if a == nil {
		return NewValidationError("action", "is required")
	}
	if !a.validated() {
		return NewValidationError("action", "was not built from a validated form")
	}
	return nil
}

// Target identifies the contract an action is aimed at
type Target struct {
	PledgeID string
	Status   ContractStatus
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SettleInput is the settle form
type SettleInput struct {
	Amount     decimal.Decimal
	SettleDate string `validate:"required,datetime=2006-01-02"`
	Note       string `validate:"max=500"`
}

// ExtendTermInput is the extend-term form
type ExtendTermInput struct {
	TermNumber int    `validate:"gte=1,lte=120"`
	ExtendDays int    `validate:"gte=1,lte=3650"`
	Reason     string `validate:"max=500"`
}

// PrincipalChangeInput is the form shared by reduce-principal and additional-loan
type PrincipalChangeInput struct {
	Amount decimal.Decimal
	Date   string `validate:"required,datetime=2006-01-02"`
	Note   string `validate:"max=500"`
}

// PayInterestInput is the pay-interest form for one schedule period
type PayInterestInput struct {
	EntryID       string `validate:"required"`
	PeriodNumber  int    `validate:"gte=1"`
	PayDate       string `validate:"required,datetime=2006-01-02"`
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod `validate:"required,oneof=CASH TRANSFER CARD"`
	Note          string        `validate:"max=500"`
}

// Settle closes the contract by paying everything outstanding
type Settle struct {
	pledgeID string
	amount   decimal.Decimal
	date     Date
	note     string
	built    bool
}

func (a Settle) Kind() ActionKind        { return ActionSettle }
func (a Settle) PledgeID() string        { return a.pledgeID }
func (a Settle) Amount() decimal.Decimal { return a.amount }
func (a Settle) SettleDate() Date        { return a.date }
func (a Settle) Note() string            { return a.note }
func (a Settle) validated() bool         { return a.built }

// ExtendTerm appends periods to the contract
type ExtendTerm struct {
	pledgeID   string
	termNumber int
	extendDays int
	reason     string
	built      bool
}

func (a ExtendTerm) Kind() ActionKind { return ActionExtendTerm }
func (a ExtendTerm) PledgeID() string { return a.pledgeID }
func (a ExtendTerm) TermNumber() int  { return a.termNumber }
func (a ExtendTerm) ExtendDays() int  { return a.extendDays }
func (a ExtendTerm) Reason() string   { return a.reason }
func (a ExtendTerm) validated() bool  { return a.built }

// PartialPrincipal repays part of the principal
type PartialPrincipal struct {
	pledgeID string
	amount   decimal.Decimal
	date     Date
	note     string
	built    bool
}

func (a PartialPrincipal) Kind() ActionKind        { return ActionPartialPrincipal }
func (a PartialPrincipal) PledgeID() string        { return a.pledgeID }
func (a PartialPrincipal) Amount() decimal.Decimal { return a.amount }
func (a PartialPrincipal) Date() Date              { return a.date }
func (a PartialPrincipal) Note() string            { return a.note }
func (a PartialPrincipal) validated() bool         { return a.built }

// AdditionalLoan lends more against the same collateral
type AdditionalLoan struct {
	pledgeID string
	amount   decimal.Decimal
	date     Date
	note     string
	built    bool
}

func (a AdditionalLoan) Kind() ActionKind        { return ActionAdditionalLoan }
func (a AdditionalLoan) PledgeID() string        { return a.pledgeID }
func (a AdditionalLoan) Amount() decimal.Decimal { return a.amount }
func (a AdditionalLoan) Date() Date              { return a.date }
func (a AdditionalLoan) Note() string            { return a.note }
func (a AdditionalLoan) validated() bool         { return a.built }

// PayInterest pays one schedule period
type PayInterest struct {
	pledgeID      string
	entryID       string
	periodNumber  int
	payDate       Date
	amount        decimal.Decimal
	paymentMethod PaymentMethod
	note          string
	built         bool
}

func (a PayInterest) Kind() ActionKind             { return ActionPayInterest }
func (a PayInterest) PledgeID() string             { return a.pledgeID }
func (a PayInterest) EntryID() string              { return a.entryID }
func (a PayInterest) PeriodNumber() int            { return a.periodNumber }
func (a PayInterest) PayDate() Date                { return a.payDate }
func (a PayInterest) Amount() decimal.Decimal      { return a.amount }
func (a PayInterest) PaymentMethod() PaymentMethod { return a.paymentMethod }
func (a PayInterest) Note() string                 { return a.note }
func (a PayInterest) validated() bool              { return a.built }

// NewSettle validates a settle form
func NewSettle(t Target, in SettleInput) (Settle, error) {
	if err := checkTarget(t); err != nil {
		return Settle{}, err
	}
	if err := checkStruct(in); err != nil {
		return Settle{}, err
	}
	if err := CheckAmount(in.Amount); err != nil {
		return Settle{}, err
	}
	d, _ := ParseDate(in.SettleDate)
	return Settle{pledgeID: t.PledgeID, amount: in.Amount, date: d, note: strings.TrimSpace(in.Note), built: true}, nil
}

// NewExtendTerm validates an extend-term form
func NewExtendTerm(t Target, in ExtendTermInput) (ExtendTerm, error) {
	if err := checkTarget(t); err != nil {
		return ExtendTerm{}, err
	}
	if err := checkStruct(in); err != nil {
		return ExtendTerm{}, err
	}
	return ExtendTerm{
		pledgeID:   t.PledgeID,
		termNumber: in.TermNumber,
		extendDays: in.ExtendDays,
		reason:     strings.TrimSpace(in.Reason),
		built:      true,
	}, nil
}

// NewPartialPrincipal validates a reduce-principal form
func NewPartialPrincipal(t Target, in PrincipalChangeInput) (PartialPrincipal, error) {
	d, err := checkPrincipalChange(t, in)
	if err != nil {
		return PartialPrincipal{}, err
	}
	return PartialPrincipal{pledgeID: t.PledgeID, amount: in.Amount, date: d, note: strings.TrimSpace(in.Note), built: true}, nil
}

// NewAdditionalLoan validates an additional-loan form
func NewAdditionalLoan(t Target, in PrincipalChangeInput) (AdditionalLoan, error) {
	d, err := checkPrincipalChange(t, in)
	if err != nil {
		return AdditionalLoan{}, err
	}
	return AdditionalLoan{pledgeID: t.PledgeID, amount: in.Amount, date: d, note: strings.TrimSpace(in.Note), built: true}, nil
}

// NewPayInterest validates a pay-interest form
func NewPayInterest(t Target, in PayInterestInput) (PayInterest, error) {
	if err := checkTarget(t); err != nil {
		return PayInterest{}, err
	}
	if err := checkStruct(in); err != nil {
		return PayInterest{}, err
	}
	if err := CheckAmount(in.Amount); err != nil {
		return PayInterest{}, err
	}
	d, _ := ParseDate(in.PayDate)
	return PayInterest{
		pledgeID:      t.PledgeID,
		entryID:       in.EntryID,
		periodNumber:  in.PeriodNumber,
		payDate:       d,
		amount:        in.Amount,
		paymentMethod: in.PaymentMethod,
		note:          strings.TrimSpace(in.Note),
		built:         true,
	}, nil
}

func checkPrincipalChange(t Target, in PrincipalChangeInput) (Date, error) {
	if err := checkTarget(t); err != nil {
		return Date{}, err
	}
	if err := checkStruct(in); err != nil {
		return Date{}, err
	}
	if err := CheckAmount(in.Amount); err != nil {
		return Date{}, err
	}
	d, _ := ParseDate(in.Date)
	return d, nil
}

// checkTarget rejects actions on closed contracts. Anything subtler is left
// to the ledger.
func checkTarget(t Target) error {
	if strings.TrimSpace(t.PledgeID) == "" {
		return NewValidationError("pledgeId", "is required")
	}
	if t.Status.IsTerminal() {
		return &ValidationError{
			Field:   "status",
			Message: "contract is " + string(t.Status) + " and cannot be changed",
			Err:     ErrContractTerminal,
		}
	}
	return nil
}

// CheckAmount is the money rule shared by the desk and the ledger: a
// positive whole amount.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount", "must be greater than 0")
	}
	if !amount.Equal(amount.Truncate(0)) {
		return NewValidationError("amount", "must be a whole amount")
	}
	return nil
}

func checkStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: lowerFirst(fe.Field()), Message: describeTag(fe), Err: ErrInvalidInput}
	}
	return &ValidationError{Message: err.Error(), Err: ErrInvalidInput}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date in yyyy-MM-dd format"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
