package domain

import (
	"github.com/shopspring/decimal"
)

// ContractStatus is the lifecycle state of a pledge contract
type ContractStatus string

const (
	StatusBorrowing  ContractStatus = "BORROWING"
	StatusPaid       ContractStatus = "PAID"
	StatusOverdue    ContractStatus = "OVERDUE"
	StatusLiquidated ContractStatus = "LIQUIDATED"
)

// IsTerminal reports whether the contract no longer accepts mutations
func (s ContractStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusLiquidated
}

// RateUnit is the unit an interest rate is quoted in
type RateUnit string

const (
	// RatePerMillePerDay is ‰ of principal per day
	RatePerMillePerDay RateUnit = "PER_MILLE_PER_DAY"
	// RatePercentPerMonth is % of principal per month
	RatePercentPerMonth RateUnit = "PERCENT_PER_MONTH"
)

// TermUnit is the unit of one payment period
type TermUnit string

const (
	TermDay   TermUnit = "DAY"
	TermMonth TermUnit = "MONTH"
)

// PeriodStatus is the state of one payment schedule row
type PeriodStatus string

const (
	PeriodPending PeriodStatus = "PENDING"
	PeriodPaid    PeriodStatus = "PAID"
	PeriodOverdue PeriodStatus = "OVERDUE"
)

// TransactionType classifies ledger transactions
type TransactionType string

const (
	TxInterestPayment  TransactionType = "INTEREST_PAYMENT"
	TxPartialPrincipal TransactionType = "PARTIAL_PRINCIPAL"
	TxAdditionalLoan   TransactionType = "ADDITIONAL_LOAN"
	TxSettlement       TransactionType = "SETTLEMENT"
	TxExtension        TransactionType = "EXTENSION"
)

// PaymentMethod is how a customer paid
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCard     PaymentMethod = "CARD"
)

// PledgeContract is the read-only projection of a pawn contract
type PledgeContract struct {
	ID           string          `json:"id"`
	CustomerRef  string          `json:"customerRef"`
	CustomerName string          `json:"customerName,omitempty"`
	Collateral   string          `json:"collateral,omitempty"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interestRate"`
	RateUnit     RateUnit        `json:"rateUnit"`
	PeriodCount  int             `json:"periodCount"`
	PeriodLength int             `json:"periodLength"`
	TermUnit     TermUnit        `json:"termUnit"`
	StartDate    Date            `json:"startDate"`
	Status       ContractStatus  `json:"status"`
}

// InterestSummary is a snapshot of the ledger's aggregated view of a contract.
// It is never patched locally.
type InterestSummary struct {
	PledgeID           string          `json:"pledgeId"`
	RemainingPrincipal decimal.Decimal `json:"remainingPrincipal"`
	InterestToDate     decimal.Decimal `json:"interestToDate"`
	TotalPaid          decimal.Decimal `json:"totalPaid"`
	Principal          decimal.Decimal `json:"principal"`
	InterestRate       decimal.Decimal `json:"interestRate"`
	RateUnit           RateUnit        `json:"rateUnit"`
	Status             ContractStatus  `json:"status"`
	NextDueDate        Date            `json:"nextDueDate"`
	OverdueDays        int             `json:"overdueDays"`
	PenaltyInterest    decimal.Decimal `json:"penaltyInterest"`
	PaidPeriods        int             `json:"paidPeriods"`
	TotalPeriods       int             `json:"totalPeriods"`
}

// PaymentScheduleEntry is one period of the payment schedule
type PaymentScheduleEntry struct {
	ID              string              `json:"id"`
	PeriodNumber    int                 `json:"periodNumber"`
	StartDate       Date                `json:"startDate"`
	DueDate         Date                `json:"dueDate"`
	InterestAmount  decimal.Decimal     `json:"interestAmount"`
	PrincipalAmount decimal.Decimal     `json:"principalAmount"`
	TotalAmount     decimal.Decimal     `json:"totalAmount"`
	PaidAmount      decimal.Decimal     `json:"paidAmount"`
	PenaltyInterest decimal.Decimal     `json:"penaltyInterest"`
	Status          PeriodStatus        `json:"status"`
	Transactions    []LedgerTransaction `json:"transactions,omitempty"`
}

// Outstanding returns what is still owed on the period, penalty included
func (e PaymentScheduleEntry) Outstanding() decimal.Decimal {
	out := e.TotalAmount.Add(e.PenaltyInterest).Sub(e.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// LedgerTransaction is one row of the payment history
type LedgerTransaction struct {
	ID            string          `json:"id"`
	Type          TransactionType `json:"type"`
	PeriodNumber  int             `json:"periodNumber,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Date          Date            `json:"date"`
	PaymentMethod PaymentMethod   `json:"paymentMethod,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// OneTimeFee is a non-recurring fee charged on a contract
type OneTimeFee struct {
	ID      string          `json:"id"`
	FeeType string          `json:"feeType"`
	Amount  decimal.Decimal `json:"amount"`
	Date    Date            `json:"date"`
	Note    string          `json:"note,omitempty"`
}

// Ack is the ledger's acknowledgement of a mutating call
type Ack struct {
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// Tab is one of the paged detail views of a contract
type Tab string

const (
	TabDetails        Tab = "details"
	TabPaymentHistory Tab = "payment-history"
	TabOneTimeFees    Tab = "one-time-fees"
)

// Valid reports whether t names a known tab
func (t Tab) Valid() bool {
	return t == TabDetails || t == TabPaymentHistory || t == TabOneTimeFees
}
