package ledger

import (
	"encoding/json"

	"pledge-desk/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Request bodies, one per mutating endpoint. Amounts go out as plain JSON
// numbers, dates as yyyy-MM-dd.

// SettleRequest is the body of POST /interests/{id}/settle
type SettleRequest struct {
	Amount     json.Number `json:"amount"`
	SettleDate string      `json:"settleDate"`
	Note       string      `json:"note"`
}

// ExtendRequest is the body of POST /interests/{id}/extend
type ExtendRequest struct {
	TermNumber int    `json:"termNumber"`
	ExtendDays int    `json:"extendDays"`
	Reason     string `json:"reason"`
}

// PartialPrincipalRequest is the body of POST /interests/{id}/partial-principal
type PartialPrincipalRequest struct {
	Amount json.Number `json:"amount"`
	Date   string      `json:"date"`
	Note   string      `json:"note"`
}

// AdditionalLoanRequest is the body of POST /interests/{id}/additional-loan
type AdditionalLoanRequest struct {
	Amount json.Number `json:"amount"`
	Date   string      `json:"date"`
	Note   string      `json:"note"`
}

// PayInterestRequest is the body of POST /interests/{id}/pay-interest
type PayInterestRequest struct {
	PeriodNumber  int         `json:"periodNumber"`
	PayDate       string      `json:"payDate"`
	Amount        json.Number `json:"amount"`
	PaymentMethod string      `json:"paymentMethod"`
	ID            string      `json:"id"`
	Note          string      `json:"note"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the data of a successful login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type ackData struct {
	Reference string `json:"reference"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func newSettleRequest(a domain.Settle) SettleRequest {
	return SettleRequest{
		Amount:     number(a.Amount()),
		SettleDate: a.SettleDate().String(),
		Note:       a.Note(),
	}
}

func newExtendRequest(a domain.ExtendTerm) ExtendRequest {
	return ExtendRequest{
		TermNumber: a.TermNumber(),
		ExtendDays: a.ExtendDays(),
		Reason:     a.Reason(),
	}
}

func newPartialPrincipalRequest(a domain.PartialPrincipal) PartialPrincipalRequest {
	return PartialPrincipalRequest{
		Amount: number(a.Amount()),
		Date:   a.Date().String(),
		Note:   a.Note(),
	}
}

func newAdditionalLoanRequest(a domain.AdditionalLoan) AdditionalLoanRequest {
	return AdditionalLoanRequest{
		Amount: number(a.Amount()),
		Date:   a.Date().String(),
		Note:   a.Note(),
	}
}

func newPayInterestRequest(a domain.PayInterest) PayInterestRequest {
	return PayInterestRequest{
		PeriodNumber:  a.PeriodNumber(),
		PayDate:       a.PayDate().String(),
		Amount:        number(a.Amount()),
		PaymentMethod: string(a.PaymentMethod()),
		ID:            a.EntryID(),
		Note:          a.Note(),
	}
}
