package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/core/services"
	"pledge-desk/internal/pkg/export"
	"pledge-desk/internal/pkg/logger"
	"pledge-desk/internal/pkg/pagination"
	"pledge-desk/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InterestHandler handles the pledge interest ledger endpoints
type InterestHandler struct {
	interestService *services.InterestService
	log             *zap.Logger
}

// NewInterestHandler creates a new interest handler
func NewInterestHandler(interestService *services.InterestService, log *zap.Logger) *InterestHandler {
	return &InterestHandler{
		interestService: interestService,
		log:             logger.OrNop(log).Named("http"),
	}
}

// GetSummary returns the aggregated view of a pledge
// @Summary Interest summary
// @Tags Interests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /interests/{id}/summary [get]
func (h *InterestHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.interestService.GetSummary(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "Failed to get interest summary")
	}
	return response.Success(c, "Interest summary retrieved", summary)
}

// GetContract returns the contract terms
// @Summary Contract info
// @Tags Interests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /interests/{id}/contract [get]
func (h *InterestHandler) GetContract(c *fiber.Ctx) error {
	contract, err := h.interestService.GetContract(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "Failed to get contract")
	}
	return response.Success(c, "Contract retrieved", contract)
}

// GetPeriodDetails returns one page of the payment schedule
// @Summary Period details
// @Tags Interests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} response.Response
// @Router /interests/{id}/details [get]
func (h *InterestHandler) GetPeriodDetails(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	items, total, err := h.interestService.ListPeriodDetails(c.UserContext(), c.Params("id"), params)
	if err != nil {
		return h.fail(c, err, "Failed to get period details")
	}
	return response.Success(c, "Period details retrieved", pagination.NewResponse(items, params, total))
}

// GetPaymentHistory returns one page of ledger transactions
// @Summary Payment history
// @Tags Interests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} response.Response
// @Router /interests/{id}/payment-history [get]
func (h *InterestHandler) GetPaymentHistory(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	items, total, err := h.interestService.ListPaymentHistory(c.UserContext(), c.Params("id"), params)
	if err != nil {
		return h.fail(c, err, "Failed to get payment history")
	}
	return response.Success(c, "Payment history retrieved", pagination.NewResponse(items, params, total))
}

// GetOneTimeFees returns one page of one-time fees
// @Summary One-time fees
// @Tags Interests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Success 200 {object} response.Response
// @Router /interests/{id}/one-time-fees [get]
func (h *InterestHandler) GetOneTimeFees(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	items, total, err := h.interestService.ListOneTimeFees(c.UserContext(), c.Params("id"), params)
	if err != nil {
		return h.fail(c, err, "Failed to get one-time fees")
	}
	return response.Success(c, "One-time fees retrieved", pagination.NewResponse(items, params, total))
}

// Settle closes a pledge
// @Summary Settle contract
// @Tags Interests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Param body body services.SettleInput true "Settlement"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /interests/{id}/settle [post]
func (h *InterestHandler) Settle(c *fiber.Ctx) error {
	var req services.SettleInput
	if msg := bindJSON(c, &req); msg != "" {
		return response.BadRequest(c, msg)
	}
	req.Note = strings.TrimSpace(req.Note)

	result, err := h.interestService.Settle(c.UserContext(), c.Params("id"), &req, currentUserID(c))
	return h.ack(c, result, err, "Failed to settle contract")
}

// ExtendTerm appends periods to a pledge
// @Summary Extend term
// @Tags Interests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Param body body services.ExtendInput true "Extension"
// @Success 200 {object} response.Response
// @Router /interests/{id}/extend [post]
func (h *InterestHandler) ExtendTerm(c *fiber.Ctx) error {
	var req services.ExtendInput
	if msg := bindJSON(c, &req); msg != "" {
		return response.BadRequest(c, msg)
	}
	req.Reason = strings.TrimSpace(req.Reason)

	result, err := h.interestService.ExtendTerm(c.UserContext(), c.Params("id"), &req, currentUserID(c))
	return h.ack(c, result, err, "Failed to extend term")
}

// PartialPrincipal repays part of the principal
// @Summary Partial principal repayment
// @Tags Interests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Param body body services.PrincipalChangeInput true "Repayment"
// @Success 200 {object} response.Response
// @Router /interests/{id}/partial-principal [post]
func (h *InterestHandler) PartialPrincipal(c *fiber.Ctx) error {
	var req services.PrincipalChangeInput
	if msg := bindJSON(c, &req); msg != "" {
		return response.BadRequest(c, msg)
	}

	result, err := h.interestService.PartialPrincipal(c.UserContext(), c.Params("id"), &req, currentUserID(c))
	return h.ack(c, result, err, "Failed to record principal repayment")
}

// AdditionalLoan lends more against the same collateral
// @Summary Additional loan
// @Tags Interests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Param body body services.PrincipalChangeInput true "Loan"
// @Success 200 {object} response.Response
// @Router /interests/{id}/additional-loan [post]
func (h *InterestHandler) AdditionalLoan(c *fiber.Ctx) error {
	var req services.PrincipalChangeInput
	if msg := bindJSON(c, &req); msg != "" {
		return response.BadRequest(c, msg)
	}

	result, err := h.interestService.AdditionalLoan(c.UserContext(), c.Params("id"), &req, currentUserID(c))
	return h.ack(c, result, err, "Failed to record additional loan")
}

// PayInterest records a payment against one schedule period
// @Summary Pay interest
// @Tags Interests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Param body body services.PayInterestInput true "Payment"
// @Success 200 {object} response.Response
// @Router /interests/{id}/pay-interest [post]
func (h *InterestHandler) PayInterest(c *fiber.Ctx) error {
	var req services.PayInterestInput
	if msg := bindJSON(c, &req); msg != "" {
		return response.BadRequest(c, msg)
	}

	result, err := h.interestService.PayInterest(c.UserContext(), c.Params("id"), &req, currentUserID(c))
	return h.ack(c, result, err, "Failed to record interest payment")
}

// Export downloads one tab as pdf or excel
// @Summary Export tab
// @Tags Interests
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Pledge ID"
// @Param tab path string true "details | payment-history | one-time-fees"
// @Param type query string true "pdf | excel"
// @Success 200 {file} binary
// @Router /interests/{id}/export/{tab} [get]
func (h *InterestHandler) Export(c *fiber.Ctx) error {
	tab := domain.Tab(c.Params("tab"))
	if !tab.Valid() {
		return response.NotFound(c, "Unknown tab")
	}
	format, err := export.ParseFormat(c.Query("type"))
	if err != nil {
		return response.BadRequest(c, "type must be pdf or excel")
	}

	id := c.Params("id")
	var buf bytes.Buffer
	if err := h.interestService.Export(c.UserContext(), id, tab, format, &buf); err != nil {
		return h.fail(c, err, "Failed to export "+string(tab))
	}

	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s-%s%s"`, id, tab, format.Extension()))
	return c.Send(buf.Bytes())
}

func (h *InterestHandler) ack(c *fiber.Ctx, result *services.MutationResult, err error, fallback string) error {
	if err != nil {
		return h.fail(c, err, fallback)
	}
	return response.Success(c, result.Message, result)
}

// fail maps service errors onto the response envelope
func (h *InterestHandler) fail(c *fiber.Ctx, err error, fallback string) error {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, services.ErrPledgeNotFound):
		return response.NotFound(c, "Pledge not found")
	case errors.Is(err, services.ErrEntryNotFound):
		return response.NotFound(c, "Schedule period not found")
	case errors.Is(err, services.ErrContractClosed),
		errors.Is(err, services.ErrPeriodAlreadyPaid):
		return response.Conflict(c, sentence(err))
	case errors.As(err, &ve):
		return response.UnprocessableEntity(c, ve.Field+" "+ve.Message)
	case errors.Is(err, services.ErrPeriodMismatch),
		errors.Is(err, services.ErrAmountExceedsPrincipal),
		errors.Is(err, services.ErrSettlementTooLow),
		errors.Is(err, domain.ErrInvalidInput):
		return response.UnprocessableEntity(c, sentence(err))
	default:
		h.log.Error("❌ "+fallback, zap.String("path", c.Path()), zap.Error(err))
		return response.InternalServerError(c, fallback)
	}
}

// sentence capitalizes an error message for display
func sentence(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}
