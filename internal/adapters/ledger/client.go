package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pledge-desk/internal/core/domain"
	"pledge-desk/internal/pkg/export"
	"pledge-desk/internal/pkg/logger"
	"pledge-desk/internal/pkg/metrics"
	"pledge-desk/internal/pkg/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every ledger call when the caller sets none
const DefaultTimeout = 20 * time.Second

const maxResponseBytes = 32 << 20

// Client talks to the interest ledger REST API. The ledger is the only
// authority for money amounts; the client never computes them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Session
	logger     *zap.Logger
}

// NewClient creates a ledger client. baseURL is the API root, e.g.
// http://localhost:3000/api/v1.
func NewClient(baseURL string, timeout time.Duration, sess *session.Session, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if sess == nil {
		sess = session.New()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		session:    sess,
		logger:     logger.OrNop(log).Named("ledger"),
	}
}

// Session returns the session the client authenticates with
func (c *Client) Session() *session.Session {
	return c.session
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *envelope) text(status int) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return http.StatusText(status)
}

// Login signs in with staff credentials and populates the session
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out LoginResponse
	if _, err := c.call(ctx, "login", http.MethodPost, "/auth/login", nil, LoginRequest{Username: username, Password: password}, &out); err != nil {
		return err
	}
	return c.session.Login(out.AccessToken)
}

// Logout clears the session
func (c *Client) Logout() {
	c.session.Logout()
}

// GetSummary fetches the interest summary of a contract
func (c *Client) GetSummary(ctx context.Context, pledgeID string) (*domain.InterestSummary, error) {
	var out domain.InterestSummary
	if _, err := c.call(ctx, "summary", http.MethodGet, interestPath(pledgeID, "summary"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContract fetches contract metadata
func (c *Client) GetContract(ctx context.Context, pledgeID string) (*domain.PledgeContract, error) {
	var out domain.PledgeContract
	if _, err := c.call(ctx, "contract", http.MethodGet, interestPath(pledgeID, "contract"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPeriodDetails fetches one page of the payment schedule
func (c *Client) GetPeriodDetails(ctx context.Context, pledgeID string, page, size int) (*domain.Page[domain.PaymentScheduleEntry], error) {
	var out domain.Page[domain.PaymentScheduleEntry]
	if _, err := c.call(ctx, "details", http.MethodGet, interestPath(pledgeID, "details"), pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPaymentHistory fetches one page of payment history
func (c *Client) GetPaymentHistory(ctx context.Context, pledgeID string, page, size int) (*domain.Page[domain.LedgerTransaction], error) {
	var out domain.Page[domain.LedgerTransaction]
	if _, err := c.call(ctx, "payment-history", http.MethodGet, interestPath(pledgeID, "payment-history"), pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOneTimeFees fetches one page of one-time fees
func (c *Client) GetOneTimeFees(ctx context.Context, pledgeID string, page, size int) (*domain.Page[domain.OneTimeFee], error) {
	var out domain.Page[domain.OneTimeFee]
	if _, err := c.call(ctx, "one-time-fees", http.MethodGet, interestPath(pledgeID, "one-time-fees"), pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle posts a settlement
func (c *Client) Settle(ctx context.Context, a domain.Settle) (domain.Ack, error) {
	return c.mutate(ctx, a, newSettleRequest(a))
}

// ExtendTerm posts a term extension
func (c *Client) ExtendTerm(ctx context.Context, a domain.ExtendTerm) (domain.Ack, error) {
	return c.mutate(ctx, a, newExtendRequest(a))
}

// PartialPrincipal posts a principal reduction
func (c *Client) PartialPrincipal(ctx context.Context, a domain.PartialPrincipal) (domain.Ack, error) {
	return c.mutate(ctx, a, newPartialPrincipalRequest(a))
}

// AdditionalLoan posts an additional loan
func (c *Client) AdditionalLoan(ctx context.Context, a domain.AdditionalLoan) (domain.Ack, error) {
	return c.mutate(ctx, a, newAdditionalLoanRequest(a))
}

// PayInterest posts an interest payment for one period
func (c *Client) PayInterest(ctx context.Context, a domain.PayInterest) (domain.Ack, error) {
	return c.mutate(ctx, a, newPayInterestRequest(a))
}

func (c *Client) mutate(ctx context.Context, a domain.WorkflowAction, body any) (domain.Ack, error) {
	if err := domain.CheckBuilt(a); err != nil {
		return domain.Ack{}, err
	}
	var data ackData
	env, err := c.call(ctx, string(a.Kind()), http.MethodPost, interestPath(a.PledgeID(), string(a.Kind())), nil, body, &data)
	if err != nil {
		return domain.Ack{}, err
	}
	return domain.Ack{Message: env.Message, Reference: data.Reference}, nil
}

// ExportTab downloads a tab as pdf or excel and copies it into w
func (c *Client) ExportTab(ctx context.Context, pledgeID string, tab domain.Tab, format export.Format, w io.Writer) (int64, error) {
	const op = "export"
	if !tab.Valid() {
		return 0, domain.NewValidationError("tab", "unknown tab "+string(tab))
	}
	if _, err := export.ParseFormat(string(format)); err != nil {
		return 0, domain.NewValidationError("type", "must be pdf or excel")
	}

	q := url.Values{}
	q.Set("type", string(format))
	req, err := c.newRequest(ctx, http.MethodGet, interestPath(pledgeID, "export/"+string(tab)), q, nil)
	if err != nil {
		return 0, &domain.TransportError{Op: op, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, start, err)
		return 0, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		var env envelope
		_ = json.Unmarshal(raw, &env)
		err := &domain.RemoteError{StatusCode: resp.StatusCode, Message: env.text(resp.StatusCode)}
		c.observe(op, start, err)
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		err = &domain.TransportError{Op: op, Err: err}
	}
	c.observe(op, start, err)
	return n, err
}

// call performs one JSON request and decodes the envelope's data into out
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) (*envelope, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}

	start := time.Now()
	env, err := c.roundTrip(op, req, out)
	c.observe(op, start, err)
	return env, err
}

func (c *Client) roundTrip(op string, req *http.Request, out any) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &domain.RemoteError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &env, &domain.RemoteError{StatusCode: resp.StatusCode, Message: env.text(resp.StatusCode)}
	}
	if !env.Success {
		return &env, &domain.RemoteError{StatusCode: http.StatusUnprocessableEntity, Message: env.text(http.StatusUnprocessableEntity)}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &env, &domain.TransportError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	return &env, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token, err := c.session.Token(); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.LedgerRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	outcome := "ok"
	var re *domain.RemoteError
	var te *domain.TransportError
	switch {
	case err == nil:
	case errors.As(err, &re):
		outcome = "rejected"
	case errors.As(err, &te):
		outcome = "transport"
	default:
		outcome = "error"
	}
	metrics.LedgerRequests.WithLabelValues(op, outcome).Inc()

	if err != nil {
		c.logger.Warn("ledger call failed",
			zap.String("operation", op),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}
	c.logger.Debug("ledger call", zap.String("operation", op), zap.Duration("elapsed", elapsed))
}

func interestPath(pledgeID, suffix string) string {
	return "/interests/" + url.PathEscape(pledgeID) + "/" + suffix
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return q
}
