package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
)

// Client talks to an LNbits instance. Invoice creation and status checks use
// the invoice key; outbound payouts use the admin key. Every call carries a
// per-request deadline so a stalled backend cannot pin a handler.
type Client struct {
	baseURL    string
	apiKey     string
	adminKey   string
	webhookURL string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithWebhookURL(url string) Option {
	return func(c *Client) { c.webhookURL = url }
}

func NewClient(baseURL, apiKey, adminKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		adminKey:   adminKey,
		timeout:    10 * time.Second,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoice is the subset of the LNbits payment-creation response the pipeline
// needs: the bolt11 request presented to the user and the payment hash that
// becomes the global idempotency key.
type Invoice struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
}

type createInvoiceRequest struct {
	Out     bool   `json:"out"`
	Amount  int64  `json:"amount"`
	Memo    string `json:"memo"`
	Webhook string `json:"webhook,omitempty"`
}

// CreateInvoice asks the backend for a new incoming invoice of amountSats.
func (c *Client) CreateInvoice(ctx context.Context, amountSats int64, memo string) (*Invoice, error) {
	if c.apiKey == "" {
		return nil, apperrors.New(apperrors.ErrCodeTransientUpstream, "Lightning backend not configured")
	}

	body, err := json.Marshal(createInvoiceRequest{
		Out:     false,
		Amount:  amountSats,
		Memo:    memo,
		Webhook: c.webhookURL,
	})
	if err != nil {
		return nil, apperrors.NewInternalError("marshal invoice request", err)
	}

	var inv Invoice
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/payments", c.apiKey, bytes.NewReader(body), &inv); err != nil {
		return nil, apperrors.NewTransientError("create invoice", err)
	}
	if inv.PaymentHash == "" || inv.PaymentRequest == "" {
		return nil, apperrors.New(apperrors.ErrCodeTransientUpstream, "Lightning backend returned incomplete invoice")
	}
	return &inv, nil
}

type paymentStatus struct {
	Paid bool `json:"paid"`
}

// CheckPayment reports whether the invoice identified by hash has settled.
// Unknown status is reported as unpaid; the poller keeps asking until the
// intent expires.
func (c *Client) CheckPayment(ctx context.Context, hash string) (bool, error) {
	var st paymentStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/payments/"+hash, c.apiKey, nil, &st); err != nil {
		return false, apperrors.NewTransientError("check payment", err)
	}
	return st.Paid, nil
}

type payInvoiceRequest struct {
	Out    bool   `json:"out"`
	Bolt11 string `json:"bolt11"`
}

type payInvoiceResponse struct {
	PaymentHash string `json:"payment_hash"`
}

// PayToLightningAddress resolves an LNURL-pay address, fetches a bolt11 for
// amountSats and pays it with the admin key. Returns the payment hash.
func (c *Client) PayToLightningAddress(ctx context.Context, address string, amountSats int64, memo string) (string, error) {
	if c.adminKey == "" {
		return "", apperrors.New(apperrors.ErrCodePayoutsNotConf, "LNbits admin key not configured")
	}

	bolt11, err := c.resolveLnurlPay(ctx, address, amountSats, memo)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(payInvoiceRequest{Out: true, Bolt11: bolt11})
	if err != nil {
		return "", apperrors.NewInternalError("marshal pay request", err)
	}

	var resp payInvoiceResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/payments", c.adminKey, bytes.NewReader(body), &resp); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodePaymentFailed, "payment did not complete")
	}
	if resp.PaymentHash == "" {
		return "", apperrors.New(apperrors.ErrCodePaymentFailed, "backend returned no payment hash")
	}

	logger.Info().
		Str("payment_hash", resp.PaymentHash[:8]+"…").
		Int64("amount_sats", amountSats).
		Msg("Outbound payment settled")

	return resp.PaymentHash, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, key string, body *bytes.Reader, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lnbits http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
