// Package dgi is the HTTP client for the authority's electronic-invoice
// certification endpoint. Failures are classified transient (network,
// timeout, 5xx) or permanent (client-side rejection) so the orchestrator
// can decide retry eligibility.
package dgi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/mikaelarth/fnev4/internal/model"
)

const signPath = "/external/invoices/sign"

// Config holds the connection parameters. They come from configuration,
// never from code.
type Config struct {
	BaseURL     string        `validate:"required,url"`
	APIKey      string        `validate:"required"`
	PointOfSale string        `validate:"required"`
	Timeout     time.Duration `validate:"required"`
	MaxRetries  int           `validate:"gte=0"`
}

// Validate checks the configuration before any call is made.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// Client calls the certification endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client after validating the configuration.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid DGI configuration: %w", err)
	}
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MaxRetries exposes the configured retry cap.
func (c *Client) MaxRetries() int {
	return c.cfg.MaxRetries
}

// Result carries everything one round trip produced, success or not, so
// the orchestrator can append a complete audit row either way.
type Result struct {
	Response     *SignResponse
	StatusCode   int
	RequestBody  string
	ResponseBody string
	Latency      time.Duration
}

// Sign submits one invoice for certification. The returned error, when
// non-nil, is always a *model.CertificationError; Result is non-nil in
// every case that produced a request body.
func (c *Client) Sign(ctx context.Context, req *SignRequest) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, model.NewPermanentError("encode", "failed to encode payload: "+err.Error(), 0)
	}

	res := &Result{RequestBody: string(body)}
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + signPath

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return res, model.NewPermanentError("request", "failed to build request: "+err.Error(), 0)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	res.Latency = time.Since(start)
	if err != nil {
		// Timeouts are failures eligible for retry, never implicit success.
		return res, model.NewTransientError("request failed: "+err.Error(), 0, err)
	}
	defer httpResp.Body.Close()

	res.StatusCode = httpResp.StatusCode
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return res, model.NewTransientError("failed to read response", httpResp.StatusCode, err)
	}
	res.ResponseBody = string(respBody)

	c.log.WithFields(logrus.Fields{
		"invoice": req.InvoiceNumber,
		"status":  httpResp.StatusCode,
		"latency": res.Latency.String(),
	}).Debug("certification round trip")

	switch {
	case httpResp.StatusCode >= 500:
		return res, model.NewTransientError(
			fmt.Sprintf("server error: %s", summarize(respBody)), httpResp.StatusCode, nil)
	case httpResp.StatusCode >= 400:
		env := errorEnvelope{Code: "rejected", Message: summarize(respBody)}
		_ = json.Unmarshal(respBody, &env)
		return res, model.NewPermanentError(env.Code, env.Message, httpResp.StatusCode)
	}

	var signResp SignResponse
	if err := json.Unmarshal(respBody, &signResp); err != nil || signResp.Token == "" {
		return res, model.NewTransientError("malformed success response", httpResp.StatusCode, err)
	}

	res.Response = &signResp
	return res, nil
}

// VerificationURL builds the public verification URL for a token; it is
// what gets encoded into the invoice QR code.
func (c *Client) VerificationURL(token string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/fne/verify/" + token
}

func summarize(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}
