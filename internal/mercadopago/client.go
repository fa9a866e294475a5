// Package mercadopago is a small read-only client for the Mercado Pago REST API
// plus helpers for parsing and authenticating its webhook notifications.
package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mistika/checkout/internal/checkout/domain"
)

const (
	// Provider is the name recorded on webhook events.
	Provider = "mercadopago"

	DefaultBaseURL = "https://api.mercadopago.com"
	DefaultTimeout = 5 * time.Second

	maxErrorBody = 1 << 12
)

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	// Transport defaults to an otelhttp-instrumented http.DefaultTransport.
	Transport http.RoundTripper
}

// Client implements ports.PaymentProvider. Every lookup degrades to a nil result
// on failure; causes are logged here and never returned.
type Client struct {
	baseURL     string
	accessToken string
	timeout     time.Duration
	http        *http.Client
	logger      *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     baseURL,
		accessToken: strings.TrimSpace(cfg.AccessToken),
		timeout:     timeout,
		http:        &http.Client{Timeout: timeout, Transport: transport},
		logger:      logger,
	}
}

// Configured reports whether the client holds credentials.
func (c *Client) Configured() bool {
	return c != nil && c.accessToken != ""
}

func (c *Client) GetPayment(ctx context.Context, id string) *domain.Payment {
	var resp paymentResponse
	if !c.get(ctx, "payment", "/v1/payments/", id, &resp) {
		return nil
	}
	return resp.toDomain()
}

func (c *Client) GetChargeback(ctx context.Context, id string) *domain.Chargeback {
	var resp chargebackResponse
	if !c.get(ctx, "chargeback", "/v1/chargebacks/", id, &resp) {
		return nil
	}
	return resp.toDomain()
}

func (c *Client) GetClaim(ctx context.Context, id string) *domain.Claim {
	var resp claimResponse
	if !c.get(ctx, "claim", "/v1/claims/", id, &resp) {
		return nil
	}
	return resp.toDomain()
}

func (c *Client) get(ctx context.Context, resource, path, id string, out any) bool {
	if !c.Configured() {
		c.logger.WarnContext(ctx, "mercadopago lookup skipped: access token not configured",
			"resource", resource,
			"resource_id", id,
		)
		return false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}

	if err := c.fetch(ctx, path+url.PathEscape(id), out); err != nil {
		c.logger.WarnContext(ctx, "mercadopago lookup failed",
			"resource", resource,
			"resource_id", id,
			"error", err,
		)
		return false
	}
	return true
}

func (c *Client) fetch(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return fmt.Errorf("unexpected status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
