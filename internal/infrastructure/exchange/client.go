package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
)

// Quote is a rate fixed by the exchange desk for a limited window
type Quote struct {
	ID           uuid.UUID         `json:"id"`
	FromCurrency entities.Currency `json:"fromCurrency"`
	ToCurrency   entities.Currency `json:"toCurrency"`
	Rate         decimal.Decimal   `json:"rate"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

// Client is the engine's view of the exchange desk
type Client interface {
	// GetQuote fixes a rate for the pair, valid until Quote.ExpiresAt.
	GetQuote(ctx context.Context, from, to entities.Currency, value decimal.Decimal) (*Quote, error)

	// Execute settles a previously quoted conversion on the desk. Called
	// after the ledger commit; the desk replays duplicates idempotently
	// by quote id.
	Execute(ctx context.Context, quoteID uuid.UUID) error

	// MarketRate returns the current indicative rate for monitoring.
	MarketRate(ctx context.Context, from, to entities.Currency) (decimal.Decimal, error)
}

// HTTPClient implements Client against the exchange desk service
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates an exchange desk client
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// GetQuote fixes a rate with the desk
func (c *HTTPClient) GetQuote(ctx context.Context, from, to entities.Currency, value decimal.Decimal) (*Quote, error) {
	body := map[string]interface{}{
		"fromCurrency": from,
		"toCurrency":   to,
		"value":        value,
	}
	var quote Quote
	if err := c.post(ctx, "/v1/quotes", body, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// Execute settles a quoted conversion
func (c *HTTPClient) Execute(ctx context.Context, quoteID uuid.UUID) error {
	return c.post(ctx, fmt.Sprintf("/v1/quotes/%s/execute", quoteID), nil, nil)
}

// MarketRate returns the current indicative rate
func (c *HTTPClient) MarketRate(ctx context.Context, from, to entities.Currency) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/rates?from=%s&to=%s", c.baseURL, from, to), nil)
	if err != nil {
		return decimal.Zero, err
	}

	var out struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := c.do(req, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Rate, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domainerrors.ErrNotFound
	case resp.StatusCode == http.StatusGone:
		return domainerrors.ErrRateExpired
	case resp.StatusCode >= 500:
		return domainerrors.ErrTransientInternal
	case resp.StatusCode >= 400:
		return fmt.Errorf("exchange rejected request: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
