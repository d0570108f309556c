package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
)

// SignerClient talks to the custody signer service. The signer owns the
// private keys and the per-address transfer index; the ledger engine never
// sees key material.
type SignerClient struct {
	baseURL string
	client  *http.Client
}

// NewSignerClient creates a signer client
func NewSignerClient(baseURL string) *SignerClient {
	return &SignerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit asks the signer to sign and broadcast an outbound transfer
func (c *SignerClient) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	var result SubmitResult
	if err := c.post(ctx, "/v1/transactions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListByAddress returns recent transfers touching an address
func (c *SignerClient) ListByAddress(ctx context.Context, currency entities.Currency, address string) ([]*entities.BlockchainTransaction, error) {
	path := fmt.Sprintf("/v1/addresses/%s/transactions?currency=%s", url.PathEscape(address), currency)
	var out []*entities.BlockchainTransaction
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchByHash returns one observed transfer
func (c *SignerClient) FetchByHash(ctx context.Context, currency entities.Currency, hash string) (*entities.BlockchainTransaction, error) {
	path := fmt.Sprintf("/v1/transactions/%s?currency=%s", url.PathEscape(hash), currency)
	var out entities.BlockchainTransaction
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance returns the confirmed balance of an address
func (c *SignerClient) Balance(ctx context.Context, currency entities.Currency, address string) (decimal.Decimal, error) {
	path := fmt.Sprintf("/v1/addresses/%s/balance?currency=%s", url.PathEscape(address), currency)
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}

// EstimateFee returns the current network fee for a standard transfer
func (c *SignerClient) EstimateFee(ctx context.Context, currency entities.Currency) (decimal.Decimal, error) {
	path := fmt.Sprintf("/v1/fees/estimate?currency=%s", currency)
	var out struct {
		Fee decimal.Decimal `json:"fee"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Fee, nil
}

func (c *SignerClient) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *SignerClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *SignerClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("signer request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domainerrors.ErrNotFound
	case resp.StatusCode >= 500:
		return domainerrors.ErrTransientInternal
	case resp.StatusCode >= 400:
		return fmt.Errorf("signer rejected request: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
