package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"wallet-ledger.backend/internal/domain/entities"
)

type observationServiceStub struct {
	processFn func(ctx context.Context, obs *entities.BlockchainTransaction) error
}

func (s observationServiceStub) ProcessObservation(ctx context.Context, obs *entities.BlockchainTransaction) error {
	return s.processFn(ctx, obs)
}

func TestObservationHandler_HandleObservation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got *entities.BlockchainTransaction
	service := observationServiceStub{
		processFn: func(_ context.Context, obs *entities.BlockchainTransaction) error {
			got = obs
			return nil
		},
	}

	h := NewObservationHandler(service)
	r := gin.New()
	r.POST("/webhooks/observations", h.HandleObservation)

	body := []byte(`{"hash":"0xabc","fromAddress":"0x1","toAddress":"0x2","currency":"ETH","value":"3","confirmations":14}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/observations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if got == nil || got.Hash != "0xabc" || got.Confirmations != 14 {
		t.Fatalf("observation not forwarded: %+v", got)
	}

	// Missing hash rejected before the reconciler runs
	got = nil
	body = []byte(`{"currency":"ETH","value":"3"}`)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/observations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}
	if got != nil {
		t.Fatal("reconciler should not have been called")
	}

	// Malformed body
	req = httptest.NewRequest(http.MethodPost, "/webhooks/observations", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}
}
