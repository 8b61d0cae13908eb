package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradepulse/brokerage-engine/internal/api"
	"github.com/tradepulse/brokerage-engine/internal/engine"
	"github.com/tradepulse/brokerage-engine/internal/forecast"
	"github.com/tradepulse/brokerage-engine/internal/model"
	"github.com/tradepulse/brokerage-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T, fc *forecast.Client) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := api.NewService(engine.New(ms), ms, fc, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/orders", svc.SubmitOrder)
	r.Get("/api/v1/accounts/{accountID}/orders", svc.ListOrders)
	r.Get("/api/v1/accounts/{accountID}/holdings", svc.ListHoldings)
	r.Get("/api/v1/accounts/{accountID}/positions", svc.ListPositions)
	r.Post("/api/v1/forecast", svc.GetForecast)

	return ms, r
}

func doOrder(t *testing.T, router chi.Router, req api.OrderRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	return w
}

func doGet(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

// --- Order submission ---

func TestSubmitOrder_Buy(t *testing.T) {
	_, router := newTestEnv(t, nil)

	w := doOrder(t, router, api.OrderRequest{
		AccountID:  "A1",
		Instrument: "TCS",
		Side:       "BUY",
		Quantity:   10,
		Price:      d(100),
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp api.OrderResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Order.ID == "" {
		t.Error("expected non-empty order id")
	}
	if resp.Holding == nil {
		t.Fatal("expected holding in response")
	}
	if resp.Holding.Quantity != 10 {
		t.Errorf("holding quantity = %d, want 10", resp.Holding.Quantity)
	}
	if !resp.Holding.AverageCost.Equal(d(100)) {
		t.Errorf("average cost = %s, want 100", resp.Holding.AverageCost)
	}
}

func TestSubmitOrder_ClosingSellOmitsHolding(t *testing.T) {
	_, router := newTestEnv(t, nil)

	doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "BUY", Quantity: 10, Price: d(100)})
	w := doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "SELL", Quantity: 10, Price: d(110)})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp api.OrderResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Holding != nil {
		t.Errorf("expected no holding after full liquidation, got %+v", resp.Holding)
	}
}

func TestSubmitOrder_MissingAccount(t *testing.T) {
	_, router := newTestEnv(t, nil)

	w := doOrder(t, router, api.OrderRequest{Instrument: "TCS", Side: "BUY", Quantity: 10, Price: d(100)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing account_id, got %d", w.Code)
	}
}

func TestSubmitOrder_InvalidSide(t *testing.T) {
	_, router := newTestEnv(t, nil)

	w := doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "MAYBE", Quantity: 10, Price: d(100)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid side, got %d", w.Code)
	}
}

func TestSubmitOrder_ZeroQuantity(t *testing.T) {
	_, router := newTestEnv(t, nil)

	w := doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "BUY", Quantity: 0, Price: d(100)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero quantity, got %d", w.Code)
	}
}

func TestSubmitOrder_SellWithoutHolding(t *testing.T) {
	ms, router := newTestEnv(t, nil)

	w := doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "SELL", Quantity: 5, Price: d(100)})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for sell without holding, got %d", w.Code)
	}

	orders, _ := ms.ListOrders(context.Background(), "A1")
	if len(orders) != 0 {
		t.Errorf("rejected sell appended %d orders, want 0", len(orders))
	}
}

func TestSubmitOrder_OverSell(t *testing.T) {
	_, router := newTestEnv(t, nil)

	doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "BUY", Quantity: 5, Price: d(100)})
	w := doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "SELL", Quantity: 6, Price: d(100)})

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for oversell, got %d", w.Code)
	}
}

// --- Snapshots ---

func TestListOrders(t *testing.T) {
	_, router := newTestEnv(t, nil)

	doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "BUY", Quantity: 10, Price: d(100)})
	doOrder(t, router, api.OrderRequest{AccountID: "A1", Instrument: "TCS", Side: "SELL", Quantity: 4, Price: d(110)})
	doOrder(t, router, api.OrderRequest{AccountID: "A2", Instrument: "TCS", Side: "BUY", Quantity: 1, Price: d(100)})

	w := doGet(t, router, "/api/v1/accounts/A1/orders")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var orders []model.Order
	json.Unmarshal(w.Body.Bytes(), &orders)
	if len(orders) != 2 {
		t.Fatalf("A1 has %d orders, want 2", len(orders))
	}
	if orders[0].Side != "BUY" || orders[1].Side != "SELL" {
		t.Errorf("orders not in submission order: %s, %s", orders[0].Side, orders[1].Side)
	}
}

func TestListHoldings_EmptyIsArray(t *testing.T) {
	_, router := newTestEnv(t, nil)

	w := doGet(t, router, "/api/v1/accounts/A1/holdings")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := bytes.TrimSpace(w.Body.Bytes()); string(body) != "[]" {
		t.Errorf("expected empty JSON array, got %s", body)
	}
}

func TestListPositions(t *testing.T) {
	ms, router := newTestEnv(t, nil)

	ms.UpsertPosition(context.Background(), &model.Position{
		AccountID:   "A1",
		Instrument:  "TCS",
		Quantity:    10,
		AverageCost: d(100),
	})

	w := doGet(t, router, "/api/v1/accounts/A1/positions")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var positions []model.Position
	json.Unmarshal(w.Body.Bytes(), &positions)
	if len(positions) != 1 {
		t.Errorf("A1 has %d positions, want 1", len(positions))
	}
}

// --- Forecast proxy ---

func TestGetForecast(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol":          "TCS",
			"predicted_close": 1234.5,
		})
	}))
	defer upstream.Close()

	_, router := newTestEnv(t, forecast.NewClient(upstream.URL, time.Second))

	body, _ := json.Marshal(api.ForecastRequest{Instrument: "TCS"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/forecast", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var fc forecast.Forecast
	json.Unmarshal(w.Body.Bytes(), &fc)
	if fc.Instrument != "TCS" {
		t.Errorf("instrument = %s, want TCS", fc.Instrument)
	}
	if !fc.NextClose.Equal(d(1234.5)) {
		t.Errorf("next_close = %s, want 1234.5", fc.NextClose)
	}
}

func TestGetForecast_NotConfigured(t *testing.T) {
	_, router := newTestEnv(t, nil)

	body, _ := json.Marshal(api.ForecastRequest{Instrument: "TCS"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/forecast", bytes.NewReader(body)))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without forecast client, got %d", w.Code)
	}
}

func TestGetForecast_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // connection refused from here on

	_, router := newTestEnv(t, forecast.NewClient(upstream.URL, time.Second))

	body, _ := json.Marshal(api.ForecastRequest{Instrument: "TCS"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/forecast", bytes.NewReader(body)))

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for unreachable upstream, got %d", w.Code)
	}
}
