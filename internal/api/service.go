// Package api provides the HTTP handlers for order submission, holdings and
// positions snapshots, the order log, and the forecast proxy.
//
// Account identity is resolved upstream (authentication is an external
// concern); handlers trust the account ID carried in the path or body.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradepulse/brokerage-engine/internal/engine"
	"github.com/tradepulse/brokerage-engine/internal/forecast"
	"github.com/tradepulse/brokerage-engine/internal/instrument"
	"github.com/tradepulse/brokerage-engine/internal/metrics"
	"github.com/tradepulse/brokerage-engine/internal/model"
	"github.com/tradepulse/brokerage-engine/internal/store"
)

// Service wires the execution engine and snapshot reads to HTTP.
type Service struct {
	engine   *engine.Engine
	store    store.Store
	forecast *forecast.Client
	wsHub    *WSHub // optional hub for real-time execution broadcasts
}

// NewService creates the API service. Pass nil for fc if the forecast proxy
// is not configured and nil for hub if broadcasting is not needed.
func NewService(eng *engine.Engine, st store.Store, fc *forecast.Client, hub *WSHub) *Service {
	return &Service{
		engine:   eng,
		store:    st,
		forecast: fc,
		wsHub:    hub,
	}
}

// --- Request/Response types ---

// OrderRequest is the JSON body for POST /api/v1/orders.
type OrderRequest struct {
	AccountID  string          `json:"account_id"`
	Instrument string          `json:"instrument"`
	Side       string          `json:"side"` // "BUY" or "SELL"
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// OrderResponse is the JSON body returned from POST /api/v1/orders.
type OrderResponse struct {
	Order   model.Order    `json:"order"`
	Holding *model.Holding `json:"holding"` // nil when the sell closed the position
}

// ForecastRequest is the JSON body for POST /api/v1/forecast.
type ForecastRequest struct {
	Instrument string `json:"instrument"`
}

// --- HTTP Handlers ---

// SubmitOrder handles POST /api/v1/orders.
func (s *Service) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		writeError(w, "account_id is required", http.StatusBadRequest)
		return
	}
	if err := instrument.Validate(req.Instrument); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	start := time.Now()

	order, err := s.engine.Execute(ctx, engine.Request{
		AccountID:  req.AccountID,
		Instrument: req.Instrument,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
	})
	if err != nil {
		status, reason := classify(err)
		metrics.OrderRejections.WithLabelValues(reason).Inc()
		writeError(w, err.Error(), status)
		return
	}

	metrics.OrdersTotal.WithLabelValues(order.Side).Inc()
	metrics.ExecutionLatency.WithLabelValues(order.Side).Observe(time.Since(start).Seconds())

	// Include the post-execution holding; absent after a full liquidation.
	var holding *model.Holding
	if h, err := s.store.GetHolding(ctx, order.AccountID, order.Instrument); err == nil {
		holding = h
	}

	if s.wsHub != nil {
		msg := WSMessage{
			Type:       "order_executed",
			OrderID:    order.ID,
			AccountID:  order.AccountID,
			Instrument: order.Instrument,
			Side:       order.Side,
			Quantity:   order.Quantity,
			Price:      order.Price.String(),
		}
		if holding != nil {
			msg.HoldingQty = holding.Quantity
			msg.AverageCost = holding.AverageCost.String()
		}
		s.wsHub.Broadcast(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(OrderResponse{Order: *order, Holding: holding})
}

// ListOrders handles GET /api/v1/accounts/{accountID}/orders.
// Orders come back oldest first (the append-only audit order).
func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	orders, err := s.store.ListOrders(r.Context(), accountID)
	if err != nil {
		writeError(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// ListHoldings handles GET /api/v1/accounts/{accountID}/holdings.
func (s *Service) ListHoldings(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	holdings, err := s.store.ListHoldings(r.Context(), accountID)
	if err != nil {
		writeError(w, "failed to list holdings", http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(holdings)
}

// ListPositions handles GET /api/v1/accounts/{accountID}/positions.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	positions, err := s.store.ListPositions(r.Context(), accountID)
	if err != nil {
		writeError(w, "failed to list positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

// GetForecast handles POST /api/v1/forecast, proxying to the AI service.
// Timeout maps to 504; unreachable or malformed upstream maps to 502.
func (s *Service) GetForecast(w http.ResponseWriter, r *http.Request) {
	if s.forecast == nil {
		writeError(w, "forecast service not configured", http.StatusServiceUnavailable)
		return
	}

	var req ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := instrument.Validate(req.Instrument); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fc, err := s.forecast.Predict(r.Context(), req.Instrument)
	if err != nil {
		switch {
		case errors.Is(err, forecast.ErrTimeout):
			metrics.ForecastRequests.WithLabelValues("timeout").Inc()
			writeError(w, err.Error(), http.StatusGatewayTimeout)
		case errors.Is(err, forecast.ErrNotConfigured):
			metrics.ForecastRequests.WithLabelValues("unconfigured").Inc()
			writeError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			metrics.ForecastRequests.WithLabelValues("error").Inc()
			writeError(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	metrics.ForecastRequests.WithLabelValues("ok").Inc()
	slog.Info("forecast served", "instrument", fc.Instrument, "next_close", fc.NextClose.String())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fc)
}

// classify maps an execution error to an HTTP status and a rejection reason
// label for metrics.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, engine.ErrInvalidPrice):
		return http.StatusBadRequest, "invalid_price"
	case errors.Is(err, engine.ErrInvalidSide):
		return http.StatusBadRequest, "invalid_side"
	case errors.Is(err, engine.ErrInsufficientHoldings):
		return http.StatusConflict, "insufficient_holdings"
	case errors.Is(err, engine.ErrOverSell):
		return http.StatusConflict, "oversell"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, "storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
