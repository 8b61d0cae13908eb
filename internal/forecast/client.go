// Package forecast is a thin client for the external AI price-forecasting
// service. It is a stateless call-through: one POST per request, a bounded
// timeout, and translation of transport failures into distinct error kinds
// so callers can tell a slow service from an unreachable or broken one.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured is returned when no service base URL is set.
	ErrNotConfigured = errors.New("forecast: service URL not configured")

	// ErrTimeout is returned when the forecast service did not answer
	// within the configured deadline.
	ErrTimeout = errors.New("forecast: service request timed out")

	// ErrUnreachable is returned when the service could not be reached
	// at all (connection refused, DNS failure).
	ErrUnreachable = errors.New("forecast: service unreachable")

	// ErrMalformed is returned when the service answered with a body
	// that could not be decoded.
	ErrMalformed = errors.New("forecast: malformed service response")
)

// DefaultTimeout bounds a forecast round trip when no timeout is given.
const DefaultTimeout = 10 * time.Second

// Forecast is the prediction returned for one instrument.
type Forecast struct {
	Instrument  string          `json:"instrument"`
	NextClose   decimal.Decimal `json:"next_close"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Client calls the forecasting service's /predict endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a forecast client. baseURL may be empty, in which case
// every Predict call fails with ErrNotConfigured.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Symbol string `json:"symbol"`
}

type predictResponse struct {
	Symbol         string           `json:"symbol"`
	PredictedClose *decimal.Decimal `json:"predicted_close"`
	Detail         string           `json:"detail"` // populated on service-side errors
}

// Predict requests the next-close prediction for an instrument.
func (c *Client) Predict(ctx context.Context, instrument string) (*Forecast, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, _ := json.Marshal(predictRequest{Symbol: instrument})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := pr.Detail
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("forecast: service error: %s", detail)
	}
	if pr.PredictedClose == nil {
		return nil, fmt.Errorf("%w: missing predicted_close", ErrMalformed)
	}

	return &Forecast{
		Instrument:  pr.Symbol,
		NextClose:   *pr.PredictedClose,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
