// Package broker implements the execution-venue collaborator. RESTBroker
// talks to a real venue over HTTP; PaperBroker simulates fills locally for
// paper trading and tests.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// RESTBroker submits orders to an execution venue's REST API. Requests are
// rate-limited client-side so a burst of closes cannot trip the venue's
// request caps.
type RESTBroker struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewRESTBroker creates a broker client for the venue at baseURL. rps caps
// outbound requests per second.
func NewRESTBroker(baseURL, apiKey string, rps float64) *RESTBroker {
	if rps <= 0 {
		rps = 5
	}
	return &RESTBroker{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

type placeRequest struct {
	OrderID string  `json:"order_id"`
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

type placeResponse struct {
	OrderID     string  `json:"order_id"`
	Filled      bool    `json:"filled"`
	FilledPrice float64 `json:"filled_price"`
	Message     string  `json:"message"`
}

// Place submits the order and blocks until the venue acknowledges or ctx
// expires. The caller owns the timeout.
func (b *RESTBroker) Place(ctx context.Context, o domain.Order) (domain.BrokerAck, error) {
	req := placeRequest{
		OrderID: o.ID,
		Symbol:  o.Symbol,
		Side:    string(o.Side),
		Price:   o.EntryPrice(),
		Size:    o.Size(),
	}
	var resp placeResponse
	if err := b.do(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return domain.BrokerAck{}, fmt.Errorf("broker: place order %s: %w", o.ID, err)
	}
	return domain.BrokerAck{
		OrderID:     resp.OrderID,
		Filled:      resp.Filled,
		FilledTicks: domain.PriceToTicks(resp.FilledPrice),
		Message:     resp.Message,
		At:          time.Now().UTC(),
	}, nil
}

// Close requests the venue close out the position behind a filled order.
func (b *RESTBroker) Close(ctx context.Context, o domain.Order, exitTicks int64) error {
	req := placeRequest{
		OrderID: o.ID,
		Symbol:  o.Symbol,
		Side:    string(opposite(o.Side)),
		Price:   float64(exitTicks) / 1e6,
		Size:    o.Size(),
	}
	if err := b.do(ctx, http.MethodPost, "/orders/close", req, &placeResponse{}); err != nil {
		return fmt.Errorf("broker: close order %s: %w", o.ID, err)
	}
	return nil
}

func opposite(s domain.OrderSide) domain.OrderSide {
	if s == domain.OrderSideBuy {
		return domain.OrderSideSell
	}
	return domain.OrderSideBuy
}

func (b *RESTBroker) do(ctx context.Context, method, path string, body, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", domain.ErrBrokerRejected, resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
