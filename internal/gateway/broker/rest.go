package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"council/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// APIError is a non-2xx brokerage reply.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker status %d: %s", e.StatusCode, e.Message)
}

// RESTBroker talks to an Alpaca-compatible trading API.
type RESTBroker struct {
	httpClient *http.Client
}

// NewRESTBroker shares one pooled client across every account.
func NewRESTBroker(timeout time.Duration) *RESTBroker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	return &RESTBroker{httpClient: &http.Client{Timeout: timeout, Transport: transport}}
}

// SetHTTPClient sets the HTTP client for testing.
func (b *RESTBroker) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}

type orderPayload struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price,omitempty"`
	StopPrice     string `json:"stop_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

func (b *RESTBroker) PlaceOrder(ctx context.Context, creds Credentials, req OrderRequest) (*OrderResult, error) {
	base := strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("broker: account %s has no base_url", creds.Account)
	}
	payload := orderPayload{
		Symbol:        req.Symbol,
		Qty:           req.Qty.String(),
		Side:          req.Side,
		Type:          req.OrderType,
		TimeInForce:   req.TimeInForce,
		ClientOrderID: req.ClientID,
	}
	if req.LimitPrice != nil {
		payload.LimitPrice = req.LimitPrice.String()
	}
	if req.StopPrice != nil {
		payload.StopPrice = req.StopPrice.String()
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v2/orders", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("APCA-API-KEY-ID", creds.KeyID)
	httpReq.Header.Set("APCA-API-SECRET-KEY", creds.SecretKey)

	logger.Debugf("broker: POST %s/v2/orders account=%s %s %s %s", base, creds, req.Side, req.Qty, req.Symbol)
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("broker request failed: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(gjson.GetBytes(data, "message").String())
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		if msg == "" {
			msg = resp.Status
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("broker returned invalid json")
	}
	parsed := gjson.ParseBytes(data)
	out := &OrderResult{
		OrderID:  parsed.Get("id").String(),
		ClientID: parsed.Get("client_order_id").String(),
		Status:   parsed.Get("status").String(),
		Symbol:   parsed.Get("symbol").String(),
		Side:     parsed.Get("side").String(),
		Qty:      req.Qty,
	}
	if out.OrderID == "" {
		return nil, fmt.Errorf("broker returned no order id")
	}
	if q, err := decimal.NewFromString(parsed.Get("qty").String()); err == nil {
		out.Qty = q
	}
	if ts, err := time.Parse(time.RFC3339Nano, parsed.Get("submitted_at").String()); err == nil {
		out.SubmittedAt = ts
	}
	return out, nil
}
