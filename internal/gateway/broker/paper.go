package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperBroker accepts every well-formed order in process.
type PaperBroker struct {
	mu     sync.Mutex
	orders []OrderResult
	now    func() time.Time
}

func NewPaperBroker() *PaperBroker {
	return &PaperBroker{now: time.Now}
}

func (p *PaperBroker) PlaceOrder(ctx context.Context, creds Credentials, req OrderRequest) (*OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, fmt.Errorf("invalid symbol: empty")
	}
	if !req.Qty.IsPositive() {
		return nil, fmt.Errorf("invalid qty %s", req.Qty)
	}
	if req.Side != "buy" && req.Side != "sell" {
		return nil, fmt.Errorf("invalid side %q", req.Side)
	}
	res := OrderResult{
		OrderID:     uuid.NewString(),
		ClientID:    req.ClientID,
		Status:      "accepted",
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         req.Qty,
		SubmittedAt: p.now(),
	}
	p.mu.Lock()
	p.orders = append(p.orders, res)
	p.mu.Unlock()
	return &res, nil
}

// Orders returns every accepted order.
func (p *PaperBroker) Orders() []OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderResult(nil), p.orders...)
}
