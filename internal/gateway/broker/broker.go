// Package broker places orders with brokerage accounts.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Credentials authenticate one account. String masks the secret.
type Credentials struct {
	Account   string
	BaseURL   string
	KeyID     string
	SecretKey string
	Paper     bool
}

func (c Credentials) String() string {
	return fmt.Sprintf("%s(key=%s secret=%s paper=%t)", c.Account, maskTail(c.KeyID), maskTail(c.SecretKey), c.Paper)
}

func (c Credentials) GoString() string { return c.String() }

func maskTail(v string) string {
	if v == "" {
		return ""
	}
	if len(v) > 4 {
		return "****" + v[len(v)-4:]
	}
	return "****"
}

type OrderRequest struct {
	Symbol      string
	Side        string
	Qty         decimal.Decimal
	OrderType   string
	TimeInForce string
	LimitPrice  *decimal.Decimal
	StopPrice   *decimal.Decimal
	ClientID    string
}

type OrderResult struct {
	OrderID     string
	ClientID    string
	Status      string
	Symbol      string
	Side        string
	Qty         decimal.Decimal
	SubmittedAt time.Time
}

// Broker is the order placement collaborator. Errors carry human-readable
// text that the execution retry policy classifies.
type Broker interface {
	PlaceOrder(ctx context.Context, creds Credentials, req OrderRequest) (*OrderResult, error)
}
