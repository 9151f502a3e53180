package execution

import (
	"errors"
	"fmt"
	"strings"

	"council/internal/config"
	"council/internal/gateway/broker"

	"github.com/shopspring/decimal"
)

// ErrUnknownAccount is reported for intents naming an unregistered account.
var ErrUnknownAccount = errors.New("unknown account")

// Account is one registered brokerage account.
type Account struct {
	Name              string
	Baseline          bool
	Credentials       broker.Credentials
	BaseQuantity      decimal.Decimal
	QuantityStep      decimal.Decimal
	OrderType         string
	TimeInForce       string
	ScaleByConviction bool
}

// Registry is the static account table, fixed at startup.
type Registry struct {
	accounts map[string]Account
	order    []string
}

func NewRegistry(accounts []Account) (*Registry, error) {
	r := &Registry{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		a.Name = config.NormalizeAccountName(a.Name)
		if a.Name == "" {
			return nil, fmt.Errorf("account without name")
		}
		if _, dup := r.accounts[a.Name]; dup {
			return nil, fmt.Errorf("duplicate account %s", a.Name)
		}
		if a.OrderType == "" {
			a.OrderType = "market"
		}
		if a.TimeInForce == "" {
			a.TimeInForce = "day"
		}
		if a.QuantityStep.IsZero() {
			a.QuantityStep = decimal.NewFromInt(1)
		}
		a.Credentials.Account = a.Name
		r.accounts[a.Name] = a
		r.order = append(r.order, a.Name)
	}
	return r, nil
}

// RegistryFromConfig builds the registry from validated account config.
func RegistryFromConfig(cfgs []config.AccountConfig) (*Registry, error) {
	accounts := make([]Account, 0, len(cfgs))
	for _, c := range cfgs {
		a := Account{
			Name:     c.Name,
			Baseline: c.Baseline,
			Credentials: broker.Credentials{
				BaseURL:   c.BaseURL,
				KeyID:     c.KeyID,
				SecretKey: c.SecretKey,
				Paper:     c.Paper,
			},
			OrderType:         c.OrderType,
			TimeInForce:       c.TimeInForce,
			ScaleByConviction: c.ScaleByConviction,
		}
		var err error
		if raw := strings.TrimSpace(c.BaseQuantity); raw != "" {
			if a.BaseQuantity, err = decimal.NewFromString(raw); err != nil {
				return nil, fmt.Errorf("account %s base_quantity: %w", c.Name, err)
			}
		}
		if raw := strings.TrimSpace(c.QuantityStep); raw != "" {
			if a.QuantityStep, err = decimal.NewFromString(raw); err != nil {
				return nil, fmt.Errorf("account %s quantity_step: %w", c.Name, err)
			}
		}
		accounts = append(accounts, a)
	}
	return NewRegistry(accounts)
}

func (r *Registry) Lookup(name string) (Account, bool) {
	if r == nil {
		return Account{}, false
	}
	a, ok := r.accounts[config.NormalizeAccountName(name)]
	return a, ok
}

// Names returns account names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (r *Registry) Accounts() []Account {
	if r == nil {
		return nil
	}
	out := make([]Account, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.accounts[name])
	}
	return out
}
