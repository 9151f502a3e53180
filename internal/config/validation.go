package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCouncilMembers is bounded by the single-letter anonymous labels.
const MaxCouncilMembers = 26

func validate(c *Config) error {
	models := c.Models.ResolveModels()
	if err := c.Models.validate(models); err != nil {
		return err
	}
	if err := c.Council.validate(models); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	return validateAccounts(c.Accounts)
}

func (m ModelsConfig) validate(models []ResolvedModel) error {
	seen := make(map[string]struct{}, len(models))
	for _, rm := range models {
		if rm.ID == "" {
			return fmt.Errorf("models.entries contains entry without id or model")
		}
		if _, dup := seen[rm.ID]; dup {
			return fmt.Errorf("models.entries has duplicate id: %s", rm.ID)
		}
		seen[rm.ID] = struct{}{}
		if !rm.Enabled {
			continue
		}
		if rm.Model == "" {
			return fmt.Errorf("models.%s missing model", rm.ID)
		}
		if rm.APIURL == "" {
			return fmt.Errorf("models.%s missing api_url (can inherit from preset)", rm.ID)
		}
	}
	if m.MaxRetries < 0 {
		return fmt.Errorf("models.max_retries must be >= 0")
	}
	return nil
}

func (c CouncilConfig) validate(models []ResolvedModel) error {
	if len(c.Members) == 0 {
		return fmt.Errorf("council.members requires at least one model")
	}
	if len(c.Members) > MaxCouncilMembers {
		return fmt.Errorf("council.members supports at most %d models, got %d", MaxCouncilMembers, len(c.Members))
	}
	enabled := make(map[string]bool, len(models))
	for _, rm := range models {
		enabled[rm.ID] = rm.Enabled
	}
	check := func(field, id string) error {
		on, ok := enabled[id]
		if !ok {
			return fmt.Errorf("%s references unconfigured model id: %s", field, id)
		}
		if !on {
			return fmt.Errorf("%s references disabled model id: %s", field, id)
		}
		return nil
	}
	for _, id := range c.Members {
		if err := check("council.members", id); err != nil {
			return err
		}
	}
	if c.Chairman == "" {
		return fmt.Errorf("council.chairman is required")
	}
	return check("council.chairman", c.Chairman)
}

func (e ExecutionConfig) validate() error {
	if e.RetryDelaySeconds < 0 {
		return fmt.Errorf("execution.retry_delay_seconds must be >= 0")
	}
	switch e.Broker {
	case "paper", "rest":
	default:
		return fmt.Errorf("execution.broker must be paper or rest, got %q", e.Broker)
	}
	return nil
}

func validateAccounts(accounts []AccountConfig) error {
	seen := make(map[string]struct{}, len(accounts))
	for i, a := range accounts {
		if a.Name == "" {
			return fmt.Errorf("accounts[%d] missing name", i)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("accounts has duplicate name: %s", a.Name)
		}
		seen[a.Name] = struct{}{}
		step, err := decimal.NewFromString(a.QuantityStep)
		if err != nil || !step.IsPositive() {
			return fmt.Errorf("accounts.%s quantity_step must be a positive number", a.Name)
		}
		if a.Baseline {
			continue
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(a.BaseQuantity))
		if err != nil || !qty.IsPositive() {
			return fmt.Errorf("accounts.%s base_quantity must be a positive number", a.Name)
		}
		if a.OrderType != "market" {
			return fmt.Errorf("accounts.%s order_type %q is not supported", a.Name, a.OrderType)
		}
	}
	return nil
}
