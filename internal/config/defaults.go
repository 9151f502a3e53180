package config

import "strings"

const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppHTTPAddr        = ":9992"
	defaultCouncilTimeout     = 120
	defaultModelMaxRetries    = 2
	defaultBreakerThreshold   = 3
	defaultBreakerCooldown    = 60
	defaultExecRetryDelay     = 5
	defaultExecBroker         = "paper"
	defaultExecTimeout        = 15
	defaultEventsDB           = "data/council.db"
	defaultJobsDB             = "data/jobs.db"
	defaultAccountOrderType   = "market"
	defaultAccountStep        = "1"
	defaultAccountTimeInForce = "day"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Council.applyDefaults(keys)
	c.Models.applyDefaults(keys)
	c.Execution.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	for i := range c.Accounts {
		c.Accounts[i].applyDefaults()
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (c *CouncilConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("council.timeout_seconds", &c.TimeoutSeconds, defaultCouncilTimeout),
	)
	for i, m := range c.Members {
		c.Members[i] = strings.TrimSpace(m)
	}
	c.Chairman = strings.TrimSpace(c.Chairman)
}

func (m *ModelsConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("models.max_retries", &m.MaxRetries, defaultModelMaxRetries),
		intFieldDefault("models.breaker_threshold", &m.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("models.breaker_cooldown_seconds", &m.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func (e *ExecutionConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "execution.retry_delay_seconds",
			need:  func() bool { return e.RetryDelaySeconds <= 0 },
			apply: func() { e.RetryDelaySeconds = defaultExecRetryDelay },
		},
		stringFieldDefault("execution.broker", &e.Broker, defaultExecBroker),
		intFieldDefault("execution.timeout_seconds", &e.TimeoutSeconds, defaultExecTimeout),
	)
	e.Broker = strings.ToLower(strings.TrimSpace(e.Broker))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("store.events_db", &s.EventsDB, defaultEventsDB),
		stringFieldDefault("store.jobs_db", &s.JobsDB, defaultJobsDB),
	)
}

// Accounts live in a list, so explicit-key tracking does not apply to them.
func (a *AccountConfig) applyDefaults() {
	a.Name = NormalizeAccountName(a.Name)
	applyFieldDefaults(nil,
		stringFieldDefault("", &a.OrderType, defaultAccountOrderType),
		stringFieldDefault("", &a.QuantityStep, defaultAccountStep),
		stringFieldDefault("", &a.TimeInForce, defaultAccountTimeInForce),
	)
	a.OrderType = strings.ToLower(strings.TrimSpace(a.OrderType))
	a.TimeInForce = strings.ToLower(strings.TrimSpace(a.TimeInForce))
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}
