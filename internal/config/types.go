package config

import "strings"

// Config is the root configuration of the council service.
type Config struct {
	App       AppConfig       `toml:"app"`
	Council   CouncilConfig   `toml:"council"`
	Models    ModelsConfig    `toml:"models"`
	Accounts  []AccountConfig `toml:"accounts"`
	Execution ExecutionConfig `toml:"execution"`
	Store     StoreConfig     `toml:"store"`
}

type AppConfig struct {
	Env            string `toml:"env"`
	LogLevel       string `toml:"log_level"`
	HTTPAddr       string `toml:"http_addr"`
	LogPath        string `toml:"log_path"`
	TranscriptPath string `toml:"transcript_path"`
	TranscriptDump bool   `toml:"transcript_dump"`
}

// CouncilConfig names the deliberating models and the chairman that
// synthesizes their answers. Members order is significant: it fixes the
// anonymous label assignment.
type CouncilConfig struct {
	Members          []string `toml:"members"`
	Chairman         string   `toml:"chairman"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	PromptsPath      string   `toml:"prompts_path"`
	MaxResponseChars int      `toml:"max_response_chars"`
}

type ModelsConfig struct {
	Presets                map[string]ModelPreset `toml:"presets"`
	Entries                []ModelConfig          `toml:"entries"`
	MaxRetries             int                    `toml:"max_retries"`
	BreakerThreshold       int                    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int                    `toml:"breaker_cooldown_seconds"`
}

// ModelPreset holds reusable connection settings shared by several entries.
type ModelPreset struct {
	APIURL  string            `toml:"api_url"`
	APIKey  string            `toml:"api_key"`
	Headers map[string]string `toml:"headers"`
}

type ModelConfig struct {
	ID       string `toml:"id"`
	Provider string `toml:"provider"`
	Preset   string `toml:"preset"`
	// Enabled is a pointer so that an omitted key means enabled.
	Enabled *bool             `toml:"enabled"`
	APIURL  string            `toml:"api_url"`
	APIKey  string            `toml:"api_key"`
	Model   string            `toml:"model"`
	Headers map[string]string `toml:"headers"`
}

// ResolvedModel is a model entry after preset inheritance.
type ResolvedModel struct {
	ID       string
	Provider string
	Enabled  bool
	APIURL   string
	APIKey   string
	Model    string
	Headers  map[string]string
}

// AccountConfig describes one brokerage account. Quantities are strings so
// they reach decimal parsing without a float round trip.
type AccountConfig struct {
	Name              string `toml:"name"`
	Baseline          bool   `toml:"baseline"`
	Paper             bool   `toml:"paper"`
	BaseURL           string `toml:"base_url"`
	KeyID             string `toml:"key_id"`
	SecretKey         string `toml:"secret_key"`
	BaseQuantity      string `toml:"base_quantity"`
	QuantityStep      string `toml:"quantity_step"`
	OrderType         string `toml:"order_type"`
	TimeInForce       string `toml:"time_in_force"`
	ScaleByConviction bool   `toml:"scale_by_conviction"`
}

type ExecutionConfig struct {
	RetryDelaySeconds float64 `toml:"retry_delay_seconds"`
	Broker            string  `toml:"broker"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

type StoreConfig struct {
	EventsDB     string `toml:"events_db"`
	JobsDB       string `toml:"jobs_db"`
	EventLogPath string `toml:"event_log_path"`
}

// NormalizeAccountName is the canonical key for account lookups.
func NormalizeAccountName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// ResolveModels merges presets into entries. Disabled entries are kept with
// Enabled=false so validation can report roster references to them.
func (m ModelsConfig) ResolveModels() []ResolvedModel {
	out := make([]ResolvedModel, 0, len(m.Entries))
	for _, e := range m.Entries {
		rm := ResolvedModel{
			ID:       strings.TrimSpace(e.ID),
			Provider: strings.TrimSpace(e.Provider),
			Enabled:  e.Enabled == nil || *e.Enabled,
			APIURL:   strings.TrimSpace(e.APIURL),
			APIKey:   strings.TrimSpace(e.APIKey),
			Model:    strings.TrimSpace(e.Model),
			Headers:  map[string]string{},
		}
		if preset, ok := m.Presets[strings.TrimSpace(e.Preset)]; ok {
			if rm.APIURL == "" {
				rm.APIURL = strings.TrimSpace(preset.APIURL)
			}
			if rm.APIKey == "" {
				rm.APIKey = strings.TrimSpace(preset.APIKey)
			}
			for k, v := range preset.Headers {
				rm.Headers[k] = v
			}
		}
		for k, v := range e.Headers {
			rm.Headers[k] = v
		}
		if rm.ID == "" {
			rm.ID = rm.Model
		}
		out = append(out, rm)
	}
	return out
}

// keySet tracks which dotted keys the config files set explicitly.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
