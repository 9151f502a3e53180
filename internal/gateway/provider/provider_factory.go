package provider

import (
	"net/http"
	"time"

	"council/internal/config"
	"council/internal/logger"
)

// NewHTTPClient returns the pooled client shared by every model provider.
func NewHTTPClient() *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = 64
	tr.MaxIdleConnsPerHost = 16
	tr.IdleConnTimeout = 90 * time.Second
	return &http.Client{Transport: tr}
}

// BuildProvidersFromConfig creates one provider per enabled model entry.
func BuildProvidersFromConfig(models []config.ResolvedModel, maxRetries int, httpc *http.Client) []ModelProvider {
	out := make([]ModelProvider, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			logger.Debugf("model %s disabled, skipping", m.ID)
			continue
		}
		client := &OpenAIChatClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			MaxRetries:   maxRetries,
			ExtraHeaders: m.Headers,
			HTTPClient:   httpc,
		}
		out = append(out, NewOpenAIModelProvider(m.ID, true, client))
	}
	return out
}
