package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// httpHealthCheck checks a backend by issuing a GET against a cheap listing
// endpoint. A 2xx response means reachable and authorised.
type httpHealthCheck struct {
	// url is the check endpoint.
	url string
	// headers carries auth for the check.
	headers map[string]string
	// client is the HTTP client used for the check.
	client *http.Client
}

// HealthCheck issues the check request.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health check request: %w", err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider: health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck returns a token-free readiness check for the selected backend,
// or nil when the backend has no listing endpoint to check.
func (c *Config) HealthCheck() HealthCheckConfig {
	client := &http.Client{Timeout: 5 * time.Second}
	switch c.Backend {
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(c.Ollama.Host, "/") + "/api/tags",
			client: client,
		}
	case BackendOpenAI:
		base := c.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &httpHealthCheck{
			url:     strings.TrimRight(base, "/") + "/models",
			headers: map[string]string{"Authorization": "Bearer " + c.OpenAI.APIKey},
			client:  client,
		}
	case BackendAzure:
		return &httpHealthCheck{
			url: strings.TrimRight(c.AzureOpenAI.Endpoint, "/") + "/openai/models?api-version=" +
				url.QueryEscape(c.AzureOpenAI.APIVersion),
			headers: map[string]string{"api-key": c.AzureOpenAI.APIKey},
			client:  client,
		}
	case BackendGemini:
		return &httpHealthCheck{
			url:     "https://generativelanguage.googleapis.com/v1beta/models?pageSize=1",
			headers: map[string]string{"x-goog-api-key": c.Gemini.APIKey},
			client:  client,
		}
	default:
		return nil
	}
}
