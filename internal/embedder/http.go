// Package embedder provides implementations of the rag.Embedder interface for
// converting document chunks and questions into dense vector embeddings.
// OpenAI, Azure OpenAI and Ollama are reached over plain HTTP; Gemini goes
// through the genai SDK. All provider failures wrap apperr.ErrProvider.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/54b3r/promptdoc-go/internal/apperr"
)

// maxErrorBody caps how much of a non-JSON error body is echoed back.
const maxErrorBody = 512

// postJSON sends body as JSON to url and decodes the response into out.
// errMsg extracts a provider error message from the decoded response.
// Non-2xx statuses and transport failures wrap apperr.ErrProvider.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any, errMsg func() string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", apperr.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", apperr.ErrProvider, err)
	}

	decodeErr := json.Unmarshal(raw, out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil {
			msg = errMsg()
		}
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
			if len(raw) > 0 && decodeErr != nil {
				msg += ": " + string(raw[:min(len(raw), maxErrorBody)])
			}
		}
		return fmt.Errorf("%w: %s", apperr.ErrProvider, msg)
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: decode response: %v", apperr.ErrProvider, decodeErr)
	}
	return nil
}
