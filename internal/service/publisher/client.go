package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eddyhq/eddy/pkg/util"
)

const maxErrorBody = 500

// postJSON sends payload to url with a bearer token and decodes a 2xx
// response into out. Non-2xx responses are returned as the raw body so
// callers can surface the platform's error text.
func postJSON(ctx context.Context, client *http.Client, url, token string, payload, out interface{}) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, util.Truncate(string(raw), maxErrorBody), nil
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, "", fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, "", nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// failure builds a non-success result; a nil error from Publish with
// Success=false is how platform rejections travel back to the worker.
func failure(code, message string) *Result {
	return &Result{
		Success:   false,
		Error:     message,
		ErrorCode: code,
	}
}
