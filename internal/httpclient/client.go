package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/swarmcrew/internal/common"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout.
// Zero leaves the deadline to the request context.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// CallbackError is returned when a callback endpoint answers with a non-2xx status
type CallbackError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// PostJSON sends v as a JSON body to url. Any non-2xx status is a *CallbackError.
func PostJSON(ctx context.Context, client *http.Client, url string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "swarmcrew/"+common.GetVersion())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &CallbackError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
