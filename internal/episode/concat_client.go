package episode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/strollcast/director/internal/concat"
)

// HTTPConcatClient submits jobs to a concatd worker over HTTP. The request
// blocks for the life of the job, so the client timeout must cover the
// worker's full deadline.
type HTTPConcatClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPConcatClient creates a client for the worker at baseURL. timeout
// should exceed the worker's job deadline.
func NewHTTPConcatClient(baseURL, token string, timeout time.Duration) *HTTPConcatClient {
	return &HTTPConcatClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Concat submits one job and waits for its outcome.
func (c *HTTPConcatClient) Concat(ctx context.Context, job concat.Request) (*concat.Response, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/concat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("concat worker request: %w", err)
	}
	defer httpResp.Body.Close()

	var resp concat.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode worker response (status %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode != http.StatusOK || !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("worker returned status %d", httpResp.StatusCode)
		}
		return nil, fmt.Errorf("concat job failed: %s", msg)
	}
	return &resp, nil
}
