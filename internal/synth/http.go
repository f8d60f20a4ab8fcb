package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/tenure/internal/domain/model"
)

// ErrRejected is returned when the service refuses a submission.
var ErrRejected = errors.New("submission rejected")

// Client talks to a tenure server.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// Submit posts one analysis and returns the job it created.
func (c *Client) Submit(ctx context.Context, customers []Customer, strata, key string) (model.Job, error) {
	body, err := json.Marshal(newPayload(customers, strata))
	if err != nil {
		return model.Job{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	header := http.Header{"Content-Type": {"application/json"}}
	if key != "" {
		header.Set("Idempotency-Key", key)
	}
	resp, err := c.do(ctx, http.MethodPost, "/analyses", bytes.NewReader(body), header)
	if err != nil {
		return model.Job{}, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return model.Job{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var job model.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return model.Job{}, fmt.Errorf("failed to decode submission response: %w", err)
	}
	return job, nil
}

// Job fetches GET /analyses/{id}.
func (c *Client) Job(ctx context.Context, id string) (model.Job, error) {
	resp, err := c.do(ctx, http.MethodGet, "/analyses/"+id, nil, nil)
	if err != nil {
		return model.Job{}, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return model.Job{}, fmt.Errorf("get %s failed with status: %d", id, resp.StatusCode)
	}
	var job model.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return model.Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	return job, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return c.client.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
