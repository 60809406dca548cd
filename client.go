package subconscious

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const defaultBaseURL = "https://api.subconscious.dev/v1"

// Client talks to the Subconscious API. Construct one with New; a zero Client
// is not usable. Client is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, e.g. for testing against a local
// server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New creates a Client. An empty apiKey falls back to the SUBCONSCIOUS_API_KEY
// environment variable.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("SUBCONSCIOUS_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("subconscious: API key is required (set SUBCONSCIOUS_API_KEY or pass it to New)")
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run creates a run. With Options.AwaitCompletion set the call polls until
// the run reaches a terminal state and the returned Run carries the result;
// otherwise it returns as soon as the run is accepted.
func (c *Client) Run(ctx context.Context, params RunParams) (*Run, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("subconscious: invalid run params: %w", err)
	}

	var run Run
	if err := c.do(ctx, http.MethodPost, "/runs", params, &run); err != nil {
		return nil, err
	}
	if params.Options != nil && params.Options.AwaitCompletion && !run.Status.Terminal() {
		return c.Wait(ctx, run.RunID, nil)
	}
	return &run, nil
}

// Get fetches the current state of a run.
func (c *Client) Get(ctx context.Context, runID string) (*Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("subconscious: run ID is required")
	}
	var run Run
	if err := c.do(ctx, http.MethodGet, "/runs/"+runID, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Cancel requests cancellation of a run. Cancelling a terminal run is a
// no-op on the server side.
func (c *Client) Cancel(ctx context.Context, runID string) (*Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("subconscious: run ID is required")
	}
	var run Run
	if err := c.do(ctx, http.MethodPost, "/runs/"+runID+"/cancel", nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Wait polls a run until it reaches a terminal state. A nil opts uses the
// defaults. Returns ErrMaxAttemptsExceeded when the attempt bound is hit
// first, and the context error if ctx is done while waiting.
func (c *Client) Wait(ctx context.Context, runID string, opts *PollOptions) (*Run, error) {
	interval := time.Second
	maxAttempts := 0
	if opts != nil {
		if opts.IntervalMS > 0 {
			interval = time.Duration(opts.IntervalMS) * time.Millisecond
		}
		maxAttempts = opts.MaxAttempts
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; ; attempt++ {
		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, ErrMaxAttemptsExceeded
		}

		run, err := c.Get(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// do sends one JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := marshalBody(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("subconscious: building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subconscious: sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("subconscious: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFrom(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("subconscious: decoding response: %w", err)
		}
	}
	return nil
}

func marshalBody(body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("subconscious: encoding request: %w", err)
	}
	return raw, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
}

// apiErrorFrom decodes an error payload, tolerating both flat and wrapped
// error bodies as well as non-JSON ones.
func apiErrorFrom(status int, data []byte) error {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}

	var envelope struct {
		Error *struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Details = envelope.Error.Details
			if envelope.Error.Message != "" {
				apiErr.Message = envelope.Error.Message
			}
		} else {
			apiErr.Code = envelope.Code
			apiErr.Details = envelope.Details
			if envelope.Message != "" {
				apiErr.Message = envelope.Message
			}
		}
	} else if len(data) > 0 {
		apiErr.Message = string(data)
	}

	if apiErr.Code == "" {
		apiErr.Code = codeForStatus(status)
	}
	return apiErr
}
