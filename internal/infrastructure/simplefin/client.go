package simplefin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"finsync/internal/domain/simplefin"
)

const (
	defaultTimeout = 60 * time.Second
	// maxBodySize bounds a single accounts payload.
	maxBodySize = 64 << 20
)

// Client talks to a SimpleFIN bridge
type Client struct {
	httpClient *http.Client
}

// Ensure Client implements simplefin.RemoteClient
var _ simplefin.RemoteClient = (*Client)(nil)

// NewClient creates a new SimpleFIN client. A zero timeout uses the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("simplefin request failed with status %d: %s", e.StatusCode, e.Body)
}

// Fetch requests the accounts endpoint for [start, end] with basic auth.
func (c *Client) Fetch(ctx context.Context, creds simplefin.Credentials, start, end time.Time) (*simplefin.FetchResult, error) {
	password, err := creds.PlainPassword()
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(creds.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("start-date", strconv.FormatInt(start.Unix(), 10))
	q.Set("end-date", strconv.FormatInt(end.Unix(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(creds.Username, password)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp simplefin.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &simplefin.FetchResult{Response: &resp, Raw: body}, nil
}

// Claim POSTs to a claim URL and returns the access URL in the body.
func (c *Client) Claim(ctx context.Context, claimURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Length", "0")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	accessURL := strings.TrimSpace(string(body))
	if accessURL == "" {
		return "", fmt.Errorf("claim returned an empty access url")
	}
	return accessURL, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	return body, nil
}
