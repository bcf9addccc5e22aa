package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps how much documentation is read from a single
// upstream response.
const maxResponseBytes = 4 << 20 // 4 MiB

// HTTPConfig configures the HTTP documentation source.
type HTTPConfig struct {
	// BaseURL is the upstream endpoint, e.g. "https://docs.example.com".
	BaseURL string

	// Credentials authenticates requests. Anonymous when empty.
	Credentials Credentials

	// Timeout bounds each request.
	// Default: 30s
	Timeout time.Duration

	// HTTPClient is the HTTP client to use for requests.
	// If nil, a default client with the configured timeout is used.
	HTTPClient *http.Client
}

// HTTPSource fetches documentation over HTTP.
//
// Documentation for a library lives at {base}/v1/docs/{library}, with an
// optional ?topic= query parameter. Upstream status codes map onto the
// package error taxonomy: 404 is not-found, 429 is rate-limited, 401 and
// 403 are auth failures, and everything else unexpected is a network
// error.
type HTTPSource struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPSource creates a new HTTP documentation source.
func NewHTTPSource(config HTTPConfig) (*HTTPSource, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("source: base URL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("source: invalid base URL: %w", err)
	}

	// Apply defaults
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &HTTPSource{config: config, client: client}, nil
}

// Fetch retrieves documentation for library and topic.
func (s *HTTPSource) Fetch(ctx context.Context, library, topic string) (*Document, error) {
	if err := s.config.Credentials.Check(time.Now()); err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/v1/docs/" + url.PathEscape(library)
	if topic != "" {
		endpoint += "?topic=" + url.QueryEscape(topic)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "text/plain")
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, library, topic); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	return &Document{
		Library:     library,
		Topic:       topic,
		Content:     string(body),
		RetrievedAt: time.Now().UTC(),
	}, nil
}

func (s *HTTPSource) authorize(req *http.Request) {
	creds := s.config.Credentials
	if creds.Empty() {
		return
	}
	if creds.Bearer() {
		req.Header.Set("Authorization", "Bearer "+creds.Value())
		return
	}
	req.Header.Set("X-API-Key", creds.Value())
}

// classifyStatus maps an upstream status code onto the error taxonomy.
// A nil return means the response carries documentation.
func classifyStatus(status int, library, topic string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, describe(library, topic))
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: fetching %s", ErrRateLimited, describe(library, topic))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: upstream returned %d", ErrAuth, status)
	default:
		return fmt.Errorf("%w: upstream returned %d for %s", ErrNetwork, status, describe(library, topic))
	}
}

func describe(library, topic string) string {
	if topic == "" {
		return library
	}
	return library + "/" + topic
}

// Ensure HTTPSource implements Source
var _ Source = (*HTTPSource)(nil)
