// Package lanraragi is a typed client for the LANraragi archive server API.
package lanraragi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lanreader/lanreader/internal/ratelimit"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "lanreader/1.0"
	defaultBurst     = 4

	acceptJSON = "application/json"
	// The server labels page and thumbnail bodies as application/x-download.
	acceptBinary = "image/*, application/x-download, application/octet-stream"

	classAPI  = "api"
	classPage = "page"

	maxErrorBody = 512
)

// Options configures a Client.
type Options struct {
	ServerURL string
	APIKey    string
	Timeout   time.Duration
	APIRPS    float64 // 0 = unlimited
	PageRPS   float64 // 0 = unlimited

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Client talks to a LANraragi server. It is safe for concurrent use and
// never retries; failures surface as *Error.
type Client struct {
	http     *http.Client
	limiters map[string]*ratelimit.KeyedRateLimiter
	logger   *slog.Logger

	mu      sync.RWMutex
	baseURL *url.URL
	token   string
}

// New creates a client. An empty ServerURL yields a client whose requests
// fail with ErrNotConfigured until SetCredentials is called.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		limiters: map[string]*ratelimit.KeyedRateLimiter{
			classAPI:  ratelimit.New(opts.APIRPS, defaultBurst),
			classPage: ratelimit.New(opts.PageRPS, defaultBurst),
		},
		logger: logger,
	}
	c.http = &http.Client{
		Timeout:   timeout,
		Transport: &bearerTransport{base: base, token: c.currentToken},
	}

	if err := c.SetCredentials(opts.ServerURL, opts.APIKey); err != nil {
		return nil, err
	}
	return c, nil
}

// SetCredentials swaps the server URL and API key. In-flight requests keep
// the old values; every request issued afterwards uses the new ones.
func (c *Client) SetCredentials(serverURL, apiKey string) error {
	base, err := parseBaseURL(serverURL)
	if err != nil {
		return err
	}

	var token string
	if apiKey != "" {
		token = base64.StdEncoding.EncodeToString([]byte(apiKey))
	}

	c.mu.Lock()
	c.baseURL = base
	c.token = token
	c.mu.Unlock()
	return nil
}

// BaseURL returns the current server base URL, or "" when unconfigured.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) currentBase() *url.URL {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// bearerTransport attaches the current API token to every request.
type bearerTransport struct {
	base  http.RoundTripper
	token func() string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.token()
	if token == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}

// request performs a rate-limited call and returns the response on 2xx.
// The caller must close the body.
func (c *Client) request(ctx context.Context, op, class, method string, rel *url.URL, accept string) (*http.Response, error) {
	base := c.currentBase()
	if base == nil {
		return nil, wrapError(op, 0, ErrNotConfigured)
	}

	if err := c.limiters[class].Wait(ctx, base.Host); err != nil {
		return nil, wrapError(op, 0, fmt.Errorf("%w: rate limit wait: %w", ErrServer, err))
	}

	reqURL := base.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, wrapError(op, 0, fmt.Errorf("%w: create request: %w", ErrServer, err))
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", defaultUserAgent)

	c.logger.Debug("lanraragi request",
		"op", op,
		"method", method,
		"path", rel.Path,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(op, 0, fmt.Errorf("%w: %w", ErrServer, err))
	}

	if err := checkStatus(resp); err != nil {
		_ = resp.Body.Close()
		return nil, wrapError(op, resp.StatusCode, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := errorMessage(body); msg != "" {
			return fmt.Errorf("%w: status %d: %s", ErrServer, resp.StatusCode, msg)
		}
		return fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	}
}

// errorMessage extracts {"error": "..."} when present, else the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) doJSON(ctx context.Context, op, method string, rel *url.URL, dest any) error {
	resp, err := c.request(ctx, op, classAPI, method, rel, acceptJSON)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return wrapError(op, resp.StatusCode, fmt.Errorf("%w: %w", ErrDecode, err))
	}
	return nil
}

// doOperation calls a mutating endpoint and checks its success flag.
func (c *Client) doOperation(ctx context.Context, op, method string, rel *url.URL) error {
	var payload operationResponse
	if err := c.doJSON(ctx, op, method, rel, &payload); err != nil {
		return err
	}
	if !payload.Success {
		msg := payload.Error
		if msg == "" {
			msg = "operation reported failure"
		}
		return wrapError(op, http.StatusOK, fmt.Errorf("%w: %s", ErrServer, msg))
	}
	return nil
}

// download fetches a binary body, reporting progress in [0,1] when the
// server sends a Content-Length.
func (c *Client) download(ctx context.Context, op, class string, rel *url.URL, progress func(float64)) ([]byte, error) {
	resp, err := c.request(ctx, op, class, http.MethodGet, rel, acceptBinary)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body io.Reader = resp.Body
	if progress != nil && resp.ContentLength > 0 {
		body = &progressReader{r: resp.Body, total: resp.ContentLength, report: progress}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, wrapError(op, resp.StatusCode, fmt.Errorf("%w: read body: %w", ErrServer, err))
	}
	if len(data) == 0 {
		return nil, wrapError(op, resp.StatusCode, fmt.Errorf("%w: empty body", ErrDecode))
	}
	return data, nil
}

type progressReader struct {
	r      io.Reader
	read   int64
	total  int64
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(min(float64(p.read)/float64(p.total), 1))
	}
	return n, err
}

// parseBaseURL normalizes serverURL so that relative API paths resolve
// beneath it, including when the server is mounted under a sub path.
func parseBaseURL(serverURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		return nil, nil
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", serverURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse server url %q: missing host", serverURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
