package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every request made by HTTPClient.
const DefaultTimeout = 30 * time.Second

// ErrInvalidToken is matched by APIErrors reporting an unknown, expired
// or malformed token.
var ErrInvalidToken = errors.New("invalid token")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	EID     string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.EID != "" {
		return fmt.Sprintf("%s (status %d, eid %s)", msg, e.Status, e.EID)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.Status)
}

// Is lets errors.Is(err, ErrInvalidToken) match.
func (e *APIError) Is(target error) bool {
	return target == ErrInvalidToken && e.Message == ErrInvalidToken.Error()
}

// CreateResult is the body of a successful /create.
type CreateResult struct {
	Token string `json:"token"`
}

// UpdateResult is the body of a successful /update_expiration.
type UpdateResult struct {
	Token      string `json:"token"`
	Expiration int64  `json:"expiration"`
}

// HTTPClient talks to a tokstash server over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(server string, timeout time.Duration) *HTTPClient {
	// Ensure baseURL has http:// prefix
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithTLS makes the client use cfg for https connections. A nil cfg
// keeps the default transport.
func (c *HTTPClient) WithTLS(cfg *tls.Config) *HTTPClient {
	if cfg == nil {
		return c
	}
	c.client.Transport = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: cfg,
	}
	return c
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Create stores payload under a new token valid for ttlSeconds.
func (c *HTTPClient) Create(ctx context.Context, payload map[string]any, ttlSeconds int64) (*CreateResult, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	var out CreateResult
	if err := c.do(ctx, http.MethodPost, "/create", ttlQuery(ttlSeconds), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate returns the stored body of an active token.
func (c *HTTPClient) Validate(ctx context.Context, tok string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/validate/"+url.PathEscape(tok), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Expire archives a token. Unknown tokens are not an error.
func (c *HTTPClient) Expire(ctx context.Context, tok string) error {
	return c.do(ctx, http.MethodGet, "/expire/"+url.PathEscape(tok), nil, nil, nil)
}

// Update extends a token to expire ttlSeconds from now.
func (c *HTTPClient) Update(ctx context.Context, tok string, ttlSeconds int64) (*UpdateResult, error) {
	var out UpdateResult
	path := "/update_expiration/" + url.PathEscape(tok)
	if err := c.do(ctx, http.MethodPost, path, ttlQuery(ttlSeconds), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetExpired returns the body of an archived token.
func (c *HTTPClient) GetExpired(ctx context.Context, tok string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/get_expired/"+url.PathEscape(tok), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Diagnostic returns the server's process information.
func (c *HTTPClient) Diagnostic(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/diagnostic", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func ttlQuery(ttlSeconds int64) url.Values {
	return url.Values{"expiration_seconds": {strconv.FormatInt(ttlSeconds, 10)}}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "tokstash-cli")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return parseResponse(resp, out)
}

// parseResponse decodes a JSON response body into target, or returns an
// *APIError for non-2xx statuses.
func parseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errResp struct {
			Message string `json:"message"`
			EID     string `json:"eid"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			apiErr.Message = errResp.Message
			apiErr.EID = errResp.EID
		}
		return apiErr
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
