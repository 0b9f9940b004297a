// Package remote talks to the replica store over HTTP. The store is a
// plain key/value endpoint: GET /replica/{id} returns the stored content
// and its server-side update time, POST /replica creates a new replica,
// PATCH /replica/{id} overwrites one in place. Transport failures are
// surfaced as typed errors so callers can distinguish "the remote has no
// artifact" from "the remote could not be reached".
package remote

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
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotFound means the remote store has no replica under the given
	// ID. This is a valid classification input, not a transport failure.
	ErrNotFound = errors.New("replica not found")

	// ErrUnauthorized means the token was missing, invalid, or expired.
	ErrUnauthorized = errors.New("remote store rejected credentials")
)

// TransportError wraps any failure to complete a remote operation:
// network errors, timeouts, auth rejections, rate limits, and unexpected
// status codes. A put that fails with a TransportError leaves the remote
// replica at its prior state.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err (or any error in its chain) is a
// TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// httpClientTimeout bounds every remote call when no custom client is
	// provided. Timeouts surface as TransportError like any other
	// transport failure; the engine performs no retries.
	httpClientTimeout = 30 * time.Second

	// maxResponseBytes caps response body reads so a misbehaving server
	// cannot consume unbounded memory. Guide files are small text.
	maxResponseBytes = 4 * 1024 * 1024
)

// Replica is the remote copy of the artifact as returned by a fetch.
type Replica struct {
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PutResult identifies the replica after a successful create or update.
// After a create, the caller persists the new ID.
type PutResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client is the remote store adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host, so the bearer token never leaks to
// a third-party domain.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates a remote store client. If httpClient is nil, a client
// with a 30-second timeout and same-host redirect policy is created.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:       httpClientTimeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Fetch retrieves the replica under id. Returns ErrNotFound when the
// store has no entry, ErrUnauthorized (wrapped in TransportError) on auth
// failure, and TransportError on any other failure. A read is never
// partial: either the full replica is returned or an error.
func (c *Client) Fetch(ctx context.Context, id string) (*Replica, error) {
	if id == "" {
		return nil, fmt.Errorf("fetch: empty replica id")
	}

	if c.token == "" {
		return nil, &TransportError{Err: fmt.Errorf("fetch %s: %w: no token configured", id, ErrUnauthorized)}
	}

	body, err := c.do(ctx, http.MethodGet, "/replica/"+id, nil)
	if err != nil {
		return nil, err
	}

	var rep Replica
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("decoding replica %s: %w", id, err)
	}

	return &rep, nil
}

// Create stores content under a fresh remote identity and returns it.
func (c *Client) Create(ctx context.Context, content string) (*PutResult, error) {
	return c.put(ctx, http.MethodPost, "/replica", content)
}

// Update overwrites the replica under id. A failed update leaves the
// remote replica at its prior state; there are no partial writes.
func (c *Client) Update(ctx context.Context, id, content string) (*PutResult, error) {
	if id == "" {
		return nil, fmt.Errorf("update: empty replica id")
	}

	return c.put(ctx, http.MethodPatch, "/replica/"+id, content)
}

func (c *Client) put(ctx context.Context, method, endpoint, content string) (*PutResult, error) {
	if c.token == "" {
		return nil, &TransportError{Err: fmt.Errorf("%s %s: %w: no token configured", method, endpoint, ErrUnauthorized)}
	}

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("marshalling request body: %w", err)
	}

	body, err := c.do(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var res PutResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}

	if res.ID == "" {
		return nil, fmt.Errorf("store returned no replica id from %s", endpoint)
	}

	return &res, nil
}

// do performs one HTTP round trip and returns the response body. Every
// non-2xx outcome maps to a typed error.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors, DNS failures, and timeouts all count as
		// transport failures, never as "remote absent".
		return nil, &TransportError{Err: fmt.Errorf("sending %s %s: %w", method, endpoint, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response from %s: %w", endpoint, err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, ErrNotFound)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &TransportError{Err: fmt.Errorf("%s %s (%d): %w: %s",
			method, endpoint, resp.StatusCode, ErrUnauthorized, errorMessage(body))}

	default:
		return nil, &TransportError{Err: fmt.Errorf("%s %s returned status %d: %s",
			method, endpoint, resp.StatusCode, errorMessage(body))}
	}
}

// errorMessage extracts a human-readable message from an error response
// body. Stores vary in their error envelope, so probe the common field
// names before falling back to the sanitized raw body.
func errorMessage(body []byte) string {
	for _, field := range []string{"error", "message", "detail"} {
		if v := gjson.GetBytes(body, field); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}

	return sanitizeResponseBody(body)
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}
