// Package opencode is a client for the opencode server HTTP API.
package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/theirongolddev/ocburn/internal/model"
)

const (
	// DefaultBaseURL is where `opencode serve` listens by default.
	DefaultBaseURL = "http://127.0.0.1:4096"
	defaultTimeout = 10 * time.Second
	maxBodySize    = 32 << 20 // 32 MB
	defaultRate    = 10
)

var (
	// ErrNotFound is returned when the server answers 404.
	ErrNotFound = errors.New("opencode: not found")
	// ErrUnexpectedStatus is returned for any other non-2xx answer.
	ErrUnexpectedStatus = errors.New("opencode: unexpected status")
)

// Toast variants accepted by /tui/show-toast.
const (
	ToastInfo    = "info"
	ToastWarning = "warning"
	ToastError   = "error"
	ToastSuccess = "success"
)

// Toast is a TUI notification.
type Toast struct {
	Title    string `json:"title,omitempty"`
	Message  string `json:"message"`
	Variant  string `json:"variant"`
	Duration int    `json:"duration,omitempty"` // milliseconds
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Directory scopes every request to a project directory.
	Directory      string
	RequestsPerSec float64
	Timeout        time.Duration
	HTTPClient     *http.Client
	Log            *zap.Logger
}

// Client talks to one opencode server. It is safe for concurrent use.
type Client struct {
	baseURL   string
	directory string
	http      *http.Client
	stream    *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	log       *zap.Logger
}

// NewClient returns a client for opts.BaseURL, or DefaultBaseURL when empty.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = defaultRate
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:   base,
		directory: opts.Directory,
		http:      hc,
		stream:    &http.Client{Transport: hc.Transport},
		limiter:   rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		timeout:   timeout,
		log:       log,
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Messages returns every message of a session in server order.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]model.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/session/"+url.PathEscape(sessionID)+"/message", nil)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeMessages(body)
	if err != nil {
		return nil, fmt.Errorf("opencode: parsing messages of %s: %w", sessionID, err)
	}
	return msgs, nil
}

// Children returns the ids of the direct child sessions of sessionID.
func (c *Client) Children(ctx context.Context, sessionID string) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/session/"+url.PathEscape(sessionID)+"/children", nil)
	if err != nil {
		return nil, err
	}
	var sessions []wireSession
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("opencode: parsing children of %s: %w", sessionID, err)
	}
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if s.ID != "" {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

// CurrentProject returns the id of the project the server resolves for the
// client directory.
func (c *Client) CurrentProject(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/project/current", nil)
	if err != nil {
		return "", err
	}
	var p wireProject
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("opencode: parsing project: %w", err)
	}
	return p.ID, nil
}

// ShowToast displays t in the opencode TUI.
func (c *Client) ShowToast(ctx context.Context, t Toast) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("opencode: encoding toast: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/tui/show-toast", payload)
	return err
}

func (c *Client) endpoint(path string) string {
	u := c.baseURL + path
	if c.directory != "" {
		u += "?directory=" + url.QueryEscape(c.directory)
	}
	return u
}

// do performs a rate-limited request and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("opencode: waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("opencode: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req) //nolint:gosec // URL is built from the configured base URL
	if err != nil {
		return nil, fmt.Errorf("opencode: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("opencode request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if err := checkStatus(resp, method, path); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("opencode: reading response: %w", err)
	}
	return data, nil
}

func checkStatus(resp *http.Response, method, path string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w %d: %s %s", ErrUnexpectedStatus, resp.StatusCode, method, path)
	}
	return nil
}
