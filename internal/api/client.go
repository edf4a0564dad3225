// Package api is a client for the execution log webhook API.
package api

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

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/fakeyudi/chatwatch/internal/notify"
)

const (
	executionsPath = "/webhook/executions"
	summaryPath    = "/webhook/executions/summary"

	// maxBodyBytes caps how much of a response body is decoded.
	maxBodyBytes = 16 << 20

	// DefaultSessionPageLimit is the page size used when walking a chat session.
	DefaultSessionPageLimit = 50
	// MaxSessionPages bounds FetchSession so a misbehaving cursor cannot loop.
	MaxSessionPages = 100
)

// Client queries the execution log API.
type Client struct {
	baseURL    string
	authKey    string
	httpClient *http.Client
	limiter    *rate.Limiter
	notifier   notify.Notifier
	log        logr.Logger
}

// ClientConfig holds configuration for the API client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:5678".
	BaseURL string

	// AuthKey is sent verbatim in the Authorization header.
	AuthKey string

	// Timeout is the HTTP request timeout (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests. Zero disables the limit.
	RequestsPerSecond float64

	// Notifier receives a message for every failed request.
	Notifier notify.Notifier

	Logger logr.Logger

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewClient creates a new API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authKey:    cfg.AuthKey,
		httpClient: httpClient,
		limiter:    limiter,
		notifier:   cfg.Notifier,
		log:        cfg.Logger.WithName("api"),
	}
}

// FetchExecutions returns one page of executions. Only filters with a
// non-empty value are sent.
func (c *Client) FetchExecutions(ctx context.Context, q ListQuery) (*ListResult, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	for k, v := range q.Filters {
		if v != "" {
			params.Set(k, v)
		}
	}

	var result ListResult
	if err := c.get(ctx, executionsPath, params, &result, "Failed to fetch executions"); err != nil {
		return nil, err
	}
	if result.Page == 0 {
		result.Page = q.Page
	}
	if result.Limit == 0 {
		result.Limit = q.Limit
	}
	return &result, nil
}

// FetchSummary returns the aggregate counters.
func (c *Client) FetchSummary(ctx context.Context) (*SummaryData, error) {
	var summary SummaryData
	if err := c.get(ctx, summaryPath, nil, &summary, "Failed to fetch summary"); err != nil {
		return nil, err
	}
	return &summary, nil
}

// FetchSession returns every execution of one chat session in API order,
// following next cursors until they run out.
func (c *Client) FetchSession(ctx context.Context, sessionID string) ([]ExecutionRecord, error) {
	var records []ExecutionRecord
	for page := 1; page <= MaxSessionPages; page++ {
		res, err := c.FetchExecutions(ctx, ListQuery{
			Page:    page,
			Limit:   DefaultSessionPageLimit,
			Filters: map[string]string{FilterSessionID: sessionID},
		})
		if err != nil {
			return nil, err
		}
		records = append(records, res.Results...)
		if res.Next == nil || *res.Next == "" || len(res.Results) == 0 {
			return records, nil
		}
	}
	c.log.Info("session transcript truncated", "sessionID", sessionID, "pages", MaxSessionPages)
	return records, nil
}

// get performs a GET against path and decodes the JSON body into out. On any
// failure it notifies with the error message and returns an *Error.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any, what string) error {
	err := c.do(ctx, path, params, out)
	if err != nil {
		c.log.Error(err, what, "path", path)
		c.notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Error",
			Description: err.Error(),
		})
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return newError(0, "invalid base URL", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return newError(0, "request cancelled", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return newError(0, "failed to create request", err)
	}
	req.Header.Set("Authorization", c.authKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError(0, "request failed", err)
	}
	defer resp.Body.Close()

	c.log.V(1).Info("response", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return newError(resp.StatusCode, fmt.Sprintf("API error: %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return newError(resp.StatusCode, "failed to decode response", err)
	}
	return nil
}
