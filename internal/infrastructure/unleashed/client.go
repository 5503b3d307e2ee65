package unleashed

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

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
)

// maxBackoff caps the doubling delay between throttled requests
const maxBackoff = 60 * time.Second

// Client is the signed, paginated, rate-limit-aware read client for the
// source system. It is stateless across calls apart from the injected
// transport.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSleepFunc replaces the backoff sleeper, for tests
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = fn
	}
}

// NewClient creates a signed API client
func NewClient(cfg Config, logger *zap.Logger, opts ...ClientOption) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("unleashed"),
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// response is the outcome of one signed request
type response struct {
	status int
	body   []byte
	header http.Header
}

// doRequest issues a single signed GET. page <= 0 omits the page header.
func (c *Client) doRequest(ctx context.Context, path string, page int, query url.Values) (*response, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-auth-id", c.cfg.APIID)
	req.Header.Set("api-auth-signature", c.cfg.Sign(BuildCanonical(path, query)))
	if page > 0 {
		req.Header.Set("page", strconv.Itoa(page))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &response{status: resp.StatusCode, body: body, header: resp.Header}, nil
}

// fetchWithRetry issues a signed GET, retrying in place on transport errors,
// 429 and 5xx with an exponentially doubling backoff. The server's
// retry-after header takes precedence over the computed delay. Fails with
// ErrUpstreamUnavailable once the attempt budget is exhausted.
func (c *Client) fetchWithRetry(ctx context.Context, path string, page int, query url.Values) (*response, error) {
	var lastErr error
	backoff := c.cfg.InitialBackoff

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff
			if lastResp, ok := lastErr.(*throttleError); ok && lastResp.retryAfter > 0 {
				delay = lastResp.retryAfter
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		resp, err := c.doRequest(ctx, path, page, query)
		if err != nil {
			lastErr = err
			c.logger.Warn("request failed",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		if resp.status == http.StatusTooManyRequests || resp.status >= 500 {
			lastErr = &throttleError{
				status:     resp.status,
				retryAfter: parseRetryAfter(resp.header.Get("retry-after")),
			}
			c.logger.Warn("throttled by upstream",
				zap.String("path", path),
				zap.Int("status", resp.status),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v",
		pipeline.ErrUpstreamUnavailable, path, c.cfg.MaxAttempts, lastErr)
}

// throttleError carries the status and retry-after of a throttled response
type throttleError struct {
	status     int
	retryAfter time.Duration
}

func (e *throttleError) Error() string {
	return fmt.Sprintf("transient upstream error: status %d", e.status)
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// FetchPage fetches a single page of a list endpoint
func (c *Client) FetchPage(ctx context.Context, path string, page int, query url.Values) (*Page, error) {
	resp, err := c.fetchWithRetry(ctx, path, page, query)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.status, path)
	}

	var parsed Page
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &parsed, nil
}

// FetchAllPages fetches every page of a list endpoint sequentially, starting
// at 1 and following the pagination metadata, preserving item order. When a
// response reports no rate-limit budget left, the client sleeps the doubling
// backoff before requesting the next page.
func (c *Client) FetchAllPages(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	var items []json.RawMessage
	backoff := c.cfg.InitialBackoff

	page := 1
	for {
		resp, err := c.fetchWithRetry(ctx, path, page, query)
		if err != nil {
			return nil, err
		}
		if resp.status != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d fetching %s page %d", resp.status, path, page)
		}

		var parsed Page
		if err := json.Unmarshal(resp.body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse page %d: %w", page, err)
		}
		items = append(items, parsed.Items...)

		if page >= parsed.Pagination.NumberOfPages {
			return items, nil
		}
		page++

		if resp.header.Get("x-ratelimit-remaining") == "0" {
			delay := backoff
			if ra := parseRetryAfter(resp.header.Get("retry-after")); ra > 0 {
				delay = ra
			}
			c.logger.Warn("rate-limit budget exhausted, backing off",
				zap.String("path", path),
				zap.Duration("delay", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// FetchSalesOrder fetches the full source record of one sales order
func (c *Client) FetchSalesOrder(ctx context.Context, guid string) (*SalesOrder, error) {
	resp, err := c.fetchWithRetry(ctx, "/SalesOrders/"+guid, 0, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch sales order %s: status %d", guid, resp.status)
	}

	var order SalesOrder
	if err := json.Unmarshal(resp.body, &order); err != nil {
		return nil, fmt.Errorf("failed to parse sales order %s: %w", guid, err)
	}
	return &order, nil
}

// FetchSalesOrderRaw fetches the sales order without decoding it, for staging
func (c *Client) FetchSalesOrderRaw(ctx context.Context, guid string) (json.RawMessage, error) {
	resp, err := c.fetchWithRetry(ctx, "/SalesOrders/"+guid, 0, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch sales order %s: status %d", guid, resp.status)
	}
	return resp.body, nil
}

// FetchCustomer fetches a customer as a loose document. The auto-mapping
// layer forwards the whole record with a few fields overlaid, so it is not
// decoded into a fixed shape here.
func (c *Client) FetchCustomer(ctx context.Context, guid string) (map[string]any, error) {
	resp, err := c.fetchWithRetry(ctx, "/Customers/"+guid, 0, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch customer %s: status %d", guid, resp.status)
	}

	var customer map[string]any
	if err := json.Unmarshal(resp.body, &customer); err != nil {
		return nil, fmt.Errorf("failed to parse customer %s: %w", guid, err)
	}
	return customer, nil
}

// FetchCustomerContacts fetches the contacts of a customer
func (c *Client) FetchCustomerContacts(ctx context.Context, customerGuid string) ([]json.RawMessage, error) {
	resp, err := c.fetchWithRetry(ctx, "/Customers/"+customerGuid+"/Contacts", 0, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch customer contacts: status %d", resp.status)
	}

	var parsed Page
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse customer contacts: %w", err)
	}
	return parsed.Items, nil
}

// FetchCustomerDeliveryAddresses fetches delivery addresses matching query
func (c *Client) FetchCustomerDeliveryAddresses(ctx context.Context, query url.Values) ([]json.RawMessage, error) {
	resp, err := c.fetchWithRetry(ctx, "/CustomerDeliveryAddresses", 0, query)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch customer delivery addresses: status %d", resp.status)
	}

	var parsed Page
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse customer delivery addresses: %w", err)
	}
	return parsed.Items, nil
}

// ResourceCheck is the outcome of a health probe against one resource
type ResourceCheck struct {
	OK      bool
	Status  int
	Message string
}

// FetchResource probes one collection endpoint for the health dashboard
func (c *Client) FetchResource(ctx context.Context, resource Resource) *ResourceCheck {
	if c.cfg.APIID == "" || c.cfg.APIKey == "" {
		return &ResourceCheck{
			OK:      false,
			Status:  http.StatusUnauthorized,
			Message: "credentials missing",
		}
	}

	path := "/" + strings.ToLower(string(resource))
	resp, err := c.fetchWithRetry(ctx, path, 0, nil)
	if err != nil {
		return &ResourceCheck{
			OK:      false,
			Status:  0,
			Message: err.Error(),
		}
	}
	if resp.status != http.StatusOK {
		return &ResourceCheck{
			OK:      false,
			Status:  resp.status,
			Message: fmt.Sprintf("failed to fetch %s", resource),
		}
	}

	return &ResourceCheck{
		OK:      true,
		Status:  resp.status,
		Message: fmt.Sprintf("fetched %s", resource),
	}
}
