// Package client fetches OData result pages with bearer authentication,
// following continuation links and renewing the credential once per request
// on an authorization failure.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/odata-export/pkg/auth"
	"github.com/Sternrassler/odata-export/pkg/cache"
	"github.com/Sternrassler/odata-export/pkg/dataset"
	"github.com/Sternrassler/odata-export/pkg/planner"
	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for fetch operations.
var (
	odataRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_requests_total",
		Help: "Total resource requests by endpoint and status",
	}, []string{"endpoint", "status"})

	odataRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odata_request_duration_seconds",
		Help:    "Resource request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"endpoint"})

	odataErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})

	odataPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_pages_total",
		Help: "Total result pages read by endpoint",
	}, []string{"endpoint"})
)

// Client executes planned requests against the resource server.
type Client struct {
	httpClient *http.Client
	tokens     auth.TokenProvider
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger

	mu    sync.Mutex
	token string
}

// Config holds the client configuration.
type Config struct {
	// Tokens issues bearer credentials (REQUIRED)
	Tokens auth.TokenProvider

	// Timeout applies to every page request
	Timeout time.Duration

	// PageSizeHint is sent as the Prefer header (e.g., "odata.maxpagesize=100000")
	PageSizeHint string

	// Connection is sent as the Connection header (e.g., "close")
	Connection string

	// Cache is an optional page cache
	Cache *cache.Manager
}

// DefaultConfig returns the default configuration for tokens.
func DefaultConfig(tokens auth.TokenProvider) Config {
	return Config{
		Tokens:       tokens,
		Timeout:      120 * time.Second,
		PageSizeHint: "odata.maxpagesize=100000",
		Connection:   "close",
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tokens: cfg.Tokens,
		cache:  cfg.Cache,
		config: cfg,
		logger: log.With().Str("component", "fetcher").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Authenticate acquires the initial credential.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.refreshToken(ctx)
}

func (c *Client) refreshToken(ctx context.Context) error {
	_, err := c.acquire(ctx)
	return err
}

func (c *Client) acquire(ctx context.Context) (string, error) {
	token, err := c.tokens.Acquire(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// currentToken returns the held credential, acquiring one on first use.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.acquire(ctx)
}

// page is one decoded result page.
type page struct {
	Value    []dataset.Record `json:"value"`
	NextLink string           `json:"@odata.nextLink"`
}

// FetchAll runs every request in order and concatenates their records.
func (c *Client) FetchAll(ctx context.Context, reqs iter.Seq[planner.Request]) ([]dataset.Record, error) {
	var all []dataset.Record
	for req := range reqs {
		records, err := c.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// Fetch retrieves every page of req, following @odata.nextLink until the
// server stops sending one.
func (c *Client) Fetch(ctx context.Context, req planner.Request) ([]dataset.Record, error) {
	var (
		records []dataset.Record
		retry   authRetry
		pages   int
	)

	url := req.URL
	for url != "" {
		pageURL := url
		p, err := retry.do(ctx, c, req.Endpoint, pageURL, func() (*page, error) {
			return c.getPage(ctx, req.Endpoint, pageURL)
		})
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				err = &FetchError{
					Endpoint:   req.Endpoint,
					URL:        pageURL,
					StatusCode: http.StatusUnauthorized,
					ErrorClass: ErrorClassAuth,
					Err:        err,
				}
			}
			c.logFailure(req, pageURL, pages, err)
			return nil, err
		}

		records = append(records, p.Value...)
		pages++
		odataPagesTotal.WithLabelValues(req.Endpoint).Inc()
		url = p.NextLink
	}

	c.logger.Debug().
		Str("endpoint", req.Endpoint).
		Int("chunk", req.Chunk).
		Int("pages", pages).
		Int("rows", len(records)).
		Msg("Request complete")

	return records, nil
}

func (c *Client) logFailure(req planner.Request, url string, pages int, err error) {
	ev := c.logger.Error().
		Err(err).
		Str("endpoint", req.Endpoint).
		Str("url", url).
		Int("chunk", req.Chunk).
		Int("page", pages)
	var fe *FetchError
	if errors.As(err, &fe) {
		ev = ev.Int("status", fe.StatusCode).Str("error_class", string(fe.ErrorClass))
	}
	ev.Msg("Fetch failed")
}

// getPage returns one page, from cache when possible. A 401 yields
// ErrUnauthorized; any other non-200 status yields a FetchError.
func (c *Client) getPage(ctx context.Context, endpoint, url string) (*page, error) {
	var key cache.PageKey
	if c.cache != nil {
		key = cache.KeyFromURL(endpoint, url)
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("url", url).
				Int("status", entry.StatusCode).
				Str("etag", entry.ETag).
				Time("cached_at", entry.CachedAt).
				Msg("Page cache hit")
			return decodePage(endpoint, url, entry.Data)
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, URL: url, ErrorClass: ErrorClassClient, Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if c.config.PageSizeHint != "" {
		httpReq.Header.Set("Prefer", c.config.PageSizeHint)
	}
	if c.config.Connection == "close" {
		httpReq.Close = true
	} else if c.config.Connection != "" {
		httpReq.Header.Set("Connection", c.config.Connection)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	odataRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	if err != nil {
		odataErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		odataRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &FetchError{Endpoint: endpoint, URL: url, ErrorClass: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	odataRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		odataErrorsTotal.WithLabelValues(string(class)).Inc()
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Endpoint:   endpoint,
			URL:        url,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Err:        fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(body)),
		}
	}

	var body []byte
	if c.cache != nil {
		entry, err := cache.ResponseToEntry(resp, c.cache.TTL())
		if err != nil {
			return nil, &FetchError{Endpoint: endpoint, URL: url, StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Err: err}
		}
		body = entry.Data
		p, err := decodePage(endpoint, url, body)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache page")
		}
		return p, nil
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		odataErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &FetchError{Endpoint: endpoint, URL: url, StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Err: err}
	}
	return decodePage(endpoint, url, body)
}

// decodePage parses a page body, keeping numeric literals exact.
func decodePage(endpoint, url string, body []byte) (*page, error) {
	dec := gojson.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var p page
	if err := dec.Decode(&p); err != nil {
		odataErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &FetchError{
			Endpoint:   endpoint,
			URL:        url,
			StatusCode: http.StatusOK,
			ErrorClass: ErrorClassDecode,
			Err:        fmt.Errorf("%w: %v", ErrMalformedPage, err),
		}
	}
	return &p, nil
}
