package client

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var odataTokenRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "odata_token_refreshes_total",
	Help: "Total number of credential refreshes after an authorization failure",
})

// authRetry bounds credential renewal to one refresh per request
// descriptor. A second authorization failure is fatal, which keeps a
// misconfigured credential from looping forever.
type authRetry struct {
	used bool
}

// do runs fn, refreshing the credential and running fn once more if it
// fails with ErrUnauthorized and the budget is not spent.
func (r *authRetry) do(ctx context.Context, c *Client, endpoint, url string, fn func() (*page, error)) (*page, error) {
	p, err := fn()
	if !errors.Is(err, ErrUnauthorized) || r.used {
		return p, err
	}

	r.used = true
	odataTokenRefreshesTotal.Inc()
	c.logger.Warn().
		Str("endpoint", endpoint).
		Str("url", url).
		Msg("Credential rejected, refreshing token")

	if err := c.refreshToken(ctx); err != nil {
		return nil, err
	}
	return fn()
}
