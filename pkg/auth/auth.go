// Package auth acquires bearer credentials from an OAuth2 identity provider
// using the client-credentials grant.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var tokenRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "odata_token_requests_total",
	Help: "Total token requests by result",
}, []string{"result"})

// TokenProvider returns a bearer credential. Each call contacts the identity
// provider; callers invoke it again when the resource server rejects the
// current credential.
type TokenProvider interface {
	Acquire(ctx context.Context) (string, error)
}

// AuthError reports a failed token acquisition.
type AuthError struct {
	// StatusCode is the identity provider's HTTP status, 0 if none was received.
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token acquisition failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token acquisition failed: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Config holds the client-credentials settings. Values are opaque.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string

	// Timeout bounds each token request.
	Timeout time.Duration
}

// ClientCredentials posts form-encoded client credentials to the token
// endpoint and returns the access_token of the JSON response.
type ClientCredentials struct {
	oauth      *clientcredentials.Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClientCredentials creates a token provider for cfg.
func NewClientCredentials(cfg Config) (*ClientCredentials, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	oc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if cfg.Scope != "" {
		oc.Scopes = strings.Fields(cfg.Scope)
	}

	return &ClientCredentials{
		oauth:      oc,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.With().Str("component", "token-manager").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *ClientCredentials) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Acquire requests a fresh access token.
func (c *ClientCredentials) Acquire(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauth.Token(ctx)
	if err != nil {
		authErr := &AuthError{Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			authErr.StatusCode = re.Response.StatusCode
		}
		tokenRequestsTotal.WithLabelValues("error").Inc()
		c.logger.Error().
			Err(err).
			Str("url", c.oauth.TokenURL).
			Int("status", authErr.StatusCode).
			Msg("Token request failed")
		return "", authErr
	}
	if tok.AccessToken == "" {
		tokenRequestsTotal.WithLabelValues("error").Inc()
		return "", &AuthError{Err: errors.New("response missing access_token")}
	}

	tokenRequestsTotal.WithLabelValues("ok").Inc()
	c.logger.Debug().Str("url", c.oauth.TokenURL).Msg("Token acquired")
	return tok.AccessToken, nil
}

// StaticToken is a TokenProvider that always returns the same credential.
type StaticToken string

// Acquire implements TokenProvider.
func (s StaticToken) Acquire(context.Context) (string, error) {
	if s == "" {
		return "", &AuthError{Err: errors.New("empty static token")}
	}
	return string(s), nil
}
