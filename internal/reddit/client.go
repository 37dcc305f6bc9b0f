// Package reddit fetches hot posts and their best top-level comments through
// the Reddit OAuth API.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/tickerpulse/internal/logger"
)

const (
	DefaultAuthURL = "https://www.reddit.com/api/v1/access_token"
	DefaultAPIURL  = "https://oauth.reddit.com"
)

// Credentials are the script-app credentials used for the password grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// Client provides access to the Reddit API
type Client struct {
	authURL    string
	apiURL     string
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration

	grant  oauth2.TokenSource // fetches a fresh token on every call
	mu     sync.Mutex
	tokens oauth2.TokenSource // caches grant until a minute before expiry
}

// Option configures the Client.
type Option func(*Client)

// WithURLs overrides the token endpoint and API base URL.
func WithURLs(authURL, apiURL string) Option {
	return func(c *Client) {
		c.authURL = authURL
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit caps outgoing requests per minute.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithRetries sets how many attempts a request gets and the linear backoff step.
func WithRetries(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = attempts
		c.backoff = backoff
	}
}

// NewClient creates a new Reddit client
func NewClient(creds Credentials, timeout time.Duration, opts ...Option) *Client {
	if creds.UserAgent == "" {
		creds.UserAgent = "tickerpulse/1.0"
	}
	c := &Client{
		authURL:    DefaultAuthURL,
		apiURL:     DefaultAPIURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		maxRetries: 3,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.grant = c.passwordGrant()
	c.tokens = oauth2.ReuseTokenSourceWithExpiry(nil, c.grant, tokenExpiryDelta)
	return c
}

// tokenExpiryDelta is how long before its expiry a token is replaced.
const tokenExpiryDelta = time.Minute

// agentTransport sets the User-Agent and waits on the rate limiter before
// every token request.
type agentTransport struct {
	base    http.RoundTripper
	agent   string
	limiter *rate.Limiter
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// passwordSource performs the OAuth password grant.
type passwordSource struct {
	ctx                context.Context
	conf               *oauth2.Config
	username, password string
}

func (p *passwordSource) Token() (*oauth2.Token, error) {
	return p.conf.PasswordCredentialsToken(p.ctx, p.username, p.password)
}

// passwordGrant builds the token source used by every request. Token
// requests go through the rate limiter and carry the User-Agent.
func (c *Client) passwordGrant() oauth2.TokenSource {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	tokenClient := &http.Client{
		Timeout:   c.httpClient.Timeout,
		Transport: &agentTransport{base: base, agent: c.creds.UserAgent, limiter: c.limiter},
	}
	return &passwordSource{
		ctx: context.WithValue(context.Background(), oauth2.HTTPClient, tokenClient),
		conf: &oauth2.Config{
			ClientID:     c.creds.ClientID,
			ClientSecret: c.creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  c.authURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		username: c.creds.Username,
		password: c.creds.Password,
	}
}

// accessToken returns the cached bearer token, renewing it when needed.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	tokens := c.tokens
	c.mu.Unlock()

	tok, err := tokens.Token()
	if err != nil {
		return "", fmt.Errorf("failed to request access token: %w", err)
	}
	return tok.AccessToken, nil
}

// invalidateToken drops the cached token so the next request renews it.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.tokens = oauth2.ReuseTokenSourceWithExpiry(nil, c.grant, tokenExpiryDelta)
	c.mu.Unlock()
}

// getJSON performs an authenticated GET against the API and decodes the body.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		query.Set("raw_json", "1")
		urlStr := c.apiURL + path + "?" + query.Encode()

		resp, err := c.doRequest(ctx, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "bearer "+token)
			req.Header.Set("Accept", "application/json")
			return req, nil
		})
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.invalidateToken()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return nil
	}
	return errors.New("unauthorized after token refresh")
}

// doRequest performs an HTTP request with rate limiting and retry logic.
// Transport errors, 429 and 5xx responses are retried with linear backoff.
func (c *Client) doRequest(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := build()
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.creds.UserAgent)

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		default:
			return resp, nil
		}

		logger.Debug("Reddit request attempt %d failed: %v", i+1, lastErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * c.backoff):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
