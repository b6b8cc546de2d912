package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/flowex/flowex-go/internal/metrics"
	"github.com/flowex/flowex-go/internal/state"
)

// Credentials are submitted to the login endpoint. RememberMe controls
// whether tokens are written to durable storage.
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginResponse is the login endpoint's success body.
type LoginResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         *state.User `json:"user"`
	ExpiresIn    int64       `json:"expiresIn"`
}

// MeResponse is the identity endpoint's success body.
type MeResponse struct {
	User        *state.User `json:"user"`
	Permissions []string    `json:"permissions"`
	Roles       []string    `json:"roles"`
}

// Verify Client satisfies the API surface the Manager depends on.
var _ API = (*Client)(nil)

// RefreshResponse is the refresh endpoint's success body. RefreshToken is
// empty when the server does not rotate refresh tokens.
type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// API is the auth REST surface consumed by the Manager. The concrete Client
// talks HTTP; tests substitute a fake.
type API interface {
	Login(ctx context.Context, creds Credentials) (*LoginResponse, error)
	Me(ctx context.Context, accessToken string) (*MeResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error)
}

// ClientConfig configures the auth REST client.
type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration // bound on every call, never hangs indefinitely
	LoginRPS float64       // rate limit on credential submissions
	Burst    int
}

// Client is the HTTP auth client with a circuit breaker around the remote
// service and a rate limiter on credential submissions.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	metrics    *metrics.Registry
}

// NewClient creates an auth REST client.
func NewClient(cfg ClientConfig, reg *metrics.Registry) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LoginRPS == 0 {
		cfg.LoginRPS = 1.0
	}
	if cfg.Burst == 0 {
		cfg.Burst = 3
	}
	if reg == nil {
		reg = metrics.New()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "flowex-auth",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Auth circuit breaker state change")
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(cfg.LoginRPS), cfg.Burst),
		metrics:    reg,
	}
}

// Login submits credentials. Rate limited to keep a misbehaving caller from
// hammering the credential endpoint.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &AuthError{Op: "login", Err: err}
	}
	var out LoginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", creds, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me resolves the identity behind an access token.
func (c *Client) Me(ctx context.Context, accessToken string) (*MeResponse, error) {
	header := http.Header{"Authorization": []string{"Bearer " + accessToken}}
	var out MeResponse
	if err := c.do(ctx, "me", http.MethodGet, "/auth/me", nil, header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var out RefreshResponse
	if err := c.do(ctx, "refresh", http.MethodPost, "/auth/refresh", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// apiError is the structured error body returned by the auth service.
type apiError struct {
	Message string `json:"message"`
	Error_  struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e apiError) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error_.Message
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, header http.Header, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, path, body, header, out)
	})
	if err != nil {
		c.metrics.AuthRequests.WithLabelValues(op, "failure").Inc()
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			// Breaker-level rejection (open circuit, too many requests).
			return &AuthError{Op: op, Err: err}
		}
		return err
	}
	c.metrics.AuthRequests.WithLabelValues(op, "success").Inc()
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body any, header http.Header, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &AuthError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &AuthError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &AuthError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.message()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &AuthError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &AuthError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	return nil
}
