// Package account is a client for the backend's account endpoints: login,
// signup, logout and the signed-in user's profile. The session lives in
// backend cookies, which the client keeps in its own jar.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/citymove/citymove/internal/provider/resilience"
)

const (
	// ProviderName identifies the account backend in the provider registry.
	ProviderName = "account-backend"

	// DefaultBackendURL is used when no backend is configured.
	DefaultBackendURL = "http://127.0.0.1:8000"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	profilePath = "/api/profile/"
	loginPath   = "/api/profile/login/"
	signupPath  = "/api/profile/signup/"
	logoutPath  = "/api/profile/logout/"

	maxBodyBytes = 1 << 20
)

// Sentinel errors for account operations.
var (
	// ErrInvalidInput indicates missing credentials or profile fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRejected indicates the backend refused the request.
	ErrRejected = errors.New("request rejected")
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("account backend unavailable")
)

// Error carries the backend's status and message.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// User is a profile as the backend returns it.
type User struct {
	ID        any    `json:"id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// Credentials identify an account.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the account client.
type ClientConfig struct {
	// BackendURL is the backend base URL (default: DefaultBackendURL).
	BackendURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client that never retries.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client talks to the account endpoints. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient HTTPDoer
	logger     zerolog.Logger

	mu  sync.Mutex
	jar *cookiejar.Jar
}

// NewClient creates an account client.
func NewClient(cfg ClientConfig) (*Client, error) {
	backend := cfg.BackendURL
	if backend == "" {
		backend = DefaultBackendURL
	}
	base, err := url.Parse(strings.TrimRight(backend, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", backend)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.NoRetry = true
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	return &Client{
		base:       base,
		httpClient: httpClient,
		logger:     cfg.Logger,
		jar:        jar,
	}, nil
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return jar, nil
}

// Login starts a session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	_, err := c.send(ctx, "Login", http.MethodPost, loginPath, Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}
	c.logger.Info().Str("username", username).Msg("logged in")
	return nil
}

// Signup creates an account and starts a session.
func (c *Client) Signup(ctx context.Context, creds Credentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" || strings.TrimSpace(creds.Email) == "" {
		return fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	_, err := c.send(ctx, "Signup", http.MethodPost, signupPath, creds)
	if err != nil {
		return err
	}
	c.logger.Info().Str("username", creds.Username).Msg("signed up")
	return nil
}

// Logout ends the backend session and forgets the session cookies. The
// local session is dropped even when the backend call fails.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.send(ctx, "Logout", http.MethodPost, logoutPath, nil); err != nil {
		c.logger.Debug().Err(err).Msg("backend logout failed")
	}

	jar, err := newJar()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.jar = jar
	c.mu.Unlock()
	return nil
}

// LoggedIn reports whether the backend has set any session cookie.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jar.Cookies(c.endpoint(profilePath))) > 0
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	body, err := c.send(ctx, "Load", http.MethodGet, profilePath, nil)
	if err != nil {
		return nil, err
	}
	return decodeUser(body)
}

// UpdateProfile saves u and returns the profile the backend stored.
func (c *Client) UpdateProfile(ctx context.Context, u User) (*User, error) {
	body, err := c.send(ctx, "Save", http.MethodPut, profilePath, map[string]User{"profile": u})
	if err != nil {
		return nil, err
	}
	return decodeUser(body)
}

// decodeUser accepts either {"profile": {...}} or the bare profile.
func decodeUser(body []byte) (*User, error) {
	var wrapped struct {
		Profile *User `json:"profile"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if wrapped.Profile != nil {
		return wrapped.Profile, nil
	}

	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &u, nil
}

// endpoint joins path onto the backend URL. The result is always absolute
// with a trailing slash, so session cookies scoped to "/" match it.
func (c *Client) endpoint(path string) *url.URL {
	u := c.base.JoinPath(path)
	u.Path = "/" + strings.Trim(u.Path, "/") + "/"
	u.RawPath = ""
	return u
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	endpoint := c.endpoint(path)

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	jar := c.jar
	c.mu.Unlock()
	for _, cookie := range jar.Cookies(endpoint) {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{
			Op:      op,
			Message: fmt.Sprintf("%s error: %v", op, err),
			Err:     fmt.Errorf("%w: %w", ErrUnavailable, err),
		}
	}
	defer resp.Body.Close()

	if cookies := resp.Cookies(); len(cookies) > 0 {
		jar.SetCookies(endpoint, cookies)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Int("status", resp.StatusCode).
		Msg("account request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Op:      op,
			Status:  resp.StatusCode,
			Message: failureMessage(op, resp.StatusCode, body),
			Err:     ErrRejected,
		}
	}
	return body, nil
}

// failureMessage prefers the backend's {"error": "..."} text, then a short
// excerpt of a non-JSON body.
func failureMessage(op string, status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}

	msg := fmt.Sprintf("%s failed (%d)", op, status)
	text := strings.TrimSpace(string(body))
	if text == "" || json.Valid(body) {
		return msg
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return msg + ": " + text
}
