package screeps

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

	"github.com/oshokin/screeps-deploy/internal/domain/code"
)

// Client wraps the server HTTP API with convenience helpers.
type Client struct {
	// baseURL is the API root, e.g. "https://screeps.com" or "http://host:21025/path".
	baseURL string
	// httpClient performs the underlying requests.
	httpClient *http.Client
	// token authenticates requests; set up front or obtained via Signin.
	token string

	// callTimeout is the default timeout for individual API calls.
	callTimeout time.Duration
}

// Branch is one named code slot on the server.
type Branch struct {
	// Name is the branch name as reported by the server.
	Name string `json:"branch"`
	// ActiveWorld reports whether the branch is active in the world.
	ActiveWorld bool `json:"activeWorld"`
	// ActiveSim reports whether the branch is active in the simulator.
	ActiveSim bool `json:"activeSim"`
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for API calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithToken preloads an auth token, skipping the signin exchange.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

const (
	// defaultCallTimeout bounds individual API calls.
	defaultCallTimeout = 30 * time.Second

	// API endpoints, relative to the configured path prefix.
	signinEndpoint   = "/api/auth/signin"
	branchesEndpoint = "/api/user/branches"
	cloneEndpoint    = "/api/user/clone-branch"
	codeEndpoint     = "/api/user/code"
)

var (
	// ErrAuthFailed is returned when the server rejects the credentials.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrRequestFailed is returned when the server reports a non-ok result.
	ErrRequestFailed = errors.New("request failed")
	// errHostnameRequired is returned when a required hostname value is missing.
	errHostnameRequired = errors.New("hostname must be provided")
)

// apiResponse is the common envelope of server API replies.
type apiResponse struct {
	// Ok is 1 on success.
	Ok int `json:"ok"`
	// Error carries the failure reason when Ok is not 1.
	Error string `json:"error"`
	// Token is returned by the signin exchange.
	Token string `json:"token"`
	// List carries the branch listing.
	List []Branch `json:"list"`
}

// New creates a client bound to the provided server address.
func New(protocol, hostname string, port int, path string, opts ...Option) (*Client, error) {
	if hostname == "" {
		return nil, errHostnameRequired
	}

	prefix := strings.TrimSuffix(path, "/")

	client := &Client{
		baseURL:     fmt.Sprintf("%s://%s:%d%s", protocol, hostname, port, prefix),
		httpClient:  http.DefaultClient,
		callTimeout: defaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Token returns the auth token currently held by the client.
func (c *Client) Token() string {
	return c.token
}

// Signin exchanges email and password for an auth token and stores it
// on the client for subsequent calls.
func (c *Client) Signin(ctx context.Context, email, password string) error {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	response, err := c.post(ctx, signinEndpoint, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	if response.Token == "" {
		return fmt.Errorf("%w: server returned no token", ErrAuthFailed)
	}

	c.token = response.Token

	return nil
}

// Branches returns the list of existing branches for the account.
func (c *Client) Branches(ctx context.Context) ([]Branch, error) {
	response, err := c.get(ctx, branchesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	return response.List, nil
}

// CloneBranch creates targetBranch as a copy of sourceBranch,
// pre-populated with the provided code mapping. An empty source branch
// creates the target from scratch.
func (c *Client) CloneBranch(ctx context.Context, sourceBranch, targetBranch string, mapping code.Mapping) error {
	payload := map[string]any{
		"branch":  sourceBranch,
		"newName": targetBranch,
		"modules": mapping,
	}

	if _, err := c.post(ctx, cloneEndpoint, payload); err != nil {
		return fmt.Errorf("clone branch %s: %w", targetBranch, err)
	}

	return nil
}

// SetCode replaces the code mapping of the provided branch.
func (c *Client) SetCode(ctx context.Context, branch string, mapping code.Mapping) error {
	payload := map[string]any{
		"branch":  branch,
		"modules": mapping,
	}

	if _, err := c.post(ctx, codeEndpoint, payload); err != nil {
		return fmt.Errorf("set code on branch %s: %w", branch, err)
	}

	return nil
}

// get issues an authenticated GET request against the API.
func (c *Client) get(ctx context.Context, endpoint string) (*apiResponse, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

// post issues an authenticated POST request with a JSON body against the API.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	return c.do(ctx, http.MethodPost, endpoint, body)
}

// do performs one API call and decodes the common response envelope.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*apiResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	request, err := http.NewRequestWithContext(callCtx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if body != nil {
		request.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	// The server accepts the token in both headers; private servers
	// historically read X-Username.
	if c.token != "" {
		request.Header.Set("X-Token", c.token)
		request.Header.Set("X-Username", c.token)
	}

	httpResponse, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", endpoint, err)
	}

	defer func() {
		_ = httpResponse.Body.Close()
	}()

	contents, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResponse.StatusCode < http.StatusOK || httpResponse.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrRequestFailed, endpoint, httpResponse.StatusCode)
	}

	var response apiResponse
	if err = json.Unmarshal(contents, &response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if response.Ok != 1 {
		reason := response.Error
		if reason == "" {
			reason = "unknown error"
		}

		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, reason)
	}

	return &response, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
