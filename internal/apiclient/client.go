// Package apiclient is a typed HTTP client for the studio API. It satisfies the
// backend interfaces of the session package.
package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/internal/session"
	"github.com/noah-isme/studio-api/pkg/config"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

// Client calls the API rooted at the configured base URL (including the API prefix).
// The token installed with SetToken is sent with every request. Sign-in calls return
// their token without installing it.
type Client struct {
	http   *resty.Client
	logger *zap.Logger

	mu    sync.RWMutex
	token string
}

var (
	_ session.AuthBackend = (*Client)(nil)
	_ session.Backend     = (*Client)(nil)
)

type envelope[T any] struct {
	Data  T                      `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

// New builds a client from the client section of the configuration.
func New(cfg config.ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("apiclient")

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar())
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("api call",
			zap.String("method", resp.Request.Method),
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("latency", resp.Time()),
		)
		return nil
	})
	return &Client{http: rc, logger: logger}
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the access token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// call executes a request and unwraps the response envelope.
func call[T any](ctx context.Context, c *Client, method, url string, configure func(*resty.Request)) (envelope[T], int, error) {
	var env envelope[T]
	req := c.request(ctx).SetResult(&env).SetError(&env)
	if configure != nil {
		configure(req)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		return env, 0, appErrors.Remote(err, "transport", fmt.Sprintf("%s %s failed", method, url))
	}
	if resp.IsError() {
		return env, resp.StatusCode(), responseError(resp, env.Error)
	}
	return env, resp.StatusCode(), nil
}

func responseError(resp *resty.Response, apiErr *appErrors.Error) error {
	if apiErr != nil && apiErr.Code != "" {
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode()
		}
		return apiErr
	}
	e := appErrors.Remote(fmt.Errorf("unexpected status %d", resp.StatusCode()), fmt.Sprintf("http_%d", resp.StatusCode()), http.StatusText(resp.StatusCode()))
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	case http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrForbidden, "")
	case http.StatusNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, "")
	}
	return e
}

// SignUp creates an account.
func (c *Client) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error) {
	return c.authenticate(ctx, "/auth/signup", req)
}

// LogIn authenticates with email and password.
func (c *Client) LogIn(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", req)
}

// LogInWithProvider exchanges a third-party credential.
func (c *Client) LogInWithProvider(ctx context.Context, req models.ProviderLoginRequest) (*models.AuthResult, error) {
	return c.authenticate(ctx, "/auth/provider", req)
}

// CompleteProfile writes the user record of the signed-in identity. The response
// carries a new token that reflects the role.
func (c *Client) CompleteProfile(ctx context.Context, req models.CompleteProfileRequest) (*models.AuthResult, error) {
	return c.authenticate(ctx, "/auth/profile", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*models.AuthResult, error) {
	env, _, err := call[models.AuthResult](ctx, c, http.MethodPost, path, func(r *resty.Request) {
		r.SetBody(body)
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Revoke signs token out on the server. It does not touch the installed token.
func (c *Client) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, _, err := call[struct{}](ctx, c, http.MethodPost, "/auth/logout", func(r *resty.Request) {
		r.SetAuthToken(token)
	})
	return err
}

// LogOut revokes the installed token and forgets it. The token is dropped even when
// the remote call fails.
func (c *Client) LogOut(ctx context.Context) error {
	token := c.Token()
	c.SetToken("")
	return c.Revoke(ctx, token)
}

// Me returns the identity behind the current token.
func (c *Client) Me(ctx context.Context) (*models.UserInfo, error) {
	env, _, err := call[models.UserInfo](ctx, c, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Snapshot lists all users.
func (c *Client) Snapshot(ctx context.Context) (models.DirectorySnapshot, error) {
	env, _, err := call[[]models.User](ctx, c, http.MethodGet, "/users", nil)
	if err != nil {
		return models.DirectorySnapshot{}, err
	}
	takenAt := time.Now().UTC()
	if raw, ok := env.Meta["taken_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			takenAt = t
		}
	}
	return models.NewDirectorySnapshot(env.Data, takenAt), nil
}

func contentPath(kind models.ContentType) string {
	if kind == models.ContentTechnic {
		return "/technics"
	}
	return "/lessons"
}

// ListContent lists the caller's items of kind.
func (c *Client) ListContent(ctx context.Context, kind models.ContentType) ([]models.ContentItem, error) {
	env, _, err := call[[]models.ContentItem](ctx, c, http.MethodGet, contentPath(kind), nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateContent creates an item of kind.
func (c *Client) CreateContent(ctx context.Context, kind models.ContentType, input models.ContentInput) (*models.ContentItem, error) {
	env, _, err := call[models.ContentItem](ctx, c, http.MethodPost, contentPath(kind), func(r *resty.Request) {
		r.SetBody(input)
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// UpdateContent replaces the mutable fields of an item.
func (c *Client) UpdateContent(ctx context.Context, kind models.ContentType, id string, input models.ContentInput) (*models.ContentItem, error) {
	env, _, err := call[models.ContentItem](ctx, c, http.MethodPut, contentPath(kind)+"/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id).SetBody(input)
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// DeleteContent removes an item.
func (c *Client) DeleteContent(ctx context.Context, kind models.ContentType, id string) error {
	_, _, err := call[struct{}](ctx, c, http.MethodDelete, contentPath(kind)+"/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id)
	})
	return err
}
