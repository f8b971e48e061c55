// Package api is the HTTP client of the taxvoice server. The session cookie
// is kept in a cookie jar, so a Client is bound to one signed-in user.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
)

const DefaultTimeout = 15 * time.Second

type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the server at baseURL. A zero timeout means
// DefaultTimeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q: scheme and host are required", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := &http.Client{
		Jar:     jar,
		Timeout: timeout,
		// Logout and page endpoints redirect; the caller only needs the cookie.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return &Client{base: u, http: hc}, nil
}

func (c *Client) Register(ctx context.Context, name, email, password, jobTitle string) (*User, error) {
	var out User
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"name": name, "email": email, "password": password, "jobTitle": jobTitle,
	}, &out, nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, nil, nil)
}

// TokenLogin redeems a one-time login token for a session.
func (c *Client) TokenLogin(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/token-login", map[string]string{"token": token}, nil, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateLanguage(ctx context.Context, language string) (string, error) {
	var out struct {
		Language string `json:"language"`
	}
	if err := c.do(ctx, http.MethodPatch, "/user/language", map[string]string{"language": language}, &out, nil); err != nil {
		return "", err
	}
	return out.Language, nil
}

func (c *Client) Quota(ctx context.Context) (*Quota, error) {
	var out Quota
	if err := c.do(ctx, http.MethodGet, "/quota", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tick deducts seconds from the caller's quota and returns what remains.
// Exhaustion is a *common.QuotaError of kind common.ErrQuotaExhausted.
func (c *Client) Tick(ctx context.Context, seconds int64) (int64, error) {
	var out struct {
		Remaining int64 `json:"remaining"`
	}
	err := c.do(ctx, http.MethodPost, "/conversations/tick", map[string]int64{"tickSeconds": seconds}, &out, common.ErrQuotaExhausted)
	if err != nil {
		return 0, err
	}
	return out.Remaining, nil
}

func (c *Client) SaveConversation(ctx context.Context, d Draft) (*Conversation, error) {
	var out Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", d, &out, common.ErrQuotaBelowFloor); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.do(ctx, http.MethodPost, "/summarize", map[string]string{"transcript": transcript}, &out, nil); err != nil {
		return "", err
	}
	return out.Summary, nil
}

func (c *Client) Share(ctx context.Context, conversationID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/share", nil, &out, nil); err != nil {
		return "", err
	}
	return out.URL, nil
}

// do sends in as JSON and decodes a 2xx body into out. quotaKind is the
// QuotaError kind a 403 carrying a balance stands for on this endpoint.
func (c *Client) do(ctx context.Context, method, path string, in, out any, quotaKind error) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil
	}
	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return statusError(resp.StatusCode, eb, quotaKind)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", common.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", common.ErrUpstream, err)
}

// statusError turns an error response back into the shared taxonomy.
func statusError(status int, eb errorBody, quotaKind error) error {
	msg := eb.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", common.ErrorUnauthorized, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrorValidation, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, msg)
	case http.StatusForbidden:
		if eb.Remaining != nil && quotaKind != nil {
			return &common.QuotaError{Kind: quotaKind, Remaining: *eb.Remaining}
		}
		return common.ErrNoQuotaConfigured
	case http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", common.ErrTimeout, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", common.ErrUpstream, status, msg)
	}
}
