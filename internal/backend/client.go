// Package backend is a client of the giveaway backend REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/errors"
)

const (
	PathStreamers         = "/giveaway/streamers"
	PathParticipantsCount = "/giveaway/participants-count"
	PathEntriesCount      = "/giveaway/entries-count"
	PathLeaderboard       = "/giveaway/leaderboard"
	PathRecentEntries     = "/giveaway/recent-entries"
	PathMe                = "/me"
	PathSignIn            = "/auth/twitch"
	PathSignOut           = "/logout/twitch"
	PathAddReward         = "/add-reward"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	base string
	http *http.Client
}

func New(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base: strings.TrimRight(c.BaseURL, "/"),
		http: hc,
	}
}

// FetchError is returned for any non-2xx response.
// Info holds the decoded JSON error body, or nil when the body was not JSON.
type FetchError struct {
	Status int
	Info   any
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("an error occurred while fetching the data: status %d", e.Status)
}

// URL joins path onto the backend base URL.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.base + path
}

func (c *Client) SignInURL() string {
	return c.URL(PathSignIn)
}

func (c *Client) SignOutURL() string {
	return c.URL(PathSignOut)
}

// Fetch GETs path and returns the raw JSON body.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	return c.get(ctx, path, nil)
}

// Resource returns a fetch function bound to path, suitable for registering in a cache.
func (c *Client) Resource(path string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		return c.Fetch(ctx, path)
	}
}

// Ping checks the backend answers on a public endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Fetch(ctx, PathStreamers)
	return err
}

// Me returns the signed in user identified by the session cookies, or nil when nobody is signed in.
func (c *Client) Me(ctx context.Context, cookies []*http.Cookie) (*domain.User, error) {
	b, err := c.get(ctx, PathMe, cookies)
	if errors.Is(err, errors.CodeUnauthenticated) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var users []domain.User
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("decode %s", PathMe),
			errors.WithCause(err),
		)
	}

	if len(users) == 0 {
		return nil, nil
	}

	return &users[0], nil
}

// AddReward asks the backend to register the giveaway reward on the signed in streamer's channel.
func (c *Client) AddReward(ctx context.Context, cookies []*http.Cookie) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, PathAddReward, cookies)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", unavailable(PathAddReward, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", unavailable(PathAddReward, err)
	}

	if !ok(resp.StatusCode) {
		return "", errors.New(errors.FromHTTPStatus(resp.StatusCode),
			errors.WithMessagef("failed to add reward: %s", strings.TrimSpace(string(body))),
			errors.WithCause(&FetchError{Status: resp.StatusCode}),
		)
	}

	return string(body), nil
}

func (c *Client) get(ctx context.Context, path string, cookies []*http.Cookie) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, cookies)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, unavailable(path, err)
	}

	if !ok(resp.StatusCode) {
		fe := &FetchError{Status: resp.StatusCode}
		var info any
		if json.Unmarshal(body, &info) == nil {
			fe.Info = info
		}

		return nil, errors.New(errors.FromHTTPStatus(resp.StatusCode),
			errors.WithMessagef("fetch %s: status %d", path, resp.StatusCode),
			errors.WithCause(fe),
		)
	}

	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, cookies []*http.Cookie) (*http.Request, error) {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("new request %s %s: %w", method, path, err)
	}

	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	return req, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func unavailable(path string, err error) error {
	return errors.New(errors.CodeUnavailable,
		errors.WithMessagef("backend unreachable: %s", path),
		errors.WithCause(err),
	)
}
