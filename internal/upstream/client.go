// Package upstream is the typed client for the remote analytics platform:
// the auth issuer, the site directory, the four aggregate endpoints and the
// entry/exit query. It plays the repository role; the platform owns all
// state and everything here is fetched fresh per cycle.
package upstream

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

	"github.com/rs/zerolog"

	"crowd-dashboard/internal/model"
)

var (
	// ErrUnauthorized is the session-invalidation signal: the caller must
	// clear stored credentials and send the user back to login.
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrNotFound     = errors.New("upstream: not found")
	ErrUnavailable  = errors.New("upstream: unavailable")
)

// TokenSource supplies the current bearer token. The auth session store
// satisfies it.
type TokenSource interface {
	Token() string
}

// AggregateQuery scopes one aggregate call.
type AggregateQuery struct {
	SiteID  string `json:"siteId"`
	FromUTC int64  `json:"fromUtc"`
	ToUTC   int64  `json:"toUtc"`
}

// EntryExitQuery adds paging on top of the window scope.
type EntryExitQuery struct {
	SiteID     string `json:"siteId"`
	FromUTC    int64  `json:"fromUtc"`
	ToUTC      int64  `json:"toUtc"`
	PageNumber int    `json:"pageNumber"`
	PageSize   int    `json:"pageSize"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	log    zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log zerolog.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
		log:    log,
	}
}

// Login exchanges credentials for a token. The token is returned, not
// stored; the session store is the single owner of credentials.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var resp loginResponse
	if err := c.post(ctx, "/api/auth/login", creds, &resp, false); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: token missing in login response", ErrUnavailable)
	}
	return resp.Token, nil
}

func (c *Client) Sites(ctx context.Context) ([]model.Site, error) {
	var sites []model.Site
	if err := c.get(ctx, "/api/sites", &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

func (c *Client) Site(ctx context.Context, siteID string) (*model.Site, error) {
	var site model.Site
	if err := c.get(ctx, "/api/sites/"+siteID, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

func (c *Client) Dwell(ctx context.Context, q AggregateQuery) (*model.DwellResponse, error) {
	var resp model.DwellResponse
	if err := c.post(ctx, "/api/analytics/dwell", q, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Footfall(ctx context.Context, q AggregateQuery) (*model.FootfallResponse, error) {
	var resp model.FootfallResponse
	if err := c.post(ctx, "/api/analytics/footfall", q, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Occupancy(ctx context.Context, q AggregateQuery) (*model.OccupancyResponse, error) {
	var resp model.OccupancyResponse
	if err := c.post(ctx, "/api/analytics/occupancy", q, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Demographics(ctx context.Context, q AggregateQuery) (*model.DemographicsResponse, error) {
	var resp model.DemographicsResponse
	if err := c.post(ctx, "/api/analytics/demographics", q, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) EntryExit(ctx context.Context, q EntryExitQuery) (*model.EntryExitResponse, error) {
	var resp model.EntryExitResponse
	if err := c.post(ctx, "/api/analytics/entry-exit", q, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out, true)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}, authed bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, authed)
}

func (c *Client) do(req *http.Request, out interface{}, authed bool) error {
	if authed {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Int("status", resp.StatusCode).Str("path", req.URL.Path).
			Str("body", string(body)).Msg("upstream error")
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
