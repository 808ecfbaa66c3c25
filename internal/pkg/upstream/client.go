package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erpeaz/siteboard/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultBaseURL        = "http://api.erpeaz.org/api"
	sitesEndpoint         = "/site-details"
	expiredPlansEndpoint  = "/plans/expired"
	defaultRequestTimeout = 15 * time.Second
)

// ErrUnavailable wraps any failure to reach or decode the primary site list.
var ErrUnavailable = errors.New("upstream unavailable")

// Client talks to the external site-details API. The upstream is read-only
// ground truth; this client never mutates anything there.
type Client struct {
	BaseURL             string
	ExpiredPlansEnabled bool

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from EXTERNAL_API_* environment settings.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL:             strings.TrimRight(env.GetEnv("EXTERNAL_API_BASE_URL", defaultBaseURL), "/"),
		ExpiredPlansEnabled: env.GetEnv("UPSTREAM_EXPIRED_PLANS_ENABLED", "false") == "true",
		HTTPClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// FetchSites returns the full external site list. The payload may be either
// {"data": [...]} or a bare array; both are accepted. Any failure is reported
// as ErrUnavailable so callers can abort cleanly.
func (c *Client) FetchSites(ctx context.Context) ([]Site, error) {
	body, err := c.get(ctx, sitesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var wrapped struct {
		Data []rawSite `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return normalizeSites(wrapped.Data), nil
	}

	var bare []rawSite
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("%w: unexpected site list payload: %v", ErrUnavailable, err)
	}
	return normalizeSites(bare), nil
}

// FetchExpiredPlans returns the externally reported expired non-basic plans.
// The endpoint is optional upstream capability: when disabled or failing, the
// result is an empty list and the error is only logged. A tick must never be
// aborted by this source.
func (c *Client) FetchExpiredPlans(ctx context.Context) []ExpiredPlan {
	if !c.ExpiredPlansEnabled {
		return nil
	}

	body, err := c.get(ctx, expiredPlansEndpoint)
	if err != nil {
		log.Warnf("[Upstream] expired plans fetch failed, treating as empty: %v", err)
		return nil
	}

	var wrapped struct {
		Data []rawExpiredPlan `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return normalizeExpiredPlans(wrapped.Data)
	}

	var bare []rawExpiredPlan
	if err := json.Unmarshal(body, &bare); err != nil {
		log.Warnf("[Upstream] unexpected expired plans payload, treating as empty: %v", err)
		return nil
	}
	return normalizeExpiredPlans(bare)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", endpoint, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
