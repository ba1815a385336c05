// Package catalogapi pages the station catalog from a remote /stations endpoint.
package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/pkg/metrics"
	"github.com/stazy/chargeshare/internal/pkg/resilience"
)

// Client implements ports.StationPager over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.Breaker
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("catalog")),
	}
}

// FetchPage requests GET {base}/stations?limit=&offset=.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
	started := time.Now()
	page, err := resilience.Execute(c.breaker, func() (*domain.StationPage, error) {
		return c.fetch(ctx, offset, limit)
	})
	metrics.ObserveCall("catalog", started, err)
	return page, err
}

func (c *Client) fetch(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stations?"+q.Encode(), nil)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog returned %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}

	var page domain.StationPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode catalog page: %w", domain.ErrServiceUnavailable, err)
	}
	return &page, nil
}
