package openfda

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/ratelimit"
)

// Name identifies the source in configuration, metrics and file names.
const Name = "openfda"

const defaultBaseURL = "https://api.fda.gov/drug"

var baseURL = defaultBaseURL

const (
	pageSize   = 100
	maxRetries = 3
	backoff    = 2 * time.Second
	// skipCeiling is the deepest record reachable through skip paging.
	skipCeiling = 5000
)

// Endpoint is one of the drug API endpoints.
type Endpoint string

const (
	Events      Endpoint = "event"
	Labels      Endpoint = "label"
	NDC         Endpoint = "ndc"
	Enforcement Endpoint = "enforcement"
	DrugsFDA    Endpoint = "drugsfda"
)

// Endpoints lists every supported endpoint.
var Endpoints = []Endpoint{Events, Labels, NDC, Enforcement, DrugsFDA}

// ParseEndpoint validates an endpoint name.
func ParseEndpoint(s string) (Endpoint, error) {
	for _, ep := range Endpoints {
		if string(ep) == s {
			return ep, nil
		}
	}
	return "", fmt.Errorf("unknown openfda endpoint %q", s)
}

// DefaultLimits returns the built-in retry policy.
func DefaultLimits() ratelimit.Config {
	return ratelimit.Config{MaxRetries: maxRetries, InitialBackoff: backoff, BackoffMultiplier: 2}
}

// Client handles OpenFDA API requests.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

// NewClient creates an OpenFDA client.
func NewClient(limiter ratelimit.Limiter, opts apiclient.Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	return &Client{api: apiclient.New(limiter, opts, logger), logger: logger}
}

// Search fetches one page of an endpoint. A nil response means no match.
func Search[R any](ctx context.Context, c *Client, ep Endpoint, query string, skip, limit int) (*SearchResponse[R], error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("skip", strconv.Itoa(skip))

	var out SearchResponse[R]
	resp, err := c.api.GetJSON(ctx, "/"+string(ep)+".json", params, &out)
	if err != nil || resp == nil {
		return nil, err
	}
	return &out, nil
}

func fetcher[R any](c *Client, ep Endpoint) harvest.Fetcher[R] {
	return func(ctx context.Context, term string, maxRecords int) (harvest.Result[R], error) {
		pager := harvest.PagerFunc[R](func(ctx context.Context, cur harvest.Cursor) (*harvest.Page[R], error) {
			resp, err := Search[R](ctx, c, ep, term, cur.Offset, cur.Limit)
			if err != nil || resp == nil {
				return nil, err
			}
			return &harvest.Page[R]{Records: resp.Results, Total: resp.Meta.Results.Total}, nil
		})

		return harvest.Collect[R](ctx, pager, harvest.Options{
			Style:      harvest.OffsetPaging,
			PageSize:   pageSize,
			MaxRecords: maxRecords,
			Ceiling:    skipCeiling,
			Logger:     c.logger.With(zap.String("endpoint", string(ep))),
		})
	}
}
