package clinicaltrials

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/ratelimit"
)

// Name identifies the source in configuration, metrics and file names.
const Name = "clinicaltrials"

const defaultBaseURL = "https://clinicaltrials.gov/api/v2"

var baseURL = defaultBaseURL

const (
	pageSize   = 100
	maxRetries = 3
	backoff    = 2 * time.Second
)

// DefaultLimits returns the built-in retry policy.
func DefaultLimits() ratelimit.Config {
	return ratelimit.Config{MaxRetries: maxRetries, InitialBackoff: backoff, BackoffMultiplier: 2}
}

// Client handles ClinicalTrials.gov API requests.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

// NewClient creates a ClinicalTrials.gov client.
func NewClient(limiter ratelimit.Limiter, opts apiclient.Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	return &Client{api: apiclient.New(limiter, opts, logger), logger: logger}
}

// SearchStudies fetches one page of studies matching query. pageToken is
// empty for the first page.
func (c *Client) SearchStudies(ctx context.Context, query, pageToken string, size int) (*StudiesResponse, error) {
	params := url.Values{}
	params.Set("query.term", query)
	params.Set("pageSize", strconv.Itoa(size))
	params.Set("countTotal", "true")
	params.Set("format", "json")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var out StudiesResponse
	resp, err := c.api.GetJSON(ctx, "/studies", params, &out)
	if err != nil || resp == nil {
		return nil, err
	}
	return &out, nil
}

// Fetch follows next-page tokens for term.
func (c *Client) Fetch(ctx context.Context, term string, maxRecords int) (harvest.Result[Study], error) {
	pager := harvest.PagerFunc[Study](func(ctx context.Context, cur harvest.Cursor) (*harvest.Page[Study], error) {
		resp, err := c.SearchStudies(ctx, term, cur.Next, cur.Limit)
		if err != nil || resp == nil {
			return nil, err
		}
		total := harvest.UnknownTotal
		if resp.TotalCount != nil {
			total = *resp.TotalCount
		}
		return &harvest.Page[Study]{Records: resp.Studies, Total: total, Next: resp.NextPageToken}, nil
	})

	return harvest.Collect[Study](ctx, pager, harvest.Options{
		Style:      harvest.TokenPaging,
		PageSize:   pageSize,
		MaxRecords: maxRecords,
		Logger:     c.logger,
	})
}
