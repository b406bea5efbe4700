package uniprot

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
const Name = "uniprot"

const defaultBaseURL = "https://rest.uniprot.org/uniprotkb"

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

// Client handles UniProt REST requests.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

// NewClient creates a UniProt client.
func NewClient(limiter ratelimit.Limiter, opts apiclient.Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	return &Client{api: apiclient.New(limiter, opts, logger), logger: logger}
}

// Page is one decoded search page with its pagination headers.
type Page struct {
	Entries []Entry
	Next    string
	Total   int
}

// Search fetches the first page for query, or the page at next when it is
// set. Next URLs come from the Link header and are absolute.
func (c *Client) Search(ctx context.Context, query, next string, size int) (*Page, error) {
	endpoint, params := next, url.Values(nil)
	if endpoint == "" {
		endpoint = "/search"
		params = url.Values{}
		params.Set("query", query)
		params.Set("size", strconv.Itoa(size))
		params.Set("format", "json")
	}

	var out SearchResponse
	resp, err := c.api.GetJSON(ctx, endpoint, params, &out)
	if err != nil || resp == nil {
		return nil, err
	}

	total := harvest.UnknownTotal
	if v := resp.Header.Get("X-Total-Results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			total = n
		}
	}
	return &Page{Entries: out.Results, Next: resp.NextLink(), Total: total}, nil
}

// Fetch follows Link rel="next" headers for term.
func (c *Client) Fetch(ctx context.Context, term string, maxRecords int) (harvest.Result[Entry], error) {
	pager := harvest.PagerFunc[Entry](func(ctx context.Context, cur harvest.Cursor) (*harvest.Page[Entry], error) {
		page, err := c.Search(ctx, term, cur.Next, cur.Limit)
		if err != nil || page == nil {
			return nil, err
		}
		return &harvest.Page[Entry]{Records: page.Entries, Total: page.Total, Next: page.Next}, nil
	})

	return harvest.Collect[Entry](ctx, pager, harvest.Options{
		Style:      harvest.LinkPaging,
		PageSize:   pageSize,
		MaxRecords: maxRecords,
		Logger:     c.logger,
	})
}
