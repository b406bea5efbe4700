package dailymed

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
const Name = "dailymed"

const defaultBaseURL = "https://dailymed.nlm.nih.gov/dailymed/services/v2"

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

// Client handles DailyMed web service requests.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

// NewClient creates a DailyMed client.
func NewClient(limiter ratelimit.Limiter, opts apiclient.Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	return &Client{api: apiclient.New(limiter, opts, logger), logger: logger}
}

// SearchSPLs fetches one page of labels mentioning drugName. Pages are
// numbered from 1.
func (c *Client) SearchSPLs(ctx context.Context, drugName string, page, size int) (*SPLsResponse, error) {
	params := url.Values{}
	params.Set("drug_name", drugName)
	params.Set("page", strconv.Itoa(page))
	params.Set("pagesize", strconv.Itoa(size))

	var out SPLsResponse
	resp, err := c.api.GetJSON(ctx, "/spls.json", params, &out)
	if err != nil || resp == nil {
		return nil, err
	}
	return &out, nil
}

// NDCs lists the NDC codes of one label.
func (c *Client) NDCs(ctx context.Context, setID string) ([]string, error) {
	var out NDCsResponse
	resp, err := c.api.GetJSON(ctx, "/spls/"+url.PathEscape(setID)+"/ndcs.json", nil, &out)
	if err != nil || resp == nil {
		return nil, err
	}
	codes := make([]string, 0, len(out.Data.NDCs))
	for _, n := range out.Data.NDCs {
		if n.NDC != "" {
			codes = append(codes, n.NDC)
		}
	}
	return codes, nil
}

// LabelXML returns the raw SPL document, or nil when it is unavailable.
func (c *Client) LabelXML(ctx context.Context, setID string) ([]byte, error) {
	resp, err := c.api.Get(ctx, "/spls/"+url.PathEscape(setID)+".xml", nil)
	if err != nil || resp == nil {
		return nil, err
	}
	return resp.Body, nil
}

// Fetch pages through spls.json. Offsets are always multiples of the page
// size, so they map onto page numbers exactly.
func (c *Client) Fetch(ctx context.Context, term string, maxRecords int) (harvest.Result[SPL], error) {
	pager := harvest.PagerFunc[SPL](func(ctx context.Context, cur harvest.Cursor) (*harvest.Page[SPL], error) {
		resp, err := c.SearchSPLs(ctx, term, cur.Offset/pageSize+1, pageSize)
		if err != nil || resp == nil {
			return nil, err
		}
		return &harvest.Page[SPL]{Records: resp.Data, Total: resp.Metadata.TotalElements}, nil
	})

	return harvest.Collect[SPL](ctx, pager, harvest.Options{
		Style:      harvest.OffsetPaging,
		PageSize:   pageSize,
		MaxRecords: maxRecords,
		Logger:     c.logger,
	})
}
