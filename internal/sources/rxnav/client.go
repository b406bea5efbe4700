package rxnav

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/ratelimit"
)

// Name identifies the source in configuration, metrics and file names.
const Name = "rxnav"

const defaultBaseURL = "https://rxnav.nlm.nih.gov/REST"

var baseURL = defaultBaseURL

const (
	maxRetries = 3
	backoff    = 2 * time.Second
)

// Relations are the class relations stored for each drug.
var Relations = []string{"has_MoA", "has_EPC", "may_treat", "may_prevent"}

// DefaultLimits returns the built-in retry policy.
func DefaultLimits() ratelimit.Config {
	return ratelimit.Config{MaxRetries: maxRetries, InitialBackoff: backoff, BackoffMultiplier: 2}
}

// Client handles RxNav REST requests.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

// NewClient creates an RxNav client.
func NewClient(limiter ratelimit.Limiter, opts apiclient.Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	return &Client{api: apiclient.New(limiter, opts, logger), logger: logger}
}

// RxCUI resolves a drug name. It returns "" when RxNorm has no match.
func (c *Client) RxCUI(ctx context.Context, name string) (string, error) {
	params := url.Values{}
	params.Set("name", name)

	var out IDGroupResponse
	resp, err := c.api.GetJSON(ctx, "/rxcui.json", params, &out)
	if err != nil || resp == nil || len(out.IDGroup.RxNormID) == 0 {
		return "", err
	}
	return out.IDGroup.RxNormID[0], nil
}

// Classes returns the classes linked to rxcui through rela.
func (c *Client) Classes(ctx context.Context, rxcui, rela string) ([]ClassInfo, error) {
	params := url.Values{}
	params.Set("rxcui", rxcui)
	params.Set("relas", rela)

	var out ClassesResponse
	resp, err := c.api.GetJSON(ctx, "/rxclass/class/byRxcui.json", params, &out)
	if err != nil || resp == nil {
		return nil, err
	}
	return out.List.Info, nil
}

// Fetch resolves term to at most one concept.
func (c *Client) Fetch(ctx context.Context, term string, maxRecords int) (harvest.Result[Concept], error) {
	pager := harvest.PagerFunc[Concept](func(ctx context.Context, cur harvest.Cursor) (*harvest.Page[Concept], error) {
		if cur.Offset > 0 {
			return nil, nil
		}
		id, err := c.RxCUI(ctx, term)
		if err != nil || id == "" {
			return nil, err
		}
		return &harvest.Page[Concept]{Records: []Concept{{RxCUI: id, Name: term}}, Total: 1}, nil
	})

	return harvest.Collect[Concept](ctx, pager, harvest.Options{
		Style:      harvest.OffsetPaging,
		PageSize:   1,
		MaxRecords: maxRecords,
		Logger:     c.logger,
	})
}
