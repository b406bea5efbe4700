package chembl

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
const Name = "chembl"

const defaultBaseURL = "https://www.ebi.ac.uk/chembl/api/data"

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

// Client handles ChEMBL API requests.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

// NewClient creates a ChEMBL client.
func NewClient(limiter ratelimit.Limiter, opts apiclient.Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	return &Client{api: apiclient.New(limiter, opts, logger), logger: logger}
}

// SearchMolecules runs a free-text molecule search. It returns nil when the
// API had no data.
func (c *Client) SearchMolecules(ctx context.Context, query string, offset, limit int) (*MoleculeSearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var out MoleculeSearchResponse
	resp, err := c.api.GetJSON(ctx, "/molecule/search.json", params, &out)
	if err != nil || resp == nil {
		return nil, err
	}
	return &out, nil
}

// Mechanisms returns the mechanisms of action recorded for a molecule.
func (c *Client) Mechanisms(ctx context.Context, chemblID string) ([]MechanismRecord, error) {
	params := url.Values{}
	params.Set("molecule_chembl_id", chemblID)
	params.Set("limit", "1000")

	var out MechanismResponse
	resp, err := c.api.GetJSON(ctx, "/mechanism.json", params, &out)
	if err != nil || resp == nil {
		return nil, err
	}
	return out.Mechanisms, nil
}

// Fetch pages through the molecule search for term.
func (c *Client) Fetch(ctx context.Context, term string, maxRecords int) (harvest.Result[MoleculeRecord], error) {
	pager := harvest.PagerFunc[MoleculeRecord](func(ctx context.Context, cur harvest.Cursor) (*harvest.Page[MoleculeRecord], error) {
		resp, err := c.SearchMolecules(ctx, term, cur.Offset, cur.Limit)
		if err != nil || resp == nil {
			return nil, err
		}
		return &harvest.Page[MoleculeRecord]{Records: resp.Molecules, Total: resp.PageMeta.TotalCount}, nil
	})

	return harvest.Collect[MoleculeRecord](ctx, pager, harvest.Options{
		Style:      harvest.OffsetPaging,
		PageSize:   pageSize,
		MaxRecords: maxRecords,
		Logger:     c.logger,
	})
}
