package pubmed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/ratelimit"
)

// Name identifies the source in configuration, metrics and file names.
const Name = "pubmed"

const defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

var baseURL = defaultBaseURL

const (
	pageSize  = 200
	chunkSize = 200
	// esearch refuses retstart past this record.
	searchCeiling = 9999
	maxRetries    = 5
	backoff       = 5 * time.Second
)

// ErrMissingEmail is returned when no contact email is configured.
var ErrMissingEmail = errors.New("pubmed: contact email is required")

// DefaultLimits returns the NCBI request policy: three requests per second
// without an API key, ten with one.
func DefaultLimits(apiKey string) ratelimit.Config {
	delay := 340 * time.Millisecond
	if apiKey != "" {
		delay = 100 * time.Millisecond
	}
	return ratelimit.Config{
		Strategy:          ratelimit.StrategyFixedDelay,
		FixedDelay:        delay,
		MaxRetries:        maxRetries,
		InitialBackoff:    backoff,
		BackoffMultiplier: 2,
	}
}

// Contact identifies the caller to NCBI.
type Contact struct {
	Email  string
	Tool   string
	APIKey string
}

// Params returns the query parameters sent with every E-utilities request.
func (c Contact) Params() url.Values {
	v := url.Values{}
	v.Set("email", c.Email)
	if c.Tool != "" {
		v.Set("tool", c.Tool)
	}
	if c.APIKey != "" {
		v.Set("api_key", c.APIKey)
	}
	return v
}

// Client handles E-utilities requests.
type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

// NewClient creates an E-utilities client. contact.Email must be set.
func NewClient(limiter ratelimit.Limiter, opts apiclient.Options, contact Contact, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(contact.Email) == "" {
		return nil, ErrMissingEmail
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	opts.Params = contact.Params()
	return &Client{api: apiclient.New(limiter, opts, logger), logger: logger}, nil
}

// SearchPage is one esearch page.
type SearchPage struct {
	IDs   []string
	Total int
}

// ESearch returns PMIDs matching term starting at retstart.
func (c *Client) ESearch(ctx context.Context, term, sort string, retstart, retmax int) (*SearchPage, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retstart", strconv.Itoa(retstart))
	params.Set("retmax", strconv.Itoa(retmax))
	params.Set("retmode", "json")
	if sort != "" {
		params.Set("sort", sort)
	}

	var out ESearchResponse
	resp, err := c.api.GetJSON(ctx, "/esearch.fcgi", params, &out)
	if err != nil || resp == nil {
		return nil, err
	}
	if out.Result.Error != "" {
		c.logger.Warn("esearch error", zap.String("term", term), zap.String("error", out.Result.Error))
		return nil, nil
	}

	total, err := strconv.Atoi(out.Result.Count)
	if err != nil {
		total = harvest.UnknownTotal
	}
	return &SearchPage{IDs: out.Result.IDList, Total: total}, nil
}

// EFetch returns the full records of pmids. Articles that do not parse are
// logged and left out; a document that is not an article set yields none.
func (c *Client) EFetch(ctx context.Context, pmids []string) ([]Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")

	resp, err := c.api.Get(ctx, "/efetch.fcgi", params)
	if err != nil || resp == nil {
		return nil, err
	}
	arts, err := ParseArticleSet(resp.Body, func(i int, err error) {
		c.logger.Warn("efetch article skipped", zap.Int("index", i), zap.Error(err))
	})
	if err != nil {
		c.logger.Error("parse efetch response", zap.Int("pmids", len(pmids)), zap.Error(err))
		return nil, nil
	}
	return arts, nil
}

// FullText returns the body text of a PMC article, or "" when it is not
// available or does not parse.
func (c *Client) FullText(ctx context.Context, pmcid string) (string, error) {
	params := url.Values{}
	params.Set("db", "pmc")
	params.Set("id", strings.TrimPrefix(pmcid, "PMC"))
	params.Set("retmode", "xml")

	resp, err := c.api.Get(ctx, "/efetch.fcgi", params)
	if err != nil || resp == nil {
		return "", err
	}
	body, err := BodyText(resp.Body)
	if err != nil {
		c.logger.Error("parse pmc article", zap.String("pmcid", pmcid), zap.Error(err))
		return "", nil
	}
	if body == "" {
		c.logger.Warn("pmc article has no body text", zap.String("pmcid", pmcid))
	}
	return body, nil
}

// ESummary returns the esummary record of each pmid that NCBI knows, keyed
// by PMID.
func (c *Client) ESummary(ctx context.Context, pmids []string) (map[string]Summary, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "json")

	var out ESummaryResponse
	resp, err := c.api.GetJSON(ctx, "/esummary.fcgi", params, &out)
	if err != nil || resp == nil {
		return nil, err
	}

	sums := make(map[string]Summary, len(out.Result))
	for pmid, raw := range out.Result {
		if pmid == "uids" {
			continue
		}
		var s Summary
		if err := json.Unmarshal(raw, &s); err != nil {
			c.logger.Warn("esummary record skipped", zap.String("pmid", pmid), zap.Error(err))
			continue
		}
		sums[pmid] = s
	}
	return sums, nil
}

// HarvestOptions refine a PubMed search.
type HarvestOptions struct {
	// StartDate and EndDate bound the publication date, as YYYY/MM/DD.
	StartDate string
	EndDate   string
	// FullText fetches PMC body text for new articles that have a PMCID.
	FullText bool
	// Sort is the esearch sort order, e.g. relevance or pub_date.
	Sort string
}

// Term appends the publication date range to query.
func (o HarvestOptions) Term(query string) string {
	if o.StartDate == "" && o.EndDate == "" {
		return query
	}
	start, end := o.StartDate, o.EndDate
	if start == "" {
		start = "1800/01/01"
	}
	if end == "" {
		end = "3000/12/31"
	}
	return fmt.Sprintf(`(%s) AND ("%s"[PDAT] : "%s"[PDAT])`, query, start, end)
}

// Fetcher pages through esearch results. Records carry only their PMID.
func (c *Client) Fetcher(opts HarvestOptions) harvest.Fetcher[Article] {
	return func(ctx context.Context, query string, maxRecords int) (harvest.Result[Article], error) {
		term := opts.Term(query)
		pager := harvest.PagerFunc[Article](func(ctx context.Context, cur harvest.Cursor) (*harvest.Page[Article], error) {
			page, err := c.ESearch(ctx, term, opts.Sort, cur.Offset, cur.Limit)
			if err != nil || page == nil {
				return nil, err
			}
			recs := make([]Article, 0, len(page.IDs))
			for _, id := range page.IDs {
				recs = append(recs, Article{PMID: id})
			}
			return &harvest.Page[Article]{Records: recs, Total: page.Total}, nil
		})

		return harvest.Collect[Article](ctx, pager, harvest.Options{
			Style:      harvest.OffsetPaging,
			PageSize:   pageSize,
			MaxRecords: maxRecords,
			Ceiling:    searchCeiling,
			Logger:     c.logger,
		})
	}
}

// PMIDFetcher returns a fixed list of PMIDs regardless of the query.
func PMIDFetcher(pmids []string) harvest.Fetcher[Article] {
	return func(ctx context.Context, _ string, maxRecords int) (harvest.Result[Article], error) {
		recs := make([]Article, 0, len(pmids))
		for _, id := range pmids {
			if id = strings.TrimSpace(id); id != "" {
				recs = append(recs, Article{PMID: id})
			}
		}
		if maxRecords > 0 && len(recs) > maxRecords {
			recs = recs[:maxRecords]
		}
		return harvest.Result[Article]{Records: recs, Total: len(recs), Pages: 1}, nil
	}
}
