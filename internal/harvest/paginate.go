package harvest

import (
	"context"

	"go.uber.org/zap"
)

// Style selects how a pager advances between pages.
type Style int

const (
	// OffsetPaging sends offset and limit; the server reports a total.
	OffsetPaging Style = iota
	// TokenPaging follows an opaque next-page token.
	TokenPaging
	// LinkPaging follows an absolute URL from a Link rel="next" header.
	LinkPaging
)

func (s Style) String() string {
	switch s {
	case OffsetPaging:
		return "offset"
	case TokenPaging:
		return "token"
	case LinkPaging:
		return "link"
	default:
		return "unknown"
	}
}

// UnknownTotal marks a page without a server-reported count.
const UnknownTotal = -1

// Cursor addresses one page request. Offset is used by OffsetPaging, Next by
// the token and link styles; Next is empty on the first request.
type Cursor struct {
	Offset int
	Limit  int
	Next   string
}

// Page is one page of records.
type Page[R any] struct {
	Records []R
	Total   int
	Next    string
}

// Pager fetches one page. A nil page means the source returned no data.
type Pager[R any] interface {
	Page(ctx context.Context, cur Cursor) (*Page[R], error)
}

// PagerFunc adapts a function to Pager.
type PagerFunc[R any] func(ctx context.Context, cur Cursor) (*Page[R], error)

func (f PagerFunc[R]) Page(ctx context.Context, cur Cursor) (*Page[R], error) {
	return f(ctx, cur)
}

// Options control Collect.
type Options struct {
	Style    Style
	PageSize int
	// MaxRecords caps the accumulated records; <= 0 means no caller cap.
	MaxRecords int
	// Ceiling is the deepest record the source will serve; 0 means none.
	Ceiling int
	Logger  *zap.Logger
}

// Result is everything a Collect call accumulated.
type Result[R any] struct {
	Records []R
	Total   int
	Pages   int
}

// Collect pages through p until the source is exhausted or the cap is reached.
func Collect[R any](ctx context.Context, p Pager[R], opts Options) (Result[R], error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}

	limit := opts.MaxRecords
	if opts.Ceiling > 0 && (limit <= 0 || limit > opts.Ceiling) {
		if limit > opts.Ceiling {
			logger.Warn("max records exceeds source ceiling, capping",
				zap.Int("max_records", limit),
				zap.Int("ceiling", opts.Ceiling),
			)
		}
		limit = opts.Ceiling
	}

	res := Result[R]{Total: UnknownTotal}
	cur := Cursor{}
	seen := map[string]bool{}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		size := opts.PageSize
		if limit > 0 {
			if remaining := limit - len(res.Records); remaining < size {
				size = remaining
			}
		}
		cur.Limit = size
		cur.Offset = len(res.Records)

		page, err := p.Page(ctx, cur)
		if err != nil {
			return res, err
		}
		if page == nil || len(page.Records) == 0 {
			break
		}
		res.Pages++
		res.Records = append(res.Records, page.Records...)
		if page.Total >= 0 {
			res.Total = page.Total
		}

		logger.Debug("page fetched",
			zap.Int("page", res.Pages),
			zap.Int("records", len(page.Records)),
			zap.Int("accumulated", len(res.Records)),
			zap.Int("total", res.Total),
		)

		if limit > 0 && len(res.Records) >= limit {
			break
		}
		if res.Total >= 0 && len(res.Records) >= res.Total {
			break
		}

		if opts.Style == OffsetPaging {
			if len(page.Records) < size {
				break
			}
			continue
		}

		if page.Next == "" || seen[page.Next] {
			break
		}
		seen[page.Next] = true
		cur.Next = page.Next
	}

	if limit > 0 && len(res.Records) > limit {
		res.Records = res.Records[:limit]
	}
	return res, nil
}
