package orangebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Listing is a product with the number of patents and exclusivities on it.
type Listing struct {
	Product
	Patents     int `bun:"patents"`
	Exclusivity int `bun:"exclusivities"`
}

func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

// FindProducts returns products whose ingredient or trade name contains
// keyword, with their patent and exclusivity counts.
func FindProducts(ctx context.Context, db bun.IDB, keyword string, limit int) ([]Listing, error) {
	p := likePattern(keyword)
	var out []Listing
	q := db.NewSelect().
		Model((*Product)(nil)).
		ColumnExpr("p.*").
		ColumnExpr("(SELECT COUNT(*) FROM patents AS pt WHERE pt.appl_type = p.appl_type AND pt.appl_no = p.appl_no AND pt.product_no = p.product_no) AS patents").
		ColumnExpr("(SELECT COUNT(*) FROM exclusivity AS ex WHERE ex.appl_type = p.appl_type AND ex.appl_no = p.appl_no AND ex.product_no = p.product_no) AS exclusivities").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where(`p.ingredient LIKE ? ESCAPE '\'`, p).
				WhereOr(`p.trade_name LIKE ? ESCAPE '\'`, p)
		}).
		Order("p.appl_type", "p.appl_no", "p.product_no")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &out); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return out, nil
}
