package orangebook

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/models"
)

const (
	separator  = "~"
	insertSize = 500
)

// Row is one record of a data file, keyed by header column.
type Row map[string]string

func (r Row) get(col string) string { return strings.TrimSpace(r[col]) }

func (r Row) ptr(col string) *string { return models.StringPtr(r.get(col)) }

// ReadTable parses a "~" separated file whose first line is the header.
// Quotes are literal. Blank lines are skipped; short lines leave the missing
// columns empty.
func ReadTable(r io.Reader) ([]Row, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		header []string
		rows   []Row
	)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, separator)
		if header == nil {
			for i, f := range fields {
				fields[i] = strings.TrimSpace(strings.TrimPrefix(f, "\ufeff"))
			}
			header = fields
			continue
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(fields) {
				row[col] = fields[i]
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if header == nil {
		return nil, errors.New("read table: no header")
	}
	return rows, nil
}

func readFile(dir, name string) ([]Row, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	rows, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return rows, nil
}

type productKey struct{ applType, applNo, productNo string }

func keyOf(r Row) (productKey, bool) {
	k := productKey{r.get("Appl_Type"), r.get("Appl_No"), r.get("Product_No")}
	return k, k.applType != "" && k.applNo != "" && k.productNo != ""
}

// MapProduct converts a products.txt row.
func MapProduct(r Row, now time.Time) (Product, bool) {
	k, ok := keyOf(r)
	if !ok {
		return Product{}, false
	}
	return Product{
		ApplType:          k.applType,
		ApplNo:            k.applNo,
		ProductNo:         k.productNo,
		Ingredient:        r.ptr("Ingredient"),
		DFRoute:           r.ptr("DF;Route"),
		TradeName:         r.ptr("Trade_Name"),
		Applicant:         r.ptr("Applicant"),
		Strength:          r.ptr("Strength"),
		TECode:            r.ptr("TE_Code"),
		ApprovalDate:      r.ptr("Approval_Date"),
		RLD:               r.ptr("RLD"),
		RS:                r.ptr("RS"),
		Type:              r.ptr("Type"),
		ApplicantFullName: r.ptr("Applicant_Full_Name"),
		UpdatedAt:         now,
	}, true
}

// MapPatent converts a patent.txt row.
func MapPatent(r Row) (Patent, bool) {
	k, ok := keyOf(r)
	if !ok || r.get("Patent_No") == "" {
		return Patent{}, false
	}
	return Patent{
		ApplType:             k.applType,
		ApplNo:               k.applNo,
		ProductNo:            k.productNo,
		PatentNo:             r.get("Patent_No"),
		PatentExpireDateText: r.ptr("Patent_Expire_Date_Text"),
		DrugSubstanceFlag:    r.ptr("Drug_Substance_Flag"),
		DrugProductFlag:      r.ptr("Drug_Product_Flag"),
		PatentUseCode:        r.ptr("Patent_Use_Code"),
		DelistFlag:           r.ptr("Delist_Flag"),
		SubmissionDate:       r.ptr("Submission_Date"),
	}, true
}

// MapExclusivity converts an exclusivity.txt row.
func MapExclusivity(r Row) (Exclusivity, bool) {
	k, ok := keyOf(r)
	if !ok {
		return Exclusivity{}, false
	}
	return Exclusivity{
		ApplType:        k.applType,
		ApplNo:          k.applNo,
		ProductNo:       k.productNo,
		ExclusivityCode: r.ptr("Exclusivity_Code"),
		ExclusivityDate: r.ptr("Exclusivity_Date"),
	}, true
}

// Counts reports one import.
type Counts struct {
	Products    int
	Patents     int
	Exclusivity int
	// Skipped rows lacked their key columns.
	Skipped int
}

// Import loads the extracted files under dir into db in one transaction.
// With refresh every table is emptied first. Otherwise products are upserted
// and the patents and exclusivity of each product in the files are replaced.
// Any failure leaves db as it was.
func Import(ctx context.Context, db *bun.DB, dir string, refresh bool, logger *zap.Logger) (Counts, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var c Counts
	now := time.Now().UTC()

	productRows, err := readFile(dir, ProductsFile)
	if err != nil {
		return c, err
	}
	patentRows, err := readFile(dir, PatentFile)
	if err != nil {
		return c, err
	}
	exclusivityRows, err := readFile(dir, ExclusivityFile)
	if err != nil {
		return c, err
	}

	var (
		products    []Product
		patents     []Patent
		exclusivity []Exclusivity
	)
	seen := map[productKey]bool{}
	for _, r := range productRows {
		p, ok := MapProduct(r, now)
		k := productKey{p.ApplType, p.ApplNo, p.ProductNo}
		if !ok || seen[k] {
			c.Skipped++
			continue
		}
		seen[k] = true
		products = append(products, p)
	}
	for _, r := range patentRows {
		if p, ok := MapPatent(r); ok {
			patents = append(patents, p)
		} else {
			c.Skipped++
		}
	}
	for _, r := range exclusivityRows {
		if e, ok := MapExclusivity(r); ok {
			exclusivity = append(exclusivity, e)
		} else {
			c.Skipped++
		}
	}

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if refresh {
			for _, m := range []any{(*Exclusivity)(nil), (*Patent)(nil), (*Product)(nil)} {
				if _, err := tx.NewDelete().Model(m).Where("1 = 1").Exec(ctx); err != nil {
					return fmt.Errorf("empty table: %w", err)
				}
			}
		} else {
			for k := range seen {
				for _, m := range []any{(*Exclusivity)(nil), (*Patent)(nil)} {
					if _, err := tx.NewDelete().Model(m).
						Where("appl_type = ? AND appl_no = ? AND product_no = ?", k.applType, k.applNo, k.productNo).
						Exec(ctx); err != nil {
						return fmt.Errorf("delete product children: %w", err)
					}
				}
			}
		}

		if err := insertChunks(ctx, tx, products, func(q *bun.InsertQuery) *bun.InsertQuery {
			return q.On("CONFLICT (appl_type, appl_no, product_no) DO UPDATE")
		}); err != nil {
			return fmt.Errorf("insert products: %w", err)
		}
		if err := insertChunks(ctx, tx, patents, nil); err != nil {
			return fmt.Errorf("insert patents: %w", err)
		}
		if err := insertChunks(ctx, tx, exclusivity, nil); err != nil {
			return fmt.Errorf("insert exclusivity: %w", err)
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}

	c.Products, c.Patents, c.Exclusivity = len(products), len(patents), len(exclusivity)
	logger.Info("orange book imported",
		zap.Int("products", c.Products),
		zap.Int("patents", c.Patents),
		zap.Int("exclusivity", c.Exclusivity),
		zap.Int("skipped", c.Skipped),
		zap.Bool("refresh", refresh))
	return c, nil
}

func insertChunks[T any](ctx context.Context, db bun.IDB, rows []T, apply func(*bun.InsertQuery) *bun.InsertQuery) error {
	for start := 0; start < len(rows); start += insertSize {
		end := min(start+insertSize, len(rows))
		chunk := rows[start:end]
		q := db.NewInsert().Model(&chunk)
		if apply != nil {
			q = apply(q)
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
