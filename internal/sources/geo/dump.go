package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/blobstore"
	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/ratelimit"
)

// Name identifies the source in configuration, metrics and file names.
const Name = "geo"

const defaultBaseURL = "https://gbnci.cancer.gov/geo"

var baseURL = defaultBaseURL

const (
	// DumpFile is the extracted GEOmetadb file name under the data dir.
	DumpFile = "GEOmetadb.sqlite"
	dumpPath = "/GEOmetadb.sqlite.gz"
	// ArchiveKey is where the compressed dump is kept in the blob store.
	ArchiveKey = "geo/GEOmetadb.sqlite.gz"

	pageSize = 500
)

// ErrDumpUnavailable is returned when the dump could not be downloaded.
var ErrDumpUnavailable = errors.New("GEOmetadb dump unavailable")

// DefaultLimits returns the built-in retry policy.
func DefaultLimits() ratelimit.Config {
	return ratelimit.DefaultConfig()
}

// Downloader fetches the GEOmetadb dump.
type Downloader struct {
	api     *apiclient.Client
	archive blobstore.Store
	logger  *zap.Logger
}

// NewDownloader creates a downloader. archive may be nil.
func NewDownloader(limiter ratelimit.Limiter, opts apiclient.Options, archive blobstore.Store, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	return &Downloader{api: apiclient.New(limiter, opts, logger), archive: archive, logger: logger}
}

// Download writes the extracted dump to dataDir and returns its path. An
// existing dump is kept unless force is set. The compressed file is streamed
// to disk and never held in memory.
func (d *Downloader) Download(ctx context.Context, dataDir string, force bool) (string, error) {
	path := filepath.Join(dataDir, DumpFile)
	if _, err := os.Stat(path); err == nil && !force {
		d.logger.Info("dump already present", zap.String("path", path))
		return path, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	gz := path + ".gz"
	defer os.Remove(gz)

	d.logger.Info("downloading dump", zap.String("url", baseURL+dumpPath))
	resp, err := d.api.Download(ctx, dumpPath, nil, gz)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrDumpUnavailable
	}

	if err := Extract(gz, path); err != nil {
		return "", err
	}

	if d.archive != nil {
		loc, err := archiveFile(ctx, d.archive, ArchiveKey, gz)
		if err != nil {
			return "", err
		}
		d.logger.Info("dump archived", zap.String("location", loc))
	}

	d.logger.Info("dump extracted", zap.String("path", path), zap.Int64("compressed_bytes", resp.Size))
	return path, nil
}

func archiveFile(ctx context.Context, archive blobstore.Store, key, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()
	return archive.Put(ctx, key, f, "application/gzip")
}

// Extract gunzips the file at src into dst through a temporary file.
func Extract(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, zr); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("gunzip dump: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("install dump: %w", err)
	}
	return nil
}

// Searcher runs keyword searches over an opened dump.
type Searcher struct {
	dump   bun.IDB
	logger *zap.Logger
}

// NewSearcher wraps an opened GEOmetadb database.
func NewSearcher(dump bun.IDB, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{dump: dump, logger: logger}
}

func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

func (s *Searcher) query(keyword string) *bun.SelectQuery {
	p := likePattern(keyword)
	return s.dump.NewSelect().
		Model((*GSE)(nil)).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where(`title LIKE ? ESCAPE '\'`, p).
				WhereOr(`summary LIKE ? ESCAPE '\'`, p)
		})
}

// Search returns one page of series whose title or summary contains keyword,
// and the number of matches.
func (s *Searcher) Search(ctx context.Context, keyword string, offset, limit int) ([]GSE, int, error) {
	total, err := s.query(keyword).Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count gse: %w", err)
	}

	var rows []GSE
	if err := s.query(keyword).Order("gse").Offset(offset).Limit(limit).Scan(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("select gse: %w", err)
	}
	return rows, total, nil
}

// Fetch pages through the matching series.
func (s *Searcher) Fetch(ctx context.Context, keyword string, maxRecords int) (harvest.Result[GSE], error) {
	pager := harvest.PagerFunc[GSE](func(ctx context.Context, cur harvest.Cursor) (*harvest.Page[GSE], error) {
		rows, total, err := s.Search(ctx, keyword, cur.Offset, cur.Limit)
		if err != nil {
			return nil, err
		}
		return &harvest.Page[GSE]{Records: rows, Total: total}, nil
	})

	return harvest.Collect[GSE](ctx, pager, harvest.Options{
		Style:      harvest.OffsetPaging,
		PageSize:   pageSize,
		MaxRecords: maxRecords,
		Logger:     s.logger,
	})
}
