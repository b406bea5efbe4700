// Package server exposes harvest bookkeeping and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/database"
	"github.com/mkoziy/biomed-miners/internal/metrics"
	"github.com/mkoziy/biomed-miners/internal/repositories"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Server serves read-only views of every source database under DataDir.
type Server struct {
	dataDir string
	sources map[string]bool
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a server for the named sources.
func New(dataDir string, sources []string, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		known[s] = true
	}
	return &Server{dataDir: dataDir, sources: known, metrics: m, logger: logger}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	rg := r.Group("/sources/:source")
	rg.GET("/search-terms", s.listSearchTerms)
	rg.GET("/runs", s.listRuns)
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

// withDB opens the source database for the request and runs fn on it.
// Error responses are written here.
func (s *Server) withDB(c *gin.Context, fn func(ctx context.Context, source string, db bun.IDB) error) {
	s.open(c, func(source string) string { return database.Path(s.dataDir, source) }, fn)
}

// withRuns does the same over the run ledger.
func (s *Server) withRuns(c *gin.Context, fn func(ctx context.Context, source string, db bun.IDB) error) {
	s.open(c, func(string) string { return database.RunsPath(s.dataDir) }, fn)
}

func (s *Server) open(c *gin.Context, path func(source string) string, fn func(ctx context.Context, source string, db bun.IDB) error) {
	source := c.Param("source")
	if !s.sources[source] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown source"})
		return
	}

	db, err := database.OpenExisting(path(source), false)
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "source has not been harvested"})
		return
	}
	if err != nil {
		s.logger.Error("open database", zap.String("source", source), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	defer db.Close()

	if err := fn(c.Request.Context(), source, db); err != nil {
		s.logger.Error("query database", zap.String("source", source), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
	}
}

func (s *Server) listSearchTerms(c *gin.Context) {
	s.withDB(c, func(ctx context.Context, _ string, db bun.IDB) error {
		terms, err := repositories.RecentSearchTerms(ctx, db, limitParam(c))
		if err != nil {
			return err
		}
		c.JSON(http.StatusOK, terms)
		return nil
	})
}

func (s *Server) listRuns(c *gin.Context) {
	s.withRuns(c, func(ctx context.Context, source string, db bun.IDB) error {
		runs, err := repositories.RecentRuns(ctx, db, source, c.Query("status"), limitParam(c))
		if err != nil {
			return err
		}
		c.JSON(http.StatusOK, runs)
		return nil
	})
}
