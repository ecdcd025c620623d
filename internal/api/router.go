// Package api exposes the write engine over HTTP.
//
//	GET  /healthz    liveness
//	POST /v1/plans   plan a document without touching storage
//	POST /v1/graphs  apply a document in one transaction
//	GET  /v1/runs    recent journal entries
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/seedgraph/internal/graph"
	"github.com/roach88/seedgraph/internal/ir"
)

// MaxBodyBytes bounds a request document.
const MaxBodyBytes = 8 << 20

// Engine plans and applies documents. *engine.Engine implements it.
type Engine interface {
	Plan(spec ir.GraphSpec) (*graph.Plan, error)
	ApplyGraph(ctx context.Context, spec ir.GraphSpec) (*ir.CommitResult, error)
}

// History lists journal entries. *store.Store implements it.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]ir.RunRecord, error)
}

// NewRouter builds the handler tree. runs may be nil, in which case
// /v1/runs is not served.
func NewRouter(eng Engine, runs History, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.POST("/plans", PlanHandler(eng))
		v1.POST("/graphs", ApplyHandler(eng, logger))
		if runs != nil {
			v1.GET("/runs", RunsHandler(runs))
		}
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Serve runs the server until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdown)
	}
}
