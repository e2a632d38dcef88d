// Package dashboard serves Couchlog's read-only JSON API: watch history,
// streaks, series progress, the live now-playing feed, and metrics.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/couchlog/couchlog/internal/metrics"
	"github.com/couchlog/couchlog/internal/tracker"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NowPlayingSource provides the tracker's active-session snapshot.
type NowPlayingSource interface {
	NowPlaying() []tracker.ActiveSession
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB      *gorm.DB
	Port    int
	Tracker NowPlayingSource // nil serves an empty now-playing list
	Metrics *metrics.Metrics // nil disables /metrics
	Out     io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("dashboard: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8088
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts.DB, opts.Tracker)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
