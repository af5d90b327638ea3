package debug

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter returns the handler for the debug HTTP server: Prometheus metrics from
// gatherer under /metrics and the pprof endpoints under /debug.
func NewRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Mount("/debug", middleware.Profiler())
	return r
}

// StartUtilities starts the debug HTTP server on localhost:port and shuts it down
// once ctx is cancelled. See https://golang.org/pkg/net/http/pprof/
func StartUtilities(ctx context.Context, logger *logrus.Logger, port int, gatherer prometheus.Gatherer) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting debug server on %s", listenerAddr)

	srv := &http.Server{
		Addr:              listenerAddr,
		Handler:           NewRouter(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("error starting debug server: %s", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
