package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/romanasp/campari/internal/conf"
	"github.com/romanasp/campari/internal/logger"
	metricspkg "github.com/romanasp/campari/internal/observability/metrics"
)

// Endpoint serves the metrics of a long batch run.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates an endpoint for metrics. It fails when the Prometheus
// endpoint is disabled in settings.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Prometheus.Enabled {
		return nil, errors.New("prometheus endpoint not enabled in settings")
	}

	return &Endpoint{
		listenAddress: settings.Telemetry.Prometheus.Listen,
		metrics:       metrics,
	}, nil
}

// Start runs the HTTP server in a goroutine tracked by wg. The server shuts
// down when quitChan is closed.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	e.server = &http.Server{
		Addr:              e.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: metricspkg.ShutdownTimeout,
	}

	wg.Go(func() {
		log.Info("metrics endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() { e.gracefulShutdown(quitChan) })
}

// gracefulShutdown waits for the quit signal and shuts down the server gracefully.
func (e *Endpoint) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	log.Info("stopping metrics endpoint")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		log.Error("metrics endpoint shutdown error", logger.Error(err))
	}
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
