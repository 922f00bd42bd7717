package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nextup/internal/core"
)

// StateProvider exposes the read-only queue state served on /queue.
type StateProvider interface {
	Snapshot() core.QueueSnapshot
	IsFetching() bool
}

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
	state   StateProvider
}

type Metrics struct {
	ReplenishTotal    *prometheus.CounterVec
	ReplenishDuration prometheus.Histogram
	ChainResultsTotal *prometheus.CounterVec
	SmartMixTotal     prometheus.Counter
	QueueLength       prometheus.Gauge
	FetchActive       prometheus.Gauge
}

func NewServer(config *core.ServerConfig, state StateProvider, logger *zap.Logger) *Server {
	metrics := &Metrics{
		ReplenishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextup_replenish_total",
				Help: "Total number of auto-queue replenish attempts",
			},
			[]string{"status"},
		),
		ReplenishDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nextup_replenish_duration_seconds",
				Help:    "Time spent replenishing the queue",
				Buckets: prometheus.DefBuckets,
			},
		),
		ChainResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextup_chain_results_total",
				Help: "Recommendation chain outcomes by serving source",
			},
			[]string{"source"},
		),
		SmartMixTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nextup_smart_mix_total",
				Help: "Total number of smart mix generations",
			},
		),
		QueueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nextup_queue_length",
				Help: "Current number of tracks in the playback queue",
			},
		),
		FetchActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nextup_fetch_active",
				Help: "Whether an auto-queue fetch is in flight (0 or 1)",
			},
		),
	}

	prometheus.MustRegister(
		metrics.ReplenishTotal,
		metrics.ReplenishDuration,
		metrics.ChainResultsTotal,
		metrics.SmartMixTotal,
		metrics.QueueLength,
		metrics.FetchActive,
	)

	s := &Server{
		config:  config,
		logger:  logger,
		metrics: metrics,
		state:   state,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok","service":"nextup"}`)); err != nil {
			// Log error if needed, but don't fail the handler
		}
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ready","service":"nextup"}`)); err != nil {
			// Log error if needed, but don't fail the handler
		}
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/queue", s.handleQueue)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>NextUp</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">🎵 NextUp</h1>
    <p>Playback queue and recommendation service</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">🎶 <a href="/queue">Queue</a> - Playback queue state</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`)); err != nil {
			// Log error if needed, but don't fail the handler
		}
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

type queueResponse struct {
	Current       *core.Track  `json:"current"`
	Queue         []core.Track `json:"queue"`
	HistoryLength int          `json:"history_length"`
	Shuffled      bool         `json:"shuffled"`
	RepeatMode    string       `json:"repeat_mode"`
	Fetching      bool         `json:"fetching"`
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	if s.state == nil {
		http.Error(w, "queue state unavailable", http.StatusServiceUnavailable)
		return
	}

	snap := s.state.Snapshot()
	resp := queueResponse{
		Current:       snap.Current,
		Queue:         snap.Queue,
		HistoryLength: snap.HistoryLength,
		Shuffled:      snap.Shuffled,
		RepeatMode:    snap.RepeatMode.String(),
		Fetching:      s.state.IsFetching(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode queue state", zap.Error(err))
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (s *Server) RecordChainResult(source core.RecommendationSource) {
	s.metrics.ChainResultsTotal.WithLabelValues(string(source)).Inc()
}

func (s *Server) RecordReplenish(status string, duration time.Duration) {
	s.metrics.ReplenishTotal.WithLabelValues(status).Inc()
	s.metrics.ReplenishDuration.Observe(duration.Seconds())
}

func (s *Server) RecordSmartMix() {
	s.metrics.SmartMixTotal.Inc()
}

func (s *Server) RecordFetching(active bool) {
	if active {
		s.metrics.FetchActive.Set(1)
	} else {
		s.metrics.FetchActive.Set(0)
	}
}

func (s *Server) SetQueueLength(length int) {
	s.metrics.QueueLength.Set(float64(length))
}
