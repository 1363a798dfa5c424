package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samvad-hq/samvad-feign-proxy/internal/logger"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/proxy"
)

// Recorder turns client call notifications into Prometheus metrics.
type Recorder struct {
	registry *prometheus.Registry

	CallsTotal        *prometheus.CounterVec
	CallDuration      *prometheus.HistogramVec
	CallErrors        *prometheus.CounterVec
	ClientsRegistered prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feignproxy_calls_total",
				Help: "Total number of client calls",
			},
			[]string{"contract", "operation", "method", "status"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feignproxy_call_duration_seconds",
				Help:    "Client call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"contract", "operation"},
		),
		CallErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feignproxy_call_errors_total",
				Help: "Client calls that returned an error",
			},
			[]string{"contract", "operation", "kind"},
		),
		ClientsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "feignproxy_clients_registered",
				Help: "Number of clients in the registry",
			},
		),
	}
	r.registry.MustRegister(
		r.CallsTotal,
		r.CallDuration,
		r.CallErrors,
		r.ClientsRegistered,
		collectors.NewGoCollector(),
	)
	return r
}

// Gatherer exposes the recorder's registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// ObserveCall implements proxy.Observer.
func (r *Recorder) ObserveCall(info proxy.CallInfo) {
	status := "none"
	if info.Status > 0 {
		status = strconv.Itoa(info.Status)
	}
	r.CallsTotal.WithLabelValues(info.Contract, info.Operation, info.Method, status).Inc()
	r.CallDuration.WithLabelValues(info.Contract, info.Operation).Observe(info.Duration.Seconds())
	if info.Err != nil {
		r.CallErrors.WithLabelValues(info.Contract, info.Operation, ErrorKind(info.Err)).Inc()
	}
}

// Server is the metrics HTTP server.
type Server struct {
	server   *http.Server
	log      logger.Logger
	listener net.Listener
}

// NewServer creates a server exposing /metrics and /health.
func NewServer(addr string, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	if log == nil {
		log = logger.NopLogger{}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// SetListener sets a pre-created listener.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start serves in the background.
func (s *Server) Start() error {
	ln := s.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", s.server.Addr); err != nil {
			return err
		}
	}
	s.log.InfoObj("metrics server starting", "metrics_addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.ErrorObj("metrics server error", "error", err.Error())
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.InfoObj("metrics server stopping", "metrics_addr", s.server.Addr)
	return s.server.Shutdown(ctx)
}
