package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/enrule/langbot"

var (
	registerOnce sync.Once

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langbot_decisions_total",
			Help: "Classifier decisions by final stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langbot_actions_total",
			Help: "Moderation actions taken on language mismatches",
		},
		[]string{"action"},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langbot_commands_total",
			Help: "Handled bot commands",
		},
		[]string{"command"},
	)

	messageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "langbot_message_processing_duration_seconds",
			Help:    "Time spent processing messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
)

func register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(decisionsTotal, actionsTotal, commandsTotal, messageProcessingDuration)
	})
}

// Server owns the tracer provider and the metrics endpoint.
type Server struct {
	addr string

	mu       sync.Mutex
	logger   *zap.Logger
	provider *sdktrace.TracerProvider
	srv      *http.Server
}

// NewServer serves /metrics on addr; an empty addr keeps metrics in-process.
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

func (s *Server) getLogEntry() *log.Entry {
	return log.WithField("object", "Observability")
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider != nil {
		return nil
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	s.logger = logger

	register()

	s.provider = sdktrace.NewTracerProvider()
	otel.SetTracerProvider(s.provider)

	if s.addr == "" {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}
	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.getLogEntry().WithField("error", err.Error()).Error("metrics server failed")
		}
	}()
	s.getLogEntry().WithField("addr", listener.Addr().String()).Info("metrics server started")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stopErr error
	if s.srv != nil {
		stopErr = errors.Join(stopErr, s.srv.Shutdown(ctx))
		s.srv = nil
	}
	if s.provider != nil {
		stopErr = errors.Join(stopErr, s.provider.Shutdown(ctx))
		s.provider = nil
	}
	if s.logger != nil {
		_ = s.logger.Sync()
		s.logger = nil
	}
	return stopErr
}

// Tracer returns the process wide tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func RecordDecision(stage, outcome string) {
	decisionsTotal.WithLabelValues(stage, outcome).Inc()
}

func RecordAction(action string) {
	actionsTotal.WithLabelValues(action).Inc()
}

func RecordCommand(command string) {
	commandsTotal.WithLabelValues(command).Inc()
}

// StartMessageProcessing returns a function to record message processing duration
func StartMessageProcessing() func(stage string) {
	started := time.Now()
	return func(stage string) {
		messageProcessingDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	}
}
