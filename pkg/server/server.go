// Package server запускает HTTP API сервиса вместе с сервером метрик
// и корректно останавливает их по сигналу.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"guestrisk/pkg/config"
	"guestrisk/pkg/logger"
	"guestrisk/pkg/metrics"
	"guestrisk/pkg/telemetry"
)

const defaultShutdownTimeout = 30 * time.Second

// ShutdownHook освобождает ресурс при остановке (кэш, лимитер)
type ShutdownHook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// HTTPServer обёртка над http.Server
type HTTPServer struct {
	server        *http.Server
	config        *config.Config
	telemetry     *telemetry.Provider
	metricsServer *http.Server
	hooks         []ShutdownHook

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New создаёт HTTP сервер поверх готового handler
func New(cfg *config.Config, handler http.Handler) *HTTPServer {
	if cfg.HTTP.EnableH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
		logger.Log.Debug("h2c enabled")
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           handler,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
		},
		config: cfg,
		ready:  make(chan struct{}),
	}
}

// OnShutdown регистрирует хук, вызываемый после остановки приёма запросов
func (s *HTTPServer) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.hooks = append(s.hooks, ShutdownHook{Name: name, Fn: fn})
}

// Handler возвращает корневой handler сервера
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Ready закрывается, когда сервер начал слушать порт
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr фактический адрес после старта
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Run запускает сервер и блокируется до SIGINT/SIGTERM
func (s *HTTPServer) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return s.RunContext(ctx)
}

// RunContext запускает сервер и останавливает его при отмене ctx
func (s *HTTPServer) RunContext(ctx context.Context) error {
	s.initTelemetry(ctx)
	s.startMetrics()

	lc := net.ListenConfig{}
	lis, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Starting HTTP server",
			"service", s.config.App.Name,
			"addr", lis.Addr().String(),
			"environment", s.config.App.Environment,
			"version", s.config.App.Version,
			"h2c", s.config.HTTP.EnableH2C,
		)
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	metrics.Get().SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	close(s.ready)

	select {
	case err := <-errCh:
		s.shutdown()
		return err
	case <-ctx.Done():
		logger.Log.Info("Shutdown requested", "reason", context.Cause(ctx))
	}

	return s.shutdown()
}

func (s *HTTPServer) initTelemetry(ctx context.Context) {
	if !s.config.Tracing.Enabled {
		return
	}

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(s.config))
	if err != nil {
		logger.Log.Warn("Failed to init telemetry", "error", err)
		return
	}

	s.telemetry = tp
	logger.Log.Info("Telemetry initialized",
		"endpoint", s.config.Tracing.Endpoint,
		"sample_rate", s.config.Tracing.SampleRate,
	)
}

func (s *HTTPServer) startMetrics() {
	if !s.config.Metrics.Enabled {
		return
	}

	s.metricsServer = metrics.NewMetricsServer(s.config.Metrics.Port, s.config.Metrics.Path)
	go func() {
		logger.Log.Info("Starting metrics server",
			"port", s.config.Metrics.Port,
			"path", s.config.Metrics.Path,
		)
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Metrics server failed", "error", err)
		}
	}()
}

func (s *HTTPServer) shutdown() error {
	timeout := s.config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Log.Warn("Forcing server stop", "error", err)
		_ = s.server.Close()
		errs = append(errs, err)
	} else {
		logger.Log.Info("Server stopped gracefully")
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			logger.Log.Warn("Failed to stop metrics server", "error", err)
		}
	}

	for _, hook := range s.hooks {
		if err := hook.Fn(ctx); err != nil {
			logger.Log.Warn("Shutdown hook failed", "hook", hook.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
		}
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			logger.Log.Warn("Failed to shutdown telemetry", "error", err)
		}
	}

	return errors.Join(errs...)
}
