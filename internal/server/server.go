package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/livedemo/internal/api/http"
	"github.com/GriffinCanCode/livedemo/internal/api/middleware"
	"github.com/GriffinCanCode/livedemo/internal/api/ws"
	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/compiler"
	"github.com/GriffinCanCode/livedemo/internal/config"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livedemo/internal/livedemo"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/render"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/internal/shared/paths"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	catalogue *livedemo.Catalogue
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
	registry  *prometheus.Registry
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	// Sandbox console output goes through the global logger
	zap.ReplaceGlobals(logger.Logger)

	layout, err := resolvePaths(cfg)
	if err != nil {
		return nil, err
	}
	if file, err := paths.FindConfigFile(layout.Cwd, cfg.Paths.ConfigFile); err == nil {
		logger.Info("Using project config", zap.String("file", file))
	} else {
		logger.Debug("No project config file", zap.Error(err))
	}

	logger.Info("Initializing live demo server",
		zap.String("port", cfg.Server.Port),
		zap.String("cwd", layout.Cwd),
		zap.String("env", cfg.Paths.Env),
		zap.String("frame_host", cfg.Demo.FrameHost),
	)

	// Initialize metrics first (needed by other components)
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	demos, err := loadDemos(cfg, layout, logger)
	if err != nil {
		return nil, err
	}

	// Optional compile service
	var comp compiler.Compiler
	if cfg.Compiler.URL != "" {
		remote := compiler.NewRemote(compiler.RemoteConfig{
			URL:     cfg.Compiler.URL,
			Retries: cfg.Compiler.Retries,
			Timeout: cfg.Compiler.Timeout,
		})
		comp = compiler.Guard(remote, newCompilerBreaker(cfg.Compiler, logger, metrics))
		logger.Info("Compiling demo sources remotely", zap.String("url", cfg.Compiler.URL))
	}

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Timeout = cfg.Demo.SandboxTimeout

	catalogue := livedemo.NewCatalogue(demos, livedemo.Options{
		Render:        livedemo.RenderOptions{Compiler: comp},
		Wait:          cfg.Demo.ThrottleWait,
		BridgeTimeout: cfg.Demo.BridgeTimeout,
		Sandbox:       sandboxCfg,
		Logger:        logger,
		Metrics:       metrics,
	}, frameFactory(cfg.Demo.FrameHost, comp, sandboxCfg, logger))

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.Middleware())
	router.Use(middleware.Logger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	handlers := apihttp.NewHandlers(catalogue, logger)
	wsHandler := ws.NewHandler(catalogue, metrics, logger)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	api := router.Group("/api/demos")
	api.GET("", handlers.ListDemos)
	api.GET("/:id", handlers.GetDemo)
	api.DELETE("/:id", handlers.CloseDemo)
	api.GET("/:id/frame", wsHandler.HandleFrame)

	// Edits are the only route that schedules sandbox work
	edits := api.Group("")
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		edits.Use(middleware.RateLimit(rl))
	}
	edits.POST("/:id/source", handlers.SetSource)

	logger.Info("Server initialized successfully", zap.Int("demos", len(demos)))

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		catalogue: catalogue,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
		registry:  registry,
	}, nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Catalogue returns the demo catalogue
func (s *Server) Catalogue() *livedemo.Catalogue {
	return s.catalogue
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then closes every open demo
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.catalogue.CloseAll(); err != nil {
		errs = append(errs, fmt.Errorf("close demos: %w", err))
	}

	// Sync logger before exit
	_ = s.logger.Sync()
	return errors.Join(errs...)
}

func resolvePaths(cfg *config.Config) (paths.Paths, error) {
	cwd := cfg.Paths.Cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return paths.Paths{}, fmt.Errorf("working directory: %w", err)
		}
		cwd = wd
	}
	return paths.Resolve(cwd, cfg.Paths.Env)
}

// loadDemos reads the demo manifests. A missing default directory yields an
// empty catalogue; a missing configured directory is an error.
func loadDemos(cfg *config.Config, layout paths.Paths, logger *logging.Logger) ([]*demo.Demo, error) {
	dir := cfg.Demo.Dir
	if dir == "" {
		dir = layout.DemosDir()
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			logger.Warn("No demo directory, starting with an empty catalogue", zap.String("dir", dir))
			return nil, nil
		}
	}

	demos, err := demo.LoadDir(dir, render.HostModules())
	if err != nil {
		return nil, fmt.Errorf("failed to load demos from %s: %w", dir, err)
	}
	logger.Info("Loaded demos", zap.String("dir", dir), zap.Int("count", len(demos)))
	return demos, nil
}

// frameFactory hosts iframe demos in-process or behind a websocket relay
func newCompilerBreaker(cfg config.CompilerConfig, logger *logging.Logger, metrics *monitoring.Metrics) *resilience.Breaker {
	threshold := uint32(cfg.BreakerFailures)
	return resilience.New("compiler", resilience.Settings{
		Cooldown:  cfg.BreakerCooldown,
		IsFailure: compiler.IsOutage,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.SetBreakerState(name, int(to))
			logger.Warn("Compile service breaker changed state",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

func frameFactory(host string, comp compiler.Compiler, sandboxCfg sandbox.Config, logger *logging.Logger) livedemo.FrameFactory {
	if host == config.FrameHostRelay {
		return func(d *demo.Demo) (bridge.Frame, error) {
			return bridge.NewRelay(logger.ForDemo(d.ID)), nil
		}
	}
	return func(d *demo.Demo) (bridge.Frame, error) {
		return bridge.NewLocalFrame(bridge.LocalConfig{
			ID:       d.ID.String(),
			Asset:    d.Asset,
			Context:  d.Context,
			Compiler: comp,
			Sandbox:  sandboxCfg,
			Logger:   logger.ForDemo(d.ID),
		})
	}
}
