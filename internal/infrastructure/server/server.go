package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	handlers "github.com/GriffinCanCode/chanbridge/internal/api/http"
	"github.com/GriffinCanCode/chanbridge/internal/api/middleware"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/monitoring"
)

// Options wires the admin server.
type Options struct {
	Addr        string
	Channels    handlers.Channels
	Devices     handlers.Devices
	Metrics     *monitoring.Metrics
	Logger      *logging.Logger
	RateLimit   middleware.RateLimitConfig
	CORS        bool
	Development bool
}

// Server wraps the admin HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *logging.Logger
}

// New builds the router and registers every admin route.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("admin")

	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(monitoring.Middleware(metrics))
	if opts.CORS {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}
	if opts.RateLimit.RequestsPerSecond > 0 {
		logger.Info("rate limiting enabled",
			zap.Int("rps", opts.RateLimit.RequestsPerSecond),
			zap.Int("burst", opts.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(opts.RateLimit))
	}

	h := handlers.NewHandlers(opts.Channels, opts.Devices, metrics)

	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/channels", h.ListChannels)
	router.GET("/channels/:index", h.GetChannel)
	router.POST("/channels/:index/unthrottle", h.Unthrottle)

	router.GET("/devices", h.ListDevices)
	router.POST("/devices/:index/attach", h.AttachDevice)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/metrics/json", h.MetricsJSON)

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("admin server listening", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("admin server shutting down")
	return s.http.Shutdown(ctx)
}
