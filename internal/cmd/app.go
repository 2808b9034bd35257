package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/chanbridge/internal/api/middleware"
	"github.com/GriffinCanCode/chanbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/chanbridge/internal/domain/registry"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/server"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/wakelock"
	"github.com/GriffinCanCode/chanbridge/internal/providers/terminal"
	"github.com/GriffinCanCode/chanbridge/internal/transport"
	"github.com/GriffinCanCode/chanbridge/internal/transport/loopback"
	"github.com/GriffinCanCode/chanbridge/internal/transport/websocket"
)

const shutdownTimeout = 5 * time.Second

// App is a fully wired bridge process.
type App struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	bridge  *bridge.Bridge
	devices *terminal.Manager
	admin   *server.Server
	descs   []registry.ChannelDescriptor
}

// NewApp wires inhibitor, registry, transport, bridge, devices and admin
// server from cfg.
func NewApp(cfg *config.Config, descs []registry.ChannelDescriptor, logger *logging.Logger) (*App, error) {
	metrics := monitoring.NewMetrics()

	inhibitor, err := newInhibitor(cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := registry.New(cfg.Bridge.MaxChannels)
	if err := reg.Replace(descs); err != nil {
		return nil, fmt.Errorf("channel table: %w", err)
	}

	tr, err := newTransport(cfg, descs, logger)
	if err != nil {
		return nil, err
	}

	br, err := bridge.New(reg, tr, inhibitor, bridge.Config{
		BufferSize:    cfg.Bridge.BufferSize,
		Workers:       cfg.Bridge.Workers,
		InhibitWindow: cfg.Bridge.InhibitWindow,
		KeepOpen:      cfg.Bridge.KeepOpen,
		OpenFailures:  cfg.Bridge.OpenFailures,
		OpenCooldown:  cfg.Bridge.OpenCooldown,
		FaultLogRate:  rate.Limit(cfg.Bridge.FaultLogRate),
	})
	if err != nil {
		return nil, err
	}
	br.WithLogger(logger).WithMetrics(metrics)

	app := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		bridge:  br,
		descs:   descs,
	}

	if cfg.Device.Enabled {
		app.devices = terminal.NewManager(br, terminal.Config{
			Dir:       cfg.Device.Dir,
			Prefix:    cfg.Device.Prefix,
			HighWater: cfg.Device.HighWater,
			LowWater:  cfg.Device.LowWater,
			Retry:     cfg.Device.Retry,
		}).WithLogger(logger)
	}

	if cfg.Admin.Enabled {
		opts := server.Options{
			Addr:     cfg.AdminAddr(),
			Channels: br,
			Metrics:  metrics,
			Logger:   logger,
			RateLimit: middleware.RateLimitConfig{
				RequestsPerSecond: cfg.Admin.RPS,
				Burst:             cfg.Admin.Burst,
			},
			CORS:        cfg.Admin.CORS,
			Development: cfg.Logging.Development,
		}
		if app.devices != nil {
			opts.Devices = app.devices
		}
		app.admin = server.New(opts)
	}

	return app, nil
}

func newInhibitor(cfg *config.Config, logger *logging.Logger) (wakelock.Inhibitor, error) {
	switch cfg.Inhibit.Kind {
	case "sysfs":
		s := wakelock.NewSysfs(afero.NewOsFs(), cfg.Inhibit.SysfsRoot)
		if !s.Available() {
			return nil, fmt.Errorf("%w: %s", wakelock.ErrUnavailable, cfg.Inhibit.SysfsRoot)
		}
		logger.Info("using sysfs wake locks", zap.String("root", cfg.Inhibit.SysfsRoot))
		return s, nil
	case "none":
		return wakelock.Nop{}, nil
	default:
		return wakelock.NewMemory(), nil
	}
}

func newTransport(cfg *config.Config, descs []registry.ChannelDescriptor, logger *logging.Logger) (transport.Transport, error) {
	switch cfg.Transport.Kind {
	case "websocket":
		d := websocket.NewDialer(cfg.Transport.PeerURL, cfg.Transport.Window, cfg.Transport.DialTimeout)
		d.Logger = logger
		logger.Info("using websocket transport", zap.String("peer", cfg.Transport.PeerURL))
		return d, nil
	case "loopback":
		lb := loopback.New()
		for _, desc := range descs {
			lb.Declare(desc.Name, loopback.Options{})
		}
		return lb, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.Transport.Kind)
	}
}

// Bridge returns the wired bridge.
func (a *App) Bridge() *bridge.Bridge { return a.bridge }

// Run starts devices and the admin server, then blocks until ctx is done
// or the admin server fails. Everything is torn down before it returns.
func (a *App) Run(ctx context.Context) error {
	if a.devices != nil {
		if err := a.devices.Start(a.descs); err != nil {
			return multierr.Append(err, a.bridge.Shutdown())
		}
	}

	serveErr := make(chan error, 1)
	if a.admin != nil {
		go func() { serveErr <- a.admin.Run() }()
	}

	a.logger.Info("chanbridge running",
		zap.Int("channels", len(a.descs)),
		zap.String("transport", a.cfg.Transport.Kind),
		zap.Bool("devices", a.devices != nil),
		zap.Bool("admin", a.admin != nil))

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("admin server: %w", err)
		}
	}

	return multierr.Append(runErr, a.shutdown())
}

func (a *App) shutdown() error {
	var errs error
	if a.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.admin.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = multierr.Append(errs, err)
		}
	}
	if a.devices != nil {
		errs = multierr.Append(errs, a.devices.Close())
	}
	return multierr.Append(errs, a.bridge.Shutdown())
}
