package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/inputplumber/inputplumber/internal/configsvc"
	"github.com/inputplumber/inputplumber/internal/dbussvc"
	"github.com/inputplumber/inputplumber/internal/manager"
)

// Agent is the daemon's composition root: it owns the configuration
// watcher, the Manager (C7) and, when available, the D-Bus exporter.
type Agent struct {
	config Config

	log       *zap.Logger
	configSvc *configsvc.Service
	mgr       *manager.Manager
	bus       *dbussvc.Service
}

// NewAgent builds an Agent from config. D-Bus export is best-effort: if the
// system bus can't be reached (sandboxed environment, no bus running) the
// daemon still runs its Manager, just without exported composite objects
// and without a bus route for composite configs that request one.
func NewAgent(config Config) (*Agent, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	configSvc := configsvc.New(logger.Named("config"))

	var bus *dbussvc.Service
	var conn *dbus.Conn
	if !config.NoDBus {
		bus, err = dbussvc.New(logger.Named("dbus"))
		if err != nil {
			logger.Warn("D-Bus export unavailable, continuing without it", zap.Error(err))
			bus = nil
		} else {
			conn = bus.Conn()
		}
	}

	mgr := manager.New(logger.Named("manager"), configSvc, config.DevicesDirs, conn)
	if bus != nil {
		bus.AttachManager(mgr)
		if err := bus.ExportManager(); err != nil {
			logger.Warn("failed to export Manager object", zap.Error(err))
		}
	}

	return &Agent{
		config:    config,
		log:       logger,
		configSvc: configSvc,
		mgr:       mgr,
		bus:       bus,
	}, nil
}

func (a *Agent) Close() error {
	if a.bus != nil {
		return a.bus.Close()
	}
	return nil
}

// Run starts the agent and blocks until the context is cancelled.
// Agent startup will fail if the configuration is not valid.
// In case configuration becomes invalid after startup, the manager keeps
// running composites on their last-known-good configuration.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.mgr.Start(groupCtx)
	})
	if a.bus != nil {
		group.Go(func() error {
			return a.runBusSync(groupCtx)
		})
	}

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

// runBusSync periodically re-exports Composite.Device objects to track the
// Manager's running composites, since the Manager has no event hook back
// into the D-Bus layer today.
func (a *Agent) runBusSync(ctx context.Context) error {
	const syncInterval = 2 * time.Second
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.bus.Sync()
		}
	}
}

// Manager exposes the running Manager for the CLI's inspection commands.
func (a *Agent) Manager() *manager.Manager {
	return a.mgr
}
