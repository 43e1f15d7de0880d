package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gestured/internal/archive"
	"gestured/internal/config"
	"gestured/internal/engine"
	"gestured/internal/health"
	"gestured/internal/ipc"
	"gestured/internal/logging"
	"gestured/internal/metrics"
	"gestured/internal/profile"
	"gestured/internal/source"
)

// DaemonOptions carries what cmdStart parsed.
type DaemonOptions struct {
	Config     *config.Config
	Version    string
	Source     string
	ReplayPath string
	Seed       int64
}

// Daemon ties the routing engine to its supporting subsystems: profiles,
// archive, health checks, the control socket and an optional sample source.
type Daemon struct {
	cfg *config.Config
	log *logging.Logger
	met *metrics.GesturedMetrics

	engine  *engine.Engine
	watcher *profile.Watcher
	rec     *archive.Recorder
	checker *health.Checker
	server  *ipc.Server
	src     source.Source

	sourceCancel context.CancelFunc
}

// NewDaemon builds every subsystem from the configuration. Nothing starts
// running until Run.
func NewDaemon(opts DaemonOptions) (*Daemon, error) {
	cfg := opts.Config

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	logger, err := logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "gestured",
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	logging.SetDefault(logger)

	met := metrics.NewGesturedMetrics(nil)

	gcfg, err := cfg.GestureConfiguration()
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Config{
		ThrottleInterval: cfg.ThrottleInterval(),
		QueueSize:        cfg.Engine.QueueSize,
		NotifyBuffer:     cfg.Engine.NotifyBuffer,
		HistoryCap:       cfg.Engine.HistoryCap,
		StatsWindow:      cfg.Engine.StatsWindow,
		Gestures:         gcfg,
		Logger:           logger.WithComponent("engine").Logger,
		Metrics:          met,
	})
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:    cfg,
		log:    logger,
		met:    met,
		engine: eng,
	}

	if cfg.Archive.Enabled {
		rec, err := archive.Open(archive.Config{
			Path:    cfg.Archive.Path,
			Buffer:  cfg.Archive.Buffer,
			Logger:  logger.WithComponent("archive").Logger,
			Metrics: met,
		})
		if err != nil {
			eng.Close()
			return nil, err
		}
		d.rec = rec
		eng.Subscribe(rec.Observer())
	}

	if cfg.Profiles.Watch {
		d.watcher = profile.NewWatcher(profile.WatcherConfig{
			Dir:         cfg.Profiles.Dir,
			Application: cfg.Profiles.Application,
			Debounce:    time.Duration(cfg.Profiles.DebounceMs) * time.Millisecond,
			Logger:      logger.WithComponent("profiles").Logger,
		}, eng)
	}

	d.checker = health.NewChecker()
	d.registerHealthChecks()

	if cfg.IPC.Enabled {
		handler := ipc.NewDaemonHandler(ipc.DaemonHandlerConfig{
			Engine:  eng,
			Archive: d.rec,
			Checker: d.checker,
			Metrics: met,
			Version: opts.Version,
			Logger:  logger.WithComponent("ipc").Logger,
		})

		serverCfg := ipc.DefaultServerConfig(cfg.IPC.SocketPath)
		serverCfg.Version = opts.Version
		serverCfg.MaxConnections = cfg.IPC.MaxConnections
		serverCfg.ReadTimeout = time.Duration(cfg.IPC.TimeoutSec) * time.Second
		serverCfg.Logger = logger.WithComponent("ipc").Logger
		d.server = ipc.NewServer(serverCfg, handler)

		handler.SetBroadcaster(d.server.Broadcast)
		eng.Subscribe(handler.EngineObserver())
	}

	src, err := buildSource(opts, logger)
	if err != nil {
		d.shutdown()
		return nil, err
	}
	d.src = src

	return d, nil
}

// buildSource creates the optional sample source named on the command line.
func buildSource(opts DaemonOptions, logger *logging.Logger) (source.Source, error) {
	switch opts.Source {
	case "", "none":
		return nil, nil
	case "synthetic":
		return source.NewSynthetic(source.SyntheticConfig{
			Seed:   opts.Seed,
			Logger: logger.WithComponent("synthetic").Logger,
		}), nil
	case "replay":
		if opts.ReplayPath == "" {
			return nil, fmt.Errorf("source replay requires -replay <path>")
		}
		return source.NewReplay(source.ReplayConfig{
			Path:   opts.ReplayPath,
			Logger: logger.WithComponent("replay").Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown source %q", opts.Source)
	}
}

func (d *Daemon) registerHealthChecks() {
	d.checker.Register(health.Component{
		Name:     "engine",
		Critical: true,
		Check: func(ctx context.Context) health.CheckResult {
			if !d.engine.Running() {
				return health.Unhealthy("detection stopped")
			}
			return health.Healthy(fmt.Sprintf("%d active", d.engine.ActiveCount()))
		},
	})
	if d.rec != nil {
		d.checker.Register(health.Component{
			Name: "archive",
			Check: func(ctx context.Context) health.CheckResult {
				if err := d.rec.Ping(ctx); err != nil {
					return health.Unhealthy(err.Error())
				}
				return health.Healthy("reachable")
			},
		})
	}
	if d.cfg.Profiles.Watch {
		d.checker.Register(health.Component{
			Name: "profiles",
			Check: func(ctx context.Context) health.CheckResult {
				if d.watcher == nil {
					return health.Unhealthy("watcher not started")
				}
				if err := d.watcher.LastError(); err != nil {
					return health.Degraded(err.Error())
				}
				return health.Healthy(fmt.Sprintf("%d profiles", len(d.watcher.Profiles())))
			},
		})
	}
}

// Run starts every subsystem and blocks until SIGINT or SIGTERM.
func (d *Daemon) Run() error {
	log := d.log.WithComponent("daemon").Logger

	if err := d.engine.Start(); err != nil {
		d.shutdown()
		return err
	}
	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			d.shutdown()
			return err
		}
	}
	if d.server != nil {
		if err := d.server.Start(); err != nil {
			d.shutdown()
			return err
		}
	}
	if d.src != nil {
		ctx, cancel := context.WithCancel(context.Background())
		d.sourceCancel = cancel
		if err := d.src.Start(ctx); err != nil {
			d.shutdown()
			return err
		}
		go d.pump()
	}

	d.checker.SetReady(true)
	log.Info("gestured started",
		"socket", d.cfg.IPC.SocketPath,
		"archive", d.cfg.Archive.Enabled,
		"profiles", d.cfg.Profiles.Dir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down", "signal", sig.String())

	d.shutdown()
	log.Info("gestured stopped")
	return nil
}

// pump moves samples from the source into the engine.
func (d *Daemon) pump() {
	for s := range d.src.Samples() {
		d.engine.Submit(s)
	}
}

// shutdown stops subsystems in reverse dependency order. Safe on a
// partially constructed daemon.
func (d *Daemon) shutdown() {
	d.checker.SetReady(false)

	if d.src != nil {
		if d.sourceCancel != nil {
			d.sourceCancel()
		}
		d.src.Stop()
	}
	if d.server != nil {
		d.server.Stop()
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.engine != nil {
		d.engine.Close()
	}
	if d.rec != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		d.rec.Flush(ctx)
		cancel()
		d.rec.Close()
	}
}
