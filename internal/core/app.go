// Package core assembles the daemon: config manager, logging, vault,
// schedule, orchestrator, history store and the web mirror, all run under
// one supervisor.
package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/automation"
	"github.com/Srinivas26k/ZoomPollMaster/internal/automation/openai"
	"github.com/Srinivas26k/ZoomPollMaster/internal/automation/script"
	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/eventbus"
	"github.com/Srinivas26k/ZoomPollMaster/internal/orchestrator"
	"github.com/Srinivas26k/ZoomPollMaster/internal/runtime/supervisor"
	"github.com/Srinivas26k/ZoomPollMaster/internal/schedule"
	"github.com/Srinivas26k/ZoomPollMaster/internal/storage"
	"github.com/Srinivas26k/ZoomPollMaster/internal/vault"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

// App owns every long-lived component of the daemon.
type App struct {
	cfgMgr *config.Manager
	logsvc *logx.Service
	log    logx.Logger

	bus   eventbus.Bus
	vault *vault.Vault
	table *schedule.Table
	orch  *orchestrator.Orchestrator
	sched *schedule.Scheduler
	store storage.Store
	web   *webServer
}

// New loads and validates the configuration and wires the components. A
// config error here is fatal: the caller aborts before any scheduling begins.
func New(configPath string) (*App, error) {
	mgr := config.NewManager(configPath)
	cfg, err := mgr.Load()
	if errors.Is(err, fs.ErrNotExist) {
		// First run: materialize the defaults so the user has a file to edit.
		if werr := config.WriteDefault(configPath); werr != nil {
			return nil, fmt.Errorf("create default config: %w", werr)
		}
		cfg, err = mgr.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", configPath, err)
	}
	mgr.SetValidator(func(_ context.Context, c *config.Config) error { return c.Validate() })

	logsvc, rootLog := logx.New(logx.Config{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
		BufferSize: cfg.Logging.BufferSize,
	})
	log := rootLog.With(logx.String("comp", "core"))
	mgr.SetLogger(rootLog.With(logx.String("comp", "config")))

	vaultTTL, _ := config.ParseDurationOrDefault("vault.ttl", cfg.Vault.TTL, vault.DefaultTTL)
	v := vault.New(vault.WithDefaultTTL(vaultTTL))

	var tableOpts []schedule.TableOption
	if cfg.ReschedulePolicy == config.RescheduleFixedRate {
		tableOpts = append(tableOpts, schedule.WithPolicy(schedule.FixedRate))
	}
	table := schedule.NewTable(tableOpts...)

	adapter, err := buildAdapter(cfg, rootLog)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage, rootLog.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	bus := eventbus.New()
	orch := orchestrator.New(adapter, table, v, bus, mgr.Get,
		rootLog.With(logx.String("comp", "orchestrator")),
		orchestrator.WithRetryPolicy(orchestrator.PolicyFromConfig(cfg.Retry)))
	sched := schedule.NewScheduler(table, cfg.CheckEvery(), orch.HandleFire,
		rootLog.With(logx.String("comp", "scheduler")))
	web := newWebServer(orch, logsvc.Ring(), store, mgr.Get,
		rootLog.With(logx.String("comp", "web")))

	return &App{
		cfgMgr: mgr,
		logsvc: logsvc,
		log:    log,
		bus:    bus,
		vault:  v,
		table:  table,
		orch:   orch,
		sched:  sched,
		store:  store,
		web:    web,
	}, nil
}

func buildAdapter(cfg *config.Config, log logx.Logger) (automation.Adapter, error) {
	var adapter automation.Adapter = script.New(cfg, log.With(logx.String("comp", "driver")))
	if cfg.ChatGPTIntegrationMethod == config.GenerateAPI {
		api, err := openai.New(adapter, cfg, log.With(logx.String("comp", "openai")))
		if err != nil {
			return nil, err
		}
		adapter = api
	}
	return adapter, nil
}

// Run blocks until ctx is cancelled or a component fails fatally.
func (a *App) Run(ctx context.Context) error {
	defer a.logsvc.Close()

	cfg := a.cfgMgr.Get()
	a.log.Info("daemon starting",
		logx.String("client", cfg.ZoomClientType),
		logx.String("generation", cfg.ChatGPTIntegrationMethod))

	sup := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	sup.GoRestart("orchestrator", a.orch.Run)
	sup.GoRestart("scheduler", a.sched.Run)
	sup.GoRestart("config-watch", a.cfgMgr.Watch)
	sup.GoRestart("vault-sweep", func(ctx context.Context) error {
		sweep, _ := config.ParseDurationOrDefault("vault.sweep_interval", cfg.Vault.SweepInterval, cfg.CheckEvery())
		return a.vault.Run(ctx, sweep)
	})
	sup.GoRestart("recorder", storage.NewRecorder(a.store, a.bus,
		a.log.With(logx.String("comp", "recorder"))).Run)
	sup.Go0("config-reload", a.reloadLoop)

	a.web.Apply(sup.Context(), cfg.Web)
	notifyReady(a.log)

	<-sup.Context().Done()
	a.log.Info("daemon shutting down")
	notifyStopping(a.log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.web.Stop(shutdownCtx)
	_ = sup.Stop(shutdownCtx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("close history store", logx.Err(err))
	}

	if err := sup.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reloadLoop fans a committed config change out to the components that can
// apply settings live. Intervals picked up here affect entries on their next
// seed; in-flight schedules keep their fire times.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logsvc.Apply(logx.Config{
				Level:      cfg.Logging.Level,
				Console:    cfg.Logging.Console,
				File:       logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
				BufferSize: cfg.Logging.BufferSize,
			})
			a.web.Apply(ctx, cfg.Web)
			a.log.Info("configuration reloaded")
		}
	}
}

// Orchestrator exposes the command surface for embedding callers.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }
