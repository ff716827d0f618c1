// Package app wires the configured components together and runs update
// checks either once or on a schedule.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"steamwatch/internal/apperr"
	"steamwatch/internal/checker"
	"steamwatch/internal/config"
	"steamwatch/internal/httpx"
	"steamwatch/internal/marker"
	"steamwatch/internal/runtime/supervisor"
	"steamwatch/internal/schedule"
	"steamwatch/internal/steam"
	"steamwatch/pkg/logx"
)

const stopTimeout = 10 * time.Second

var (
	ErrNoSchedule = errors.New("daemon mode needs a schedule")
	ErrClosed     = errors.New("app closed")
)

type App struct {
	cfgm *config.Manager
	root logx.Logger
	log  logx.Logger
	logs *logx.Service

	// hc is shared by every component so connections are reused.
	hc *http.Client

	// runMu serializes cycles with component swaps on reload.
	runMu sync.Mutex
	cfg   *config.Config
	comps *components

	// notify reports service state to systemd. Replaced in tests.
	notify func(state string) (bool, error)
}

// components is everything one cycle needs, built from one config.
type components struct {
	appID   string
	checker *checker.Checker
	store   marker.Store
}

func (c *components) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

// New loads the configuration through cfgm and builds the components.
// Configuration problems come back as *apperr.ConfigError.
func New(cfgm *config.Manager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm: cfgm,
		root: log,
		log:  log.With(logx.String("comp", "app")),
		logs: logSvc,
		hc:   &http.Client{},
		cfg:  cfg,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
	comps, err := a.build(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.comps = comps
	return a, nil
}

func (a *App) build(cfg *config.Config) (*components, error) {
	timeout, err := mapTimeout(cfg)
	if err != nil {
		return nil, err
	}
	hx := httpx.New(a.hc, timeout, cfg.UserAgent)

	mc, err := mapMarkerConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := marker.Open(mc, hx, a.root)
	if err != nil {
		return nil, fmt.Errorf("open marker store: %w", err)
	}

	out, err := buildSink(cfg, hx, a.root)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build sink: %w", err)
	}
	cc, err := mapCheckerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	src := steam.New(hx, cfg.Feed.BaseURL, cfg.Feed.Count, a.root.With(logx.String("comp", "steam")))
	chk, err := checker.New(cc, src, store, out, a.root)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a.log.Debug("components built",
		logx.String("app_id", cfg.AppID),
		logx.String("marker", mc.Driver),
		logx.String("sink", cfg.Sink.Kind),
		logx.Duration("timeout", timeout),
	)
	return &components{appID: cfg.AppID, checker: chk, store: store}, nil
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Config() *config.Config {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.cfg
}

// RunOnce performs one check cycle.
func (a *App) RunOnce(ctx context.Context) (checker.Result, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.comps == nil {
		return checker.Result{}, ErrClosed
	}
	return a.comps.checker.CheckAndNotify(ctx, a.comps.appID)
}

// cycle is the scheduled job: failures are logged and the daemon goes on.
func (a *App) cycle(ctx context.Context) {
	start := time.Now()
	res, err := a.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.log.Error("check failed", logx.Err(err), logx.String("kind", errKind(err)), logx.Duration("took", time.Since(start)))
		return
	}
	a.log.Debug("check finished",
		logx.String("status", string(res.Status)),
		logx.String("gid", res.Entry.ID),
		logx.Duration("took", time.Since(start)),
	)
}

// errKind names the failure class for the log.
func errKind(err error) string {
	switch {
	case apperr.IsTransport(err):
		return "transport"
	case apperr.IsParse(err):
		return "parse"
	case apperr.IsConfig(err):
		return "config"
	default:
		return "other"
	}
}

// Daemon runs a cycle right away and then on the configured schedule until
// ctx is done. The config file is watched and valid edits are applied
// between cycles.
func (a *App) Daemon(ctx context.Context) error {
	cfg := a.Config()
	if strings.TrimSpace(cfg.Schedule) == "" {
		return ErrNoSchedule
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(a.root.With(logx.String("comp", "supervisor"))))
	runner := schedule.NewRunner(a.root)
	if err := runner.Set(sup.Context(), cfg.Schedule, cfg.Timezone, a.cycle); err != nil {
		sup.Cancel()
		return err
	}

	sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	sub := a.cfgm.Subscribe(4)
	sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.apply(ctx, runner, newCfg)
			}
		}
	})

	a.sdNotify(daemon.SdNotifyReady)
	a.log.Info("daemon started",
		logx.String("schedule", cfg.Schedule),
		logx.Time("next", runner.Next()),
		logx.String("config", a.cfgm.Path()),
	)
	a.cycle(sup.Context())

	<-sup.Context().Done()
	a.sdNotify(daemon.SdNotifyStopping)
	a.log.Info("daemon stopping")
	runner.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := sup.Stop(stopCtx); err != nil {
		a.log.Warn("daemon stopped uncleanly", logx.Err(err))
	}
	return nil
}

// apply switches to newCfg. When the new components cannot be built the old
// ones stay in service.
func (a *App) apply(ctx context.Context, runner *schedule.Runner, newCfg *config.Config) {
	old := a.Config()
	sections, attrs := config.SummarizeChange(old, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("applying config change", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	a.logs.Apply(mapLoggingConfig(newCfg))

	comps, err := a.build(newCfg)
	if err != nil {
		a.log.Error("config change not applied", logx.Err(err))
		return
	}

	a.runMu.Lock()
	prev := a.comps
	a.comps, a.cfg = comps, newCfg
	a.runMu.Unlock()
	if err := prev.Close(); err != nil {
		a.log.Warn("closing previous marker store", logx.Err(err))
	}

	if newCfg.Schedule == old.Schedule && newCfg.Timezone == old.Timezone {
		return
	}
	if strings.TrimSpace(newCfg.Schedule) == "" {
		a.log.Warn("schedule removed from config; keeping the current one until restart")
		return
	}
	if err := runner.Set(ctx, newCfg.Schedule, newCfg.Timezone, a.cycle); err != nil {
		a.log.Error("reschedule failed", logx.Err(err))
	}
}

func (a *App) sdNotify(state string) {
	if a.notify == nil {
		return
	}
	sent, err := a.notify(state)
	switch {
	case err != nil:
		a.log.Warn("systemd notify failed", logx.Err(err))
	case sent:
		a.log.Debug("systemd notified", logx.String("state", strings.TrimSpace(state)))
	}
}

func (a *App) Close() error {
	a.runMu.Lock()
	comps := a.comps
	a.comps = nil
	a.runMu.Unlock()

	err := comps.Close()
	if a.logs != nil {
		err = errors.Join(err, a.logs.Close())
	}
	return err
}
