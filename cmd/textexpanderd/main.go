// textexpanderd - keyboard text expansion daemon
//
// The daemon reads a physical keyboard through evdev, watches for short
// codes from the dictionary and types their expansions through a uinput
// virtual keyboard:
//
//	textexpanderd                      Run with ~/.config/textexpander/config.toml
//	textexpanderd -config <path>       Use another configuration file
//	textexpanderd -device <event node> Read a specific input device
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"textexpander/internal/config"
	"textexpander/internal/dictionary"
	"textexpander/internal/expander"
	"textexpander/internal/expansion"
	"textexpander/internal/health"
	"textexpander/internal/keystroke"
	"textexpander/internal/logging"
	"textexpander/internal/metrics"
	"textexpander/internal/sched"
	"textexpander/internal/store"
	"textexpander/internal/trie"
	"textexpander/internal/watcher"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	device := flag.String("device", "", "evdev node to read (default: autodetect)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("textexpanderd", version)
		return
	}

	if err := run(*configPath, *device); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "textexpanderd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, device string) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", loader.Path(), err)
	}
	defer loader.Close()

	if device != "" {
		cfg.Device.InputPath = device
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logOpts, err := cfg.Logging.Options("textexpanderd")
	if err != nil {
		return err
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	for _, w := range config.Check(cfg).Warnings() {
		logger.Warn("config warning", "field", w.Field, "message", w.Message)
	}

	d, err := newDaemon(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer d.close()

	loader.OnChange(d.configChanged)
	if err := loader.Watch(); err != nil {
		logger.Warn("config file will not be watched", "error", err)
	}

	if err := os.WriteFile(config.PIDFile(), []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		logger.Warn("write pid file", "error", err)
	}
	defer os.Remove(config.PIDFile())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.run(ctx, loader.Errors())
}

type daemon struct {
	cfg    *config.Config
	logger *logging.Logger
	crash  *logging.CrashHandler

	expander *expander.Expander
	engine   *expansion.Engine
	queue    *sched.Queue
	listener *keystroke.Listener
	input    *os.File
	output   *keystroke.Uinput

	store   *store.Store
	journal *store.Journal
	runID   string
	dictW   *watcher.Watcher

	registry   *metrics.Registry
	expMetrics *metrics.ExpanderMetrics
	checker    *health.Checker
	metricsSrv *metrics.Server
	inputErr   atomic.Pointer[error]

	queueCtx    context.Context
	queueCancel context.CancelFunc
}

func newDaemon(cfg *config.Config, logger *logging.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, logger: logger}
	d.queueCtx, d.queueCancel = context.WithCancel(context.Background())

	coord, err := cfg.Expander.Coordinator()
	if err != nil {
		return nil, err
	}
	triggers, err := cfg.Expander.Triggers()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Expander.Engine()
	if err != nil {
		return nil, err
	}
	lay, err := cfg.Expander.KeyboardLayout()
	if err != nil {
		return nil, err
	}

	dict := d.loadDictionary(cfg.Dictionary.Path)
	if dict == nil {
		dict, _, _ = dictionary.Build(&dictionary.Source{})
	}

	d.output, err = keystroke.OpenUinput(cfg.Device.UinputName)
	if err != nil {
		return nil, err
	}
	input, dev, err := keystroke.OpenKeyboard(cfg.Device.InputPath, cfg.Device.UinputName)
	if err != nil {
		d.output.Close()
		return nil, err
	}
	d.input = input
	logger.Info("reading keyboard", "device", dev.Handler, "name", dev.Name)

	d.queue = sched.NewQueue(d.queueCtx)
	d.engine = expansion.NewEngine(opts, d.output, lay, d.queue, logger.WithComponent("engine").Logger)
	d.expander = expander.New(coord, dict, d.engine, lay, d.queue, logger.WithComponent("expander").Logger)
	d.listener = keystroke.NewListener(d.expander, triggers, logger.Logger)

	d.crash = logging.NewCrashHandler(logging.CrashHandlerConfig{
		Dir:     logging.DefaultCrashDir(),
		Version: version,
		Logger:  logger.Logger,
		State:   d.crashState,
	})
	if err := d.crash.CleanupOldCrashReports(30 * 24 * time.Hour); err != nil {
		logger.Debug("crash report cleanup", "error", err)
	}

	if cfg.Journal.Enabled {
		if err := d.openJournal(lay.Name()); err != nil {
			logger.Warn("journal disabled", "error", err)
		}
	}

	d.setupMetrics()

	if cfg.Dictionary.Watch && cfg.Dictionary.Path != "" {
		debounce := time.Duration(cfg.Dictionary.DebounceMs) * time.Millisecond
		w, err := watcher.New([]string{cfg.Dictionary.Path}, debounce)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			logger.Warn("dictionary will not be watched", "error", err)
		} else {
			d.dictW = w
		}
	}
	return d, nil
}

func (d *daemon) setupMetrics() {
	d.registry = metrics.NewRegistry("textexpander")
	d.expMetrics = metrics.NewExpanderMetrics(d.registry)
	metrics.RegisterSnapshot(d.registry, d.expander.Snapshot)
	d.registry.GaugeFunc("listener_forwarded", "Key events forwarded to the coordinator.", func() int64 {
		n, _, _ := d.listener.Stats()
		return int64(n)
	})
	d.registry.GaugeFunc("listener_unmapped", "Key events with no HID mapping.", func() int64 {
		_, n, _ := d.listener.Stats()
		return int64(n)
	})
	d.registry.GaugeFunc("listener_failed", "Key events the coordinator refused.", func() int64 {
		_, _, n := d.listener.Stats()
		return int64(n)
	})

	d.checker = health.NewChecker(version)
	d.checker.Register("input", true, func(context.Context) error {
		if p := d.inputErr.Load(); p != nil {
			return *p
		}
		return nil
	})
	d.checker.Register("queue", false, func(context.Context) error {
		if snap := d.expander.Snapshot(); snap.Queued >= d.cfg.Expander.EventQueueSize {
			return fmt.Errorf("event queue full (%d dropped)", snap.Dropped)
		}
		return nil
	})
	if d.journal != nil {
		d.registry.GaugeFunc("journal_written", "Journal entries written.", func() int64 {
			return int64(d.journal.Written())
		})
		d.registry.GaugeFunc("journal_failed", "Journal entries that could not be written.", func() int64 {
			return int64(d.journal.Failed())
		})
		d.checker.Register("journal", false, d.store.Ping)
	}

	if !d.cfg.Metrics.Enabled {
		return
	}
	srv, err := metrics.Listen(d.cfg.Metrics.Listen, d.registry, map[string]http.Handler{
		"/healthz": d.checker.HealthHandler(),
		"/readyz":  d.checker.ReadinessHandler(),
	}, d.logger.WithComponent("metrics").Logger)
	if err != nil {
		d.logger.Warn("metrics endpoint disabled", "error", err)
		return
	}
	d.metricsSrv = srv
}

func (d *daemon) openJournal(layoutName string) error {
	st, err := store.Open(d.cfg.Journal.Path, store.Options{
		BusyTimeout: time.Duration(d.cfg.Journal.BusyTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	r, err := st.BeginRun(context.Background(), store.Run{
		Version: version,
		Layout:  layoutName,
		OS:      d.engine.OS().String(),
	})
	if err != nil {
		st.Close()
		return err
	}
	d.store = st
	d.runID = r.ID
	d.logger = d.logger.WithContext(logging.ContextWithRun(context.Background(), r.ID))
	d.journal = store.NewJournal(st, r.ID, d.logger.WithComponent("journal").Logger)
	return nil
}

// loadDictionary returns nil when path cannot be used.
func (d *daemon) loadDictionary(path string) *trie.Trie {
	if path == "" {
		return nil
	}
	t, warnings, err := dictionary.Open(path)
	if err != nil {
		d.logger.Error("dictionary not loaded", "path", path, "error", err)
		return nil
	}
	for _, w := range warnings {
		d.logger.Warn("dictionary warning", "detail", w.String())
	}
	d.logger.Info("dictionary loaded", "path", path, "entries", t.Len())
	return t
}

func (d *daemon) run(ctx context.Context, configErrs <-chan error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := map[string]<-chan error{
		"expander": d.crash.Go("expander", func() error { return d.expander.Run(ctx, d.queue.Ready()) }),
		"listener": d.crash.Go("listener", func() error { return d.listener.Listen(ctx, d.input) }),
	}
	if d.journal != nil {
		acts := d.expander.Subscribe()
		workers["journal"] = d.crash.Go("journal", func() error { return d.journal.Consume(ctx, acts) })
	}
	acts := d.expander.Subscribe()
	workers["metrics"] = d.crash.Go("metrics", func() error { return d.expMetrics.Consume(ctx, acts) })
	if d.metricsSrv != nil {
		workers["metrics-http"] = d.crash.Go("metrics-http", d.metricsSrv.Serve)
	}
	d.checker.SetReady(true)

	var dictEvents <-chan watcher.Event
	var dictErrs <-chan error
	if d.dictW != nil {
		dictEvents, dictErrs = d.dictW.Events(), d.dictW.Errors()
	}

	d.logger.Info("textexpanderd started", "version", version, "pid", os.Getpid())

	var result error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-dictEvents:
			if !ok {
				dictEvents = nil
				continue
			}
			if t := d.loadDictionary(ev.Path); t != nil {
				d.expander.SetDictionary(t)
			}
		case err, ok := <-dictErrs:
			if !ok {
				dictErrs = nil
				continue
			}
			d.logger.Warn("dictionary watcher", "error", err)
		case err := <-configErrs:
			d.logger.Warn("config reload rejected", "error", err)
		case err := <-workers["expander"]:
			result = fmt.Errorf("expander worker: %w", err)
			break loop
		case err := <-workers["listener"]:
			if err == nil {
				err = errors.New("input device closed")
			}
			result = fmt.Errorf("listener: %w", err)
			d.inputErr.Store(&result)
			break loop
		}
	}

	d.logger.Info("shutting down")
	d.checker.SetReady(false)
	cancel()
	if d.metricsSrv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		d.metricsSrv.Shutdown(sctx)
		scancel()
	}
	// Closing the device unblocks the pending read.
	d.input.Close()
	for name, ch := range workers {
		select {
		case err := <-ch:
			if err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Warn("worker stopped", "worker", name, "error", err)
			}
		case <-time.After(5 * time.Second):
			d.logger.Warn("worker did not stop", "worker", name)
		}
	}
	if result == nil {
		result = ctx.Err()
	}
	return result
}

// configChanged applies what can change without a restart.
func (d *daemon) configChanged(old, updated *config.Config) {
	if updated.Dictionary.Path != old.Dictionary.Path {
		if t := d.loadDictionary(updated.Dictionary.Path); t != nil {
			d.expander.SetDictionary(t)
		}
	}
	d.logger.Info("configuration reloaded; key bindings and device settings apply after restart")
}

func (d *daemon) crashState() map[string]any {
	snap := d.expander.Snapshot()
	return map[string]any{
		"capacity":       snap.Capacity,
		"active":         snap.Active,
		"state":          snap.State.String(),
		"queued":         snap.Queued,
		"dropped":        snap.Dropped,
		"nodes":          snap.Nodes,
		"journal_run":    d.runID,
		"short_code_len": len(snap.ShortCode),
	}
}

func (d *daemon) close() {
	if d.dictW != nil {
		d.dictW.Stop()
	}
	if d.output != nil {
		if err := d.output.Close(); err != nil {
			d.logger.Warn("close virtual keyboard", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.EndRun(context.Background(), d.runID, time.Now()); err != nil {
			d.logger.Warn("end journal run", "error", err)
		}
		if d.journal != nil {
			d.logger.Info("journal closed", "written", d.journal.Written(), "failed", d.journal.Failed())
		}
		d.store.Close()
	}
	d.queueCancel()
}
