package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/session-reasoner/internal/config"
	"github.com/danielpatrickdp/session-reasoner/internal/engine"
	"github.com/danielpatrickdp/session-reasoner/internal/logging"
	"github.com/danielpatrickdp/session-reasoner/internal/metrics"
	"github.com/danielpatrickdp/session-reasoner/internal/rules"
	"github.com/danielpatrickdp/session-reasoner/internal/store"
)

var (
	// Global flags
	cfgPath    string
	verbose    bool
	sessionDir string
	dbPath     string
	rulesPath  string

	cfg    *config.Config
	logger *zap.Logger
)

// #region root
var rootCmd = &cobra.Command{
	Use:   "reasoner",
	Short: "Symbolic session reasoner with audited escalation",
	Long: `Runs reasoning turns over durable per-session evidence graphs.

Each turn takes extracted signals, derives mental-state categories with a
bounded rule fixpoint, ranks them with safety first, decides an advisory
escalation level and appends a hash-verified audit record.

Output is advisory only and is not a diagnosis.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("session-dir") {
			cfg.Sessions.Dir = sessionDir
		}
		if cmd.Flags().Changed("db") {
			cfg.Store.DatabasePath = dbPath
		}
		if cmd.Flags().Changed("rules") {
			cfg.Rules.Path = rulesPath
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "reasoner.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&sessionDir, "session-dir", "", "session graph directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "audit log database, empty string disables it (overrides config)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "rule table YAML (overrides config)")

	rootCmd.AddCommand(turnCmd, chatCmd, batchCmd, auditCmd, rulesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("command failed", zap.Error(err))
			_ = logger.Sync()
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// #endregion root

// #region runtime

// runtime is the set of long-lived components a command reasons with.
type runtime struct {
	engine  *engine.Engine
	store   *store.Store
	watcher *rules.Watcher
	server  *http.Server
}

func openRuntime(ctx context.Context) (*runtime, error) {
	rt := &runtime{}
	src, err := rt.ruleSource(ctx)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []engine.Option{
		engine.WithRules(src),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
	}
	if cfg.Store.DatabasePath != "" {
		rt.store, err = store.NewStore(cfg.Store.DatabasePath)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, engine.WithStore(rt.store))
	}

	rt.engine, err = engine.New(cfg.Sessions.Dir, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Metrics.Address != "" {
		rt.serveMetrics(reg)
	}
	return rt, nil
}

func (rt *runtime) ruleSource(ctx context.Context) (engine.RuleSource, error) {
	if cfg.Rules.Path == "" {
		t, err := rules.Default()
		if err != nil {
			return nil, err
		}
		return withPasses(t)
	}
	if !cfg.Rules.Watch {
		t, err := rules.LoadFile(cfg.Rules.Path)
		if err != nil {
			return nil, err
		}
		return withPasses(t)
	}
	w, err := rules.NewWatcher(cfg.Rules.Path, logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	rt.watcher = w
	return w, nil
}

func withPasses(t *rules.Table) (engine.RuleSource, error) {
	if cfg.Rules.MaxPasses == 0 {
		return t, nil
	}
	return t.WithMaxPasses(cfg.Rules.MaxPasses)
}

func (rt *runtime) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	rt.server = &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Address))
}

// Close releases everything openRuntime acquired.
func (rt *runtime) Close() {
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = rt.server.Shutdown(ctx)
		cancel()
	}
	if rt.watcher != nil {
		rt.watcher.Stop()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}
}

// #endregion runtime
