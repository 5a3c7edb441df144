package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chaincore/internal/config"
	"github.com/roach88/chaincore/internal/dna"
	"github.com/roach88/chaincore/internal/instance"
	"github.com/roach88/chaincore/internal/ir"
	"github.com/roach88/chaincore/internal/logging"
	"github.com/roach88/chaincore/internal/metrics"
	"github.com/roach88/chaincore/internal/scheduled"
	"github.com/roach88/chaincore/internal/storage"
	"github.com/roach88/chaincore/internal/workflow"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an instance",
		Long: `Start an instance with its dispatch loop and maintenance scheduler.

Without --config every setting takes its default: in-memory storage, a
fresh in-memory network and no metrics endpoint. When the configuration
names a DNA file it is loaded and genesis runs on every start. State is
not rebuilt from persistent storage, so each start begins a new chain.

Example:
  chaincore run
  chaincore run --config ./chaincore.toml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstance(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to TOML configuration")
	return cmd
}

func loadRunConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		cfg.Network.Name = config.UniqueNetworkName()
		return cfg, nil
	}
	return config.LoadConfig(path)
}

func runInstance(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadRunConfig(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}

	log, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(log)

	if err := cfg.EnsureDataDirs(); err != nil {
		return WrapExitError(ExitCommandError, "failed to create data directories", err)
	}
	stores, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("error closing storage", "error", err)
		}
	}()
	log.Info("storage ready", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)

	var m metrics.Metrics = metrics.NewNopMetrics()
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		pm := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		m = pm
		mux := http.NewServeMux()
		mux.Handle("/metrics", pm.HTTPHandler())
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
		log.Info("metrics listening", "addr", cfg.Metrics.ListenAddr)
	}

	inst := instance.New(instance.Options{
		Name:             cfg.Instance.Name,
		Agent:            ir.FakeAgentID(cfg.Instance.Agent),
		Storage:          stores,
		Network:          cfg.Network,
		StateDumpLogging: cfg.Instance.StateDumpLogging,
		Logger:           log,
		Metrics:          m,
	})

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst.Start(ctx)
	defer func() {
		inst.Stop()
		<-inst.Done()
	}()

	if cfg.Instance.DNAPath != "" {
		if err := genesis(inst.Context(), cfg.Instance.DNAPath); err != nil {
			return WrapExitError(ExitFailure, "genesis failed", err)
		}
	}

	sched := scheduled.NewScheduler(inst.Context(), scheduled.Options{
		Interval:           cfg.Scheduler.Interval.Duration(),
		MaxPendingAttempts: cfg.Scheduler.MaxPendingAttempts,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Instance %s started. Press Ctrl-C to stop.\n", cfg.Instance.Name)

	err = sched.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "instance error", err)
	}
	log.Info("instance stopped gracefully")
	return nil
}

// genesis loads the DNA at path and writes the genesis entries.
func genesis(c *instance.Context, path string) (err error) {
	d, err := dna.Load(path)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			fe, ok := instance.AsFatal(r)
			if !ok {
				panic(r)
			}
			err = fe
		}
	}()

	token, err := workflow.Genesis(c, d)
	if err != nil {
		return err
	}
	c.Logger().Info("dna loaded", "dna", d.Name, "address", d.Address().Short(), "public_token", token.Short())
	return nil
}
