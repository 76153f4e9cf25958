package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fincast-io/fincast/internal/api"
	"github.com/fincast-io/fincast/internal/config"
	"github.com/fincast-io/fincast/internal/forecast/engine"
	"github.com/fincast-io/fincast/internal/forecast/ensemble"
	"github.com/fincast-io/fincast/internal/logger"
	"github.com/fincast-io/fincast/internal/observability"
	"github.com/fincast-io/fincast/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the forecast API daemon",
	Long:  `Start the HTTP API for forecast generation, scenarios, validation, and the run archive.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging.Level)

	eng := engine.New(engineConfig(cfg), log).WithMetrics(observability.Recorder{})
	srv := api.NewServer(eng, log)
	if cfg.API.MetricsEnabled {
		srv.EnableMetrics()
	}

	if cfg.Store.Enabled {
		archive, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer archive.Close()
		srv.SetArchive(archive)
		log.Info().Str("path", cfg.Store.Path).Msg("run archive open")
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("fincastd listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// configPath resolves the --config flag, falling back to the default
// location under the user's home directory.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "fincast.toml"
	}
	return filepath.Join(home, ".fincast", "config.toml")
}

// engineConfig maps the daemon config onto the engine knobs.
func engineConfig(cfg config.Config) engine.Config {
	return engine.Config{
		DefaultHorizon:   cfg.Engine.DefaultHorizonWeeks,
		UseEnsemble:      cfg.Engine.UseEnsemble,
		EnsembleMinWeeks: cfg.Engine.EnsembleMinWeeks,
		Workers:          cfg.Engine.Workers,
		Ensemble:         ensemble.DefaultConfig(),
		AccuracyMinWeeks: engine.DefaultConfig().AccuracyMinWeeks,
	}
}
