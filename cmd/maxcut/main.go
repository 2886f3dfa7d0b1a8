// Package main runs one QAOA Max-Cut experiment and prints its report.
//
// The pipeline encodes the graph as a cost Hamiltonian, builds the QAOA ansatz,
// compiles it for the least busy device, optimizes the angles with the estimator,
// samples the optimized circuit and decodes the most likely cut. Plots of the cost
// history and the outcome distribution are written as PNG files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/config"
	"github.com/aristath/qaoa/internal/di"
	"github.com/aristath/qaoa/internal/modules/account"
	"github.com/aristath/qaoa/pkg/logger"
)

func main() {
	graphFile := flag.String("graph", "", "JSON graph file (default: built-in five-node graph)")
	outDir := flag.String("out", "", "directory for plots (default: <data dir>/plots)")
	backend := flag.String("backend", "", "\"local\", \"cloud\" or a backend name (overrides QAOA_BACKEND)")
	saveAccount := flag.Bool("save-account", false, "save the IBM_* credentials as the default account and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *graphFile != "" {
		cfg.GraphFile = *graphFile
	}
	if *backend != "" {
		cfg.Experiment.Backend = *backend
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if *saveAccount {
		if err := saveCredentials(cfg, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to save account")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *outDir, log); err != nil {
		stop()
		log.Fatal().Err(err).Msg("Experiment failed")
	}
}

func run(ctx context.Context, cfg *config.Config, outDir string, log zerolog.Logger) error {
	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	report, err := container.ExperimentService.Run(ctx, container.Graph)
	if err != nil {
		return err
	}

	if err := report.Print(os.Stdout); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}

	if outDir == "" {
		outDir = cfg.PlotDir()
	}
	var costs []float64
	if report.Trace != nil {
		costs = report.Trace.Values
	}
	paths, err := container.ChartService.SaveReportPlots(outDir, costs, report.BinaryDistribution)
	if err != nil {
		return err
	}
	log.Info().Strs("plots", paths).Str("run_id", report.RunID).Msg("Experiment finished")
	return nil
}

// saveCredentials stores the environment credentials under the configured account name.
// Re-running with the same credentials is a no-op.
func saveCredentials(cfg *config.Config, log zerolog.Logger) error {
	if cfg.IBM.Token == "" {
		return errors.New("IBM_API_TOKEN is not set")
	}
	store := account.NewStore(cfg.IBM.AccountFile, log)
	err := store.Save(cfg.IBM.AccountName, account.Account{
		Channel:  cfg.IBM.Channel,
		Token:    cfg.IBM.Token,
		Instance: cfg.IBM.Instance,
		URL:      cfg.IBM.URL,
	}, false)
	if errors.Is(err, account.ErrAccountExists) {
		return fmt.Errorf("%w; remove %s to replace it", err, cfg.IBM.AccountFile)
	}
	if err != nil {
		return err
	}
	log.Info().Str("account", cfg.IBM.AccountName).Str("path", cfg.IBM.AccountFile).Msg("Account saved")
	return nil
}
