package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/memes/prime"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	SearchServiceName = "search"
	BitsFlagName      = "bits"
	WorkersFlagName   = "workers"
	RoundsFlagName    = "rounds"
	CountFlagName     = "count"
	DefaultBits       = 512
)

// Implements the search sub-command.
func NewSearchCmd() (*cobra.Command, error) {
	searchCmd := &cobra.Command{
		Use:   SearchServiceName,
		Short: "Search for random probable primes",
		Long: `Searches for random probable primes of exactly the requested number of bits.

Each search races a pool of workers that generate random odd candidates and test them with
Miller-Rabin; the first worker to find a prime cancels the others. Found primes are written to
stdout in hexadecimal, one per line.`,
		Args:    cobra.NoArgs,
		PreRunE: bindFlags(BitsFlagName, WorkersFlagName, RoundsFlagName, CountFlagName),
		RunE:    searchMain,
	}
	searchCmd.Flags().IntP(BitsFlagName, "b", DefaultBits, "The bit length of primes to find")
	searchCmd.Flags().IntP(WorkersFlagName, "w", prime.DefaultWorkers(), "The number of concurrent workers per search")
	searchCmd.Flags().IntP(RoundsFlagName, "r", prime.DefaultRounds, "The number of Miller-Rabin rounds per candidate")
	searchCmd.Flags().IntP(CountFlagName, "c", 1, "The number of primes to find")
	return searchCmd, nil
}

// Search sub-command entrypoint.
func searchMain(cmd *cobra.Command, _ []string) error {
	bits := viper.GetInt(BitsFlagName)
	workers := viper.GetInt(WorkersFlagName)
	rounds := viper.GetInt(RoundsFlagName)
	count := viper.GetInt(CountFlagName)
	logger := logger.V(1).WithValues(BitsFlagName, bits, WorkersFlagName, workers, RoundsFlagName, rounds, CountFlagName, count)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.V(0).Info("Preparing telemetry")
	shutdownFunctions, err := initTelemetry(ctx, SearchServiceName, newSampler())
	defer shutdownTelemetry(context.Background(), shutdownFunctions)
	if err != nil {
		return err
	}
	prime.SetLogger(logger)
	searcher, err := prime.NewSearcher(
		prime.WithLogger(logger),
		prime.WithWorkers(workers),
		prime.WithRounds(rounds),
	)
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}
	for i := 0; i < count; i++ {
		result, err := searcher.Search(ctx, bits)
		if err != nil {
			return fmt.Errorf("search %d failed: %w", i, err)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), result.Text()); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}
