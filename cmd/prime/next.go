package main

import (
	"fmt"

	"github.com/memes/prime"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const NextServiceName = "next"

// Implements the next sub-command.
func NewNextCmd() (*cobra.Command, error) {
	nextCmd := &cobra.Command{
		Use:     NextServiceName + " value...",
		Short:   "Find the smallest probable prime greater than each hexadecimal value",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: bindFlags(RoundsFlagName),
		RunE:    nextMain,
	}
	nextCmd.Flags().IntP(RoundsFlagName, "r", prime.DefaultRounds, "The number of Miller-Rabin rounds per candidate")
	return nextCmd, nil
}

// Next sub-command entrypoint.
func nextMain(cmd *cobra.Command, args []string) error {
	rounds := viper.GetInt(RoundsFlagName)
	prime.SetLogger(logger.V(1).WithValues(RoundsFlagName, rounds))
	tester := prime.NewTester(prime.NewWordSource(), rounds)
	for _, arg := range args {
		value, err := prime.ParseHex(arg)
		if err != nil {
			return fmt.Errorf("failed to parse %q: %w", arg, err)
		}
		next, err := tester.NextPrime(cmd.Context(), value)
		if err != nil {
			return fmt.Errorf("failed to find next prime after %q: %w", arg, err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", arg, next.Text()); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}
