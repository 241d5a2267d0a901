package main

import (
	"context"
	"fmt"

	"github.com/memes/prime"
	"github.com/memes/prime/pkg/cache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	TestServiceName     = "test"
	RedisTargetFlagName = "redis-target"
)

// Implements the test sub-command.
func NewTestCmd() (*cobra.Command, error) {
	testCmd := &cobra.Command{
		Use:   TestServiceName + " value...",
		Short: "Test hexadecimal values for primality",
		Long: `Runs the Miller-Rabin probabilistic primality test on each hexadecimal value and writes
"value: probably prime" or "value: composite" to stdout. An optional Redis DB can be used to
cache verdicts.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: bindFlags(RoundsFlagName, RedisTargetFlagName),
		RunE:    testMain,
	}
	testCmd.Flags().IntP(RoundsFlagName, "r", prime.DefaultRounds, "The number of Miller-Rabin rounds per value")
	testCmd.Flags().String(RedisTargetFlagName, "", "An optional Redis endpoint to use as a verdict cache")
	return testCmd, nil
}

// Test sub-command entrypoint.
func testMain(cmd *cobra.Command, args []string) error {
	rounds := viper.GetInt(RoundsFlagName)
	redisTarget := viper.GetString(RedisTargetFlagName)
	logger := logger.V(1).WithValues(RoundsFlagName, rounds, RedisTargetFlagName, redisTarget)
	ctx := cmd.Context()
	shutdownFunctions, err := initTelemetry(ctx, TestServiceName, newSampler())
	defer shutdownTelemetry(context.Background(), shutdownFunctions)
	if err != nil {
		return err
	}
	prime.SetLogger(logger)
	var verdicts cache.Cache = cache.NewNoopCache()
	if redisTarget != "" {
		redisCache := cache.NewRedisCache(ctx, redisTarget)
		defer redisCache.Close()
		verdicts = redisCache
	}
	tester := prime.NewTester(prime.NewWordSource(), rounds)
	for _, arg := range args {
		value, err := prime.ParseHex(arg)
		if err != nil {
			return fmt.Errorf("failed to parse %q: %w", arg, err)
		}
		verdict, err := testValue(ctx, tester, verdicts, value)
		if err != nil {
			return err
		}
		if verdict == cache.VerdictPrime {
			verdict = "probably prime"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", arg, verdict); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}

// Returns the cached verdict for value, or runs the tester and caches the result.
func testValue(ctx context.Context, tester *prime.Tester, verdicts cache.Cache, value prime.Int) (string, error) {
	key := cache.VerdictKey(value.Text(), tester.Rounds())
	logger := logger.V(1).WithValues("key", key)
	verdict, err := verdicts.GetValue(ctx, key)
	if err != nil {
		return "", fmt.Errorf("cache %T GetValue method returned an error: %w", verdicts, err)
	}
	if verdict != "" {
		logger.V(1).Info("Cache hit", "verdict", verdict)
		return verdict, nil
	}
	ok, err := tester.ProbablyPrime(ctx, value)
	if err != nil {
		return "", fmt.Errorf("primality test failed: %w", err)
	}
	verdict = cache.VerdictComposite
	if ok {
		verdict = cache.VerdictPrime
	}
	if err := verdicts.SetValue(ctx, key, verdict); err != nil {
		return "", fmt.Errorf("cache %T SetValue method returned an error: %w", verdicts, err)
	}
	logger.V(1).Info("Tested value", "verdict", verdict)
	return verdict, nil
}
