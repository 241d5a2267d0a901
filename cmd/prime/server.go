package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memes/prime"
	"github.com/memes/prime/pkg/cache"
	"github.com/memes/prime/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	ServerServiceName        = "server"
	RestAddressFlagName      = "rest-address"
	LabelFlagName            = "label"
	MaxBitsFlagName          = "max-bits"
	DefaultRESTListenAddress = ":8080"
	shutdownTimeout          = 60 * time.Second
)

// Implements the server sub-command.
func NewServerCmd() (*cobra.Command, error) {
	serverCmd := &cobra.Command{
		Use:   ServerServiceName,
		Short: "Run a REST service to find and test probable primes",
		Long: `Launches a REST service that can search for random probable primes, test values for
primality, and calculate GCD and modular exponentiation of hexadecimal integers.

An optional Redis DB can be used to cache verdicts and search results. Metrics and traces will be
sent to an OpenTelemetry collection endpoint, if specified.`,
		Args: cobra.NoArgs,
		PreRunE: bindFlags(
			RestAddressFlagName,
			RedisTargetFlagName,
			LabelFlagName,
			MaxBitsFlagName,
			WorkersFlagName,
			RoundsFlagName,
		),
		RunE: serverMain,
	}
	serverCmd.Flags().StringP(RestAddressFlagName, "a", DefaultRESTListenAddress, "Address to listen for REST requests")
	serverCmd.Flags().String(RedisTargetFlagName, "", "An optional Redis endpoint to use as a verdict and search result cache")
	serverCmd.Flags().StringToStringP(LabelFlagName, "l", nil, "An optional label key=value to add to response metadata; can be repeated")
	serverCmd.Flags().Int(MaxBitsFlagName, server.DefaultMaxBits, "The largest prime, in bits, that can be requested")
	serverCmd.Flags().IntP(WorkersFlagName, "w", prime.DefaultWorkers(), "The number of concurrent workers per search")
	serverCmd.Flags().IntP(RoundsFlagName, "r", prime.DefaultRounds, "The number of Miller-Rabin rounds per candidate")
	return serverCmd, nil
}

// Server sub-command entrypoint. This function will launch the REST service
// and block until it is interrupted.
func serverMain(cmd *cobra.Command, _ []string) error {
	restAddress := viper.GetString(RestAddressFlagName)
	redisTarget := viper.GetString(RedisTargetFlagName)
	logger := logger.V(1).WithValues(RestAddressFlagName, restAddress, RedisTargetFlagName, redisTarget)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.V(0).Info("Preparing telemetry")
	shutdownFunctions, err := initTelemetry(ctx, ServerServiceName, newSampler())
	defer shutdownTelemetry(context.Background(), shutdownFunctions)
	if err != nil {
		return err
	}

	logger.V(0).Info("Preparing services")
	options := []server.PrimeServerOption{
		server.WithLogger(logger),
		server.WithAnnotations(viper.GetStringMapString(LabelFlagName)),
		server.WithMaxBits(viper.GetInt(MaxBitsFlagName)),
		server.WithWorkers(viper.GetInt(WorkersFlagName)),
		server.WithRounds(viper.GetInt(RoundsFlagName)),
	}
	if redisTarget != "" {
		redisCache := cache.NewRedisCache(ctx, redisTarget, cache.WithKeyPrefix(AppName+":"))
		defer redisCache.Close()
		options = append(options, server.WithCache(redisCache))
	}
	primeServer, err := server.NewPrimeServer(options...)
	if err != nil {
		return fmt.Errorf("failed to create prime server: %w", err)
	}
	restHandler, err := primeServer.NewRestHandler()
	if err != nil {
		return fmt.Errorf("failed to create new REST handler: %w", err)
	}
	tlsConfig, err := tlsFilesFromConfig().serverConfig()
	if err != nil {
		return err
	}
	restServer := &http.Server{
		Addr:              restAddress,
		Handler:           restHandler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.V(0).Info("Starting REST service")
		var err error
		if tlsConfig != nil {
			err = restServer.ListenAndServeTLS("", "")
		} else {
			err = restServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("restServer listener returned an error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.V(0).Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := restServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown REST service cleanly: %w", err)
		}
		return nil
	})
	return g.Wait() //nolint:wrapcheck // Errors are wrapped by the group functions
}
