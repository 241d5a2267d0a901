package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/zerologr"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	AppName                       = "prime"
	PackageName                   = "github.com/memes/prime/cmd/prime"
	DefaultOTLPTraceSamplingRatio = 0.5
	VerboseFlagName               = "verbose"
	PrettyFlagName                = "pretty"
	OpenTelemetryTargetFlagName   = "otlp-target"
	InsecureFlagName              = "otlp-insecure"
	AuthorityFlagName             = "otlp-authority"
	SamplingRatioFlagName         = "otlp-sampling-ratio"
	CACertFlagName                = "cacert"
	TLSCertFlagName               = "cert"
	TLSKeyFlagName                = "key"
)

// Version is updated from git tags during build.
var version = "unspecified"

func NewRootCmd() (*cobra.Command, error) {
	cobra.OnInitialize(initConfig)
	rootCmd := &cobra.Command{
		Use:     AppName,
		Version: version,
		Short:   "Find and test large probable primes",
		Long: `Searches for random probable primes of a requested bit length using a pool of
concurrent workers, tests hexadecimal values for primality, and serves both as a REST API.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().CountP(VerboseFlagName, "v", "Enable verbose logging; can be repeated to increase verbosity")
	rootCmd.PersistentFlags().BoolP(PrettyFlagName, "p", false, "Disables structured JSON logging to stderr, making it easier to read")
	rootCmd.PersistentFlags().String(OpenTelemetryTargetFlagName, "", "An optional OpenTelemetry collection target that will receive metrics and traces")
	rootCmd.PersistentFlags().Bool(InsecureFlagName, false, "Disable TLS for OpenTelemetry target")
	rootCmd.PersistentFlags().String(AuthorityFlagName, "", "Set the authoritative name of the OpenTelemetry target for TLS verification, overriding hostname")
	rootCmd.PersistentFlags().Float64(SamplingRatioFlagName, DefaultOTLPTraceSamplingRatio, "Set the OpenTelemetry trace sampling ratio")
	rootCmd.PersistentFlags().StringArray(CACertFlagName, nil, "An optional CA certificate to use for remote TLS verification; can be repeated")
	rootCmd.PersistentFlags().String(TLSCertFlagName, "", "An optional TLS certificate to use")
	rootCmd.PersistentFlags().String(TLSKeyFlagName, "", "An optional TLS private key to use")
	for _, name := range []string{
		VerboseFlagName,
		PrettyFlagName,
		OpenTelemetryTargetFlagName,
		InsecureFlagName,
		AuthorityFlagName,
		SamplingRatioFlagName,
		CACertFlagName,
		TLSCertFlagName,
		TLSKeyFlagName,
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind %s pflag: %w", name, err)
		}
	}
	searchCmd, err := NewSearchCmd()
	if err != nil {
		return nil, err
	}
	testCmd, err := NewTestCmd()
	if err != nil {
		return nil, err
	}
	nextCmd, err := NewNextCmd()
	if err != nil {
		return nil, err
	}
	serverCmd, err := NewServerCmd()
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(searchCmd, testCmd, nextCmd, serverCmd)
	return rootCmd, nil
}

// Determine the outcome of command line flags, environment variables, and an
// optional configuration file to perform initialization of the application. An
// appropriate zerolog will be assigned as the default logr sink.
func initConfig() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zl := zerolog.New(os.Stderr).With().Caller().Timestamp().Logger()
	viper.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetConfigName("." + AppName)
	viper.SetEnvPrefix(AppName)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	verbosity := viper.GetInt(VerboseFlagName)
	switch {
	case verbosity > 2:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case verbosity == 2:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case verbosity == 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}
	if viper.GetBool(PrettyFlagName) {
		zl = zl.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerologr.SetMaxV(verbosity)
	logger = zerologr.New(&zl)
	if err == nil {
		return
	}
	var cfgNotFound viper.ConfigFileNotFoundError
	if !errors.As(err, &cfgNotFound) {
		logger.Error(err, "Error reading configuration file")
	}
}
