package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	hostinstrumentation "go.opentelemetry.io/contrib/instrumentation/host"
	runtimeinstrumentation "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcinsecure "google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
)

const (
	metricReportingPeriod = 30 * time.Second
)

type shutdownFunction func(context.Context) error

func noopShutdownFunction(_ context.Context) error {
	return nil
}

// Create a new OpenTelemetry resource to describe the source of metrics and traces.
func newTelemetryResource(ctx context.Context, name string) (*resource.Resource, error) {
	logger := logger.V(1).WithValues("name", name)
	logger.Info("Creating new OpenTelemetry resource descriptor")
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for telemetry resource: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(PackageName),
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
			semconv.ServiceInstanceID(id.String()),
		),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithOS(),
		// Some process information is unknown when running in a scratch
		// container.
		resource.WithProcessPID(),
		resource.WithProcessExecutableName(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
		resource.WithProcessRuntimeDescription(),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, fmt.Errorf("failed to create new telemetry resource: %w", err)
	}
	logger.V(1).Info("OpenTelemetry resource created", "resource", res)
	return res, nil
}

// Initializes a periodic reader that will send OpenTelemetry metrics to the
// target provided, returning shutdown functions.
func initMetrics(ctx context.Context, target, authority string, creds credentials.TransportCredentials, res *resource.Resource) ([]shutdownFunction, error) {
	logger := logger.V(1).WithValues("target", target, "authority", authority, "res", res)
	logger.V(1).Info("Creating OpenTelemetry metric handlers")
	if target == "" {
		logger.V(0).Info("OpenTelemetry endpoint is not set; no metrics will be sent to collector")
		return []shutdownFunction{
			noopShutdownFunction,
		}, nil
	}
	options := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(target),
		otlpmetricgrpc.WithCompressor(gzip.Name),
		otlpmetricgrpc.WithTLSCredentials(creds),
	}
	if authority != "" {
		options = append(options, otlpmetricgrpc.WithDialOption(grpc.WithAuthority(authority)))
	}
	exporter, err := otlpmetricgrpc.New(ctx, options...)
	if err != nil {
		return []shutdownFunction{
			noopShutdownFunction,
		}, fmt.Errorf("failed to create new metric exporter: %w", err)
	}
	// NOTE: provider.Shutdown will shutdown the reader and exporter.
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricReportingPeriod))),
	)
	shutdownFuncs := []shutdownFunction{
		func(ctx context.Context) error {
			if err := provider.Shutdown(ctx); err != nil {
				return fmt.Errorf("error during OpenTelemetry meter provider shutdown: %w", err)
			}
			return nil
		},
	}
	if err = runtimeinstrumentation.Start(runtimeinstrumentation.WithMeterProvider(provider)); err != nil {
		return shutdownFuncs, fmt.Errorf("failed to start runtime metrics: %w", err)
	}
	if err = hostinstrumentation.Start(hostinstrumentation.WithMeterProvider(provider)); err != nil {
		return shutdownFuncs, fmt.Errorf("failed to start host metrics: %w", err)
	}

	otel.SetMeterProvider(provider)
	logger.V(1).Info("OpenTelemetry metric handlers created and started")
	return shutdownFuncs, nil
}

// Initializes a pipeline handler that will send OpenTelemetry spans to the target
// provided, returning shutdown functions.
func initTrace(ctx context.Context, target, authority string, creds credentials.TransportCredentials, res *resource.Resource, sampler trace.Sampler) ([]shutdownFunction, error) {
	logger := logger.V(1).WithValues("target", target, "authority", authority, "res", res, "sampler", sampler.Description())
	logger.V(1).Info("Creating new OpenTelemetry trace exporter")
	if target == "" {
		logger.V(0).Info("OpenTelemetry endpoint is not set; no traces will be sent to collector")
		return []shutdownFunction{
			noopShutdownFunction,
		}, nil
	}
	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(target),
		otlptracegrpc.WithCompressor(gzip.Name),
		otlptracegrpc.WithTLSCredentials(creds),
	}
	if authority != "" {
		options = append(options, otlptracegrpc.WithDialOption(grpc.WithAuthority(authority)))
	}
	exporter, err := otlptracegrpc.New(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new trace exporter: %w", err)
	}

	// NOTE: provider.Shutdown will shutdown every registered span processor
	// so don't add an explicit shutdown function.
	provider := trace.NewTracerProvider(
		trace.WithSampler(sampler),
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	shutdownFuncs := []shutdownFunction{
		func(ctx context.Context) error {
			if err := provider.Shutdown(ctx); err != nil {
				return fmt.Errorf("error during OpenTelemetry trace provider shutdown: %w", err)
			}
			return nil
		},
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(provider)
	logger.V(1).Info("OpenTelemetry trace handlers created and started")
	return shutdownFuncs, nil
}

// Returns the trace sampler to use for the configured sampling ratio, honoring
// any sampling decision made by a remote parent.
func newSampler() trace.Sampler {
	return trace.ParentBased(trace.TraceIDRatioBased(viper.GetFloat64(SamplingRatioFlagName)))
}

// Initializes OpenTelemetry metric and trace processing and delivery to a
// collector target, returning a list of functions that can be called to
// shutdown the background pipeline processes.
func initTelemetry(ctx context.Context, name string, sampler trace.Sampler) ([]shutdownFunction, error) {
	otel.SetLogger(logger)
	target := viper.GetString(OpenTelemetryTargetFlagName)
	authority := viper.GetString(AuthorityFlagName)
	files := tlsFilesFromConfig()
	insecure := viper.GetBool(InsecureFlagName)
	logger := logger.V(1).WithValues(
		"name", name,
		"target", target,
		"authority", authority,
		"cacerts", files.cacerts,
		"cert", files.certFile,
		"key", files.keyFile,
		"insecure", insecure,
		"sampler", sampler.Description(),
	)
	logger.Info("Initializing OpenTelemetry")
	shutdownFunctions := []shutdownFunction{}

	res, err := newTelemetryResource(ctx, name)
	if err != nil {
		return nil, err
	}

	var creds credentials.TransportCredentials
	if insecure {
		creds = grpcinsecure.NewCredentials()
	} else {
		tlsConfig, err := files.clientConfig(authority)
		if err != nil {
			return nil, err
		}
		creds = credentials.NewTLS(tlsConfig)
	}

	shutdownMetrics, err := initMetrics(ctx, target, authority, creds, res)
	if err != nil {
		return shutdownMetrics, err
	}
	shutdownFunctions = append(shutdownMetrics, shutdownFunctions...)
	shutdownTraces, err := initTrace(ctx, target, authority, creds, res, sampler)
	shutdownFunctions = append(shutdownTraces, shutdownFunctions...)
	if err != nil {
		return shutdownFunctions, err
	}
	logger.Info("OpenTelemetry initialization complete, returning shutdown functions")
	return shutdownFunctions, nil
}

// Calls each shutdown function in turn, logging any errors.
func shutdownTelemetry(ctx context.Context, shutdownFunctions []shutdownFunction) {
	for _, fn := range shutdownFunctions {
		if err := fn(ctx); err != nil {
			logger.Error(err, "Error raised while shutting down telemetry; continuing")
		}
	}
}
