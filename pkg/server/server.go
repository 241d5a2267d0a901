// Package server implements a REST service that exposes prime search,
// primality testing and the supporting number theory, with optional
// OpenTelemetry metrics and traces.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/memes/prime"
	cachepkg "github.com/memes/prime/pkg/cache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
)

const (
	// The default name to use when using OpenTelemetry components.
	OpenTelemetryPackageIdentifier = "pkg.server"
	// The default upper limit on requested prime sizes.
	DefaultMaxBits = 4096
)

var (
	// Returned when a prime larger than the server's limit is requested.
	ErrBitsTooLarge = errors.New("requested bit length exceeds server limit")
	// Returned when a requested bit length is not an integer.
	ErrInvalidBits = errors.New("bits must be an integer")
	// Returned when a search result id is unknown.
	ErrSearchNotFound = errors.New("search result not found")
)

// Metadata describes the server instance that produced a response.
type Metadata struct {
	Identity    string            `json:"identity"`
	Tags        []string          `json:"tags,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// PrimeResponse is returned for a successful prime search.
type PrimeResponse struct {
	ID       string    `json:"id"`
	Bits     int       `json:"bits"`
	Prime    prime.Int `json:"prime"`
	Metadata *Metadata `json:"metadata"`
}

// TestResponse is returned for a primality test.
type TestResponse struct {
	Value         prime.Int `json:"value"`
	ProbablyPrime bool      `json:"probablyPrime"`
	Rounds        int       `json:"rounds"`
	Metadata      *Metadata `json:"metadata"`
}

// NextPrimeResponse is returned for a next prime search.
type NextPrimeResponse struct {
	Value    prime.Int `json:"value"`
	Next     prime.Int `json:"next"`
	Metadata *Metadata `json:"metadata"`
}

// GCDResponse is returned for a greatest common divisor calculation.
type GCDResponse struct {
	A        prime.Int `json:"a"`
	B        prime.Int `json:"b"`
	GCD      prime.Int `json:"gcd"`
	Metadata *Metadata `json:"metadata"`
}

// ModExpResponse is returned for a modular exponentiation.
type ModExpResponse struct {
	Base     prime.Int `json:"base"`
	Exponent prime.Int `json:"exponent"`
	Modulus  prime.Int `json:"modulus"`
	Result   prime.Int `json:"result"`
	Metadata *Metadata `json:"metadata"`
}

// ErrorResponse is the body of every unsuccessful REST response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type PrimeServer struct {
	// The logr.Logger implementation to use
	logger logr.Logger
	// An optional cache implementation
	cache cachepkg.Cache
	// Options used to build the searcher
	searcherOptions []prime.SearcherOption
	// The searcher used for prime requests
	searcher *prime.Searcher
	// The number of Miller-Rabin rounds used for test requests
	rounds int
	// The largest prime that can be requested
	maxBits int
	// Holds the instance specific metadata that will be returned in responses
	metadata *Metadata
	// Used to marshal REST responses
	marshaler runtime.Marshaler
	// A histogram for calculation durations
	calculationMs metric.Int64Histogram
	// A counter for the number of errors returned by cache
	cacheErrors metric.Int64Counter
	// A counter for cache hits
	cacheHits metric.Int64Counter
	// A counter for cache misses
	cacheMisses metric.Int64Counter
}

// Defines the function signature for PrimeServer options.
type PrimeServerOption func(*PrimeServer)

// Create a new PrimeServer and apply any options.
//
//nolint:funlen // OTEL options make this function appear longer than expected.
func NewPrimeServer(options ...PrimeServerOption) (*PrimeServer, error) {
	var hostname string
	if host, err := os.Hostname(); err == nil {
		hostname = host
	} else {
		hostname = "unknown"
	}
	server := &PrimeServer{
		logger:  logr.Discard(),
		cache:   cachepkg.NewNoopCache(),
		rounds:  prime.DefaultRounds,
		maxBits: DefaultMaxBits,
		metadata: &Metadata{
			Identity:    hostname,
			Tags:        []string{},
			Annotations: map[string]string{},
		},
		marshaler: &runtime.JSONBuiltin{},
	}
	for _, option := range options {
		option(server)
	}
	var err error
	server.searcher, err = prime.NewSearcher(append([]prime.SearcherOption{
		prime.WithLogger(server.logger),
		prime.WithRounds(server.rounds),
	}, server.searcherOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prime searcher: %w", err)
	}
	meter := otel.Meter(OpenTelemetryPackageIdentifier)
	server.calculationMs, err = meter.Int64Histogram(
		OpenTelemetryPackageIdentifier+".calc_duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("The duration (ms) of calculations"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating calculationMs Histogram: %w", err)
	}
	server.cacheErrors, err = meter.Int64Counter(
		OpenTelemetryPackageIdentifier+".cache_errors",
		metric.WithDescription("The count of error responses from verdict cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating cacheErrors Counter: %w", err)
	}
	server.cacheHits, err = meter.Int64Counter(
		OpenTelemetryPackageIdentifier+".cache_hits",
		metric.WithDescription("The count of cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating cacheHits Counter: %w", err)
	}
	server.cacheMisses, err = meter.Int64Counter(
		OpenTelemetryPackageIdentifier+".cache_misses",
		metric.WithDescription("The count of cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating cacheMisses Counter: %w", err)
	}
	return server, nil
}

// Use the supplied logger for the server and prime packages.
func WithLogger(logger logr.Logger) PrimeServerOption {
	return func(s *PrimeServer) {
		s.logger = logger
		prime.SetLogger(logger)
	}
}

// Use the Cache implementation to store primality verdicts and search results.
func WithCache(cache cachepkg.Cache) PrimeServerOption {
	return func(s *PrimeServer) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// Add the string tags to the server's metadata.
func WithTags(tags []string) PrimeServerOption {
	return func(s *PrimeServer) {
		if tags != nil {
			s.metadata.Tags = append(s.metadata.Tags, tags...)
		}
	}
}

// Add the key-value annotations to the server's metadata.
func WithAnnotations(annotations map[string]string) PrimeServerOption {
	return func(s *PrimeServer) {
		for k, v := range annotations {
			s.metadata.Annotations[k] = v
		}
	}
}

// Set the number of Miller-Rabin rounds used for searches and tests; values
// < 1 are ignored.
func WithRounds(rounds int) PrimeServerOption {
	return func(s *PrimeServer) {
		if rounds > 0 {
			s.rounds = rounds
		}
	}
}

// Set the largest prime, in bits, that a client may request; values < 2 are
// ignored.
func WithMaxBits(maxBits int) PrimeServerOption {
	return func(s *PrimeServer) {
		if maxBits > 1 {
			s.maxBits = maxBits
		}
	}
}

// Set the number of concurrent workers used per search.
func WithWorkers(workers int) PrimeServerOption {
	return func(s *PrimeServer) {
		s.searcherOptions = append(s.searcherOptions, prime.WithWorkers(workers))
	}
}

// Use the factory to create the random sources for searches and tests.
func WithSourceFactory(factory prime.SourceFactory) PrimeServerOption {
	return func(s *PrimeServer) {
		s.searcherOptions = append(s.searcherOptions, prime.WithSourceFactory(factory))
	}
}

// Records a failure on the span and returns err.
func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}

// Search for a random probable prime of bits bits. The result is stored in the
// cache under a new id, and a positive verdict is cached for the prime.
func (s *PrimeServer) Prime(ctx context.Context, bits int) (*PrimeResponse, error) {
	logger := s.logger.WithValues("bits", bits)
	logger.Info("Prime: enter")
	attributes := []attribute.KeyValue{
		attribute.Int(OpenTelemetryPackageIdentifier+".bits", bits),
	}
	ctx, span := otel.Tracer(OpenTelemetryPackageIdentifier).Start(ctx, OpenTelemetryPackageIdentifier+"/Prime")
	defer span.End()
	span.SetAttributes(attributes...)
	if bits > s.maxBits {
		return nil, spanError(span, fmt.Errorf("%w: requested %d, limit %d", ErrBitsTooLarge, bits, s.maxBits))
	}
	ts := time.Now()
	result, err := s.searcher.Search(ctx, bits)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("prime search failed: %w", err))
	}
	s.calculationMs.Record(ctx, time.Since(ts).Milliseconds(), metric.WithAttributes(attributes...))
	id := uuid.New().String()
	span.AddEvent("Caching search result")
	if err := s.cache.SetValue(ctx, cachepkg.SearchKey(id), result.Text()); err != nil {
		s.cacheErrors.Add(ctx, 1, metric.WithAttributes(attributes...))
		return nil, spanError(span, fmt.Errorf("cache %T SetValue method returned an error: %w", s.cache, err))
	}
	if err := s.cache.SetValue(ctx, cachepkg.VerdictKey(result.Text(), s.rounds), cachepkg.VerdictPrime); err != nil {
		s.cacheErrors.Add(ctx, 1, metric.WithAttributes(attributes...))
		return nil, spanError(span, fmt.Errorf("cache %T SetValue method returned an error: %w", s.cache, err))
	}
	logger.Info("Prime: exit", "id", id)
	return &PrimeResponse{
		ID:       id,
		Bits:     bits,
		Prime:    result,
		Metadata: s.metadata,
	}, nil
}

// Return a prime found by an earlier search.
func (s *PrimeServer) SearchResult(ctx context.Context, id string) (*PrimeResponse, error) {
	logger := s.logger.WithValues("id", id)
	logger.V(1).Info("SearchResult: enter")
	ctx, span := otel.Tracer(OpenTelemetryPackageIdentifier).Start(ctx, OpenTelemetryPackageIdentifier+"/SearchResult")
	defer span.End()
	span.SetAttributes(attribute.String(OpenTelemetryPackageIdentifier+".id", id))
	if _, err := uuid.Parse(id); err != nil {
		return nil, spanError(span, fmt.Errorf("%w: %w", ErrSearchNotFound, err))
	}
	value, err := s.cache.GetValue(ctx, cachepkg.SearchKey(id))
	if err != nil {
		s.cacheErrors.Add(ctx, 1)
		return nil, spanError(span, fmt.Errorf("cache %T GetValue method returned an error: %w", s.cache, err))
	}
	if value == "" {
		s.cacheMisses.Add(ctx, 1)
		return nil, spanError(span, fmt.Errorf("%w: %s", ErrSearchNotFound, id))
	}
	s.cacheHits.Add(ctx, 1)
	result, err := prime.ParseHex(value)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("cached search result is invalid: %w", err))
	}
	logger.V(1).Info("SearchResult: exit")
	return &PrimeResponse{
		ID:       id,
		Bits:     result.BitLen(),
		Prime:    result,
		Metadata: s.metadata,
	}, nil
}

// Test value for primality, consulting the cache before running Miller-Rabin.
func (s *PrimeServer) Test(ctx context.Context, value prime.Int) (*TestResponse, error) {
	key := cachepkg.VerdictKey(value.Text(), s.rounds)
	logger := s.logger.WithValues("key", key)
	logger.Info("Test: enter")
	attributes := []attribute.KeyValue{
		attribute.Int(OpenTelemetryPackageIdentifier+".bits", value.BitLen()),
		attribute.String(OpenTelemetryPackageIdentifier+".cacheKey", key),
	}
	ctx, span := otel.Tracer(OpenTelemetryPackageIdentifier).Start(ctx, OpenTelemetryPackageIdentifier+"/Test")
	defer span.End()
	span.SetAttributes(attributes...)
	if err := s.checkOperands(value); err != nil {
		return nil, spanError(span, err)
	}
	span.AddEvent("Checking cache")
	verdict, err := s.cache.GetValue(ctx, key)
	if err != nil {
		s.cacheErrors.Add(ctx, 1, metric.WithAttributes(attributes...))
		return nil, spanError(span, fmt.Errorf("cache %T GetValue method returned an error: %w", s.cache, err))
	}
	if verdict == "" {
		attributes := append(attributes, attribute.Bool(OpenTelemetryPackageIdentifier+".cache_hit", false))
		span.SetAttributes(attributes...)
		span.AddEvent("Running Miller-Rabin")
		s.cacheMisses.Add(ctx, 1, metric.WithAttributes(attributes...))
		ts := time.Now()
		ok, err := prime.NewTester(prime.NewWordSource(), s.rounds).ProbablyPrime(ctx, value)
		if err != nil {
			return nil, spanError(span, fmt.Errorf("primality test failed: %w", err))
		}
		s.calculationMs.Record(ctx, time.Since(ts).Milliseconds(), metric.WithAttributes(attributes...))
		verdict = cachepkg.VerdictComposite
		if ok {
			verdict = cachepkg.VerdictPrime
		}
		if err = s.cache.SetValue(ctx, key, verdict); err != nil {
			s.cacheErrors.Add(ctx, 1, metric.WithAttributes(attributes...))
			return nil, spanError(span, fmt.Errorf("cache %T SetValue method returned an error: %w", s.cache, err))
		}
	} else {
		attributes := append(attributes, attribute.Bool(OpenTelemetryPackageIdentifier+".cache_hit", true))
		span.SetAttributes(attributes...)
		s.cacheHits.Add(ctx, 1, metric.WithAttributes(attributes...))
	}
	logger.Info("Test: exit", "verdict", verdict)
	return &TestResponse{
		Value:         value,
		ProbablyPrime: verdict == cachepkg.VerdictPrime,
		Rounds:        s.rounds,
		Metadata:      s.metadata,
	}, nil
}

// Return the smallest probable prime greater than value.
func (s *PrimeServer) NextPrime(ctx context.Context, value prime.Int) (*NextPrimeResponse, error) {
	logger := s.logger.WithValues("value", value)
	logger.Info("NextPrime: enter")
	attributes := []attribute.KeyValue{
		attribute.Int(OpenTelemetryPackageIdentifier+".bits", value.BitLen()),
	}
	ctx, span := otel.Tracer(OpenTelemetryPackageIdentifier).Start(ctx, OpenTelemetryPackageIdentifier+"/NextPrime")
	defer span.End()
	span.SetAttributes(attributes...)
	if value.BitLen() >= s.maxBits {
		return nil, spanError(span, fmt.Errorf("%w: value has %d bits, limit %d", ErrBitsTooLarge, value.BitLen(), s.maxBits))
	}
	ts := time.Now()
	next, err := prime.NewTester(prime.NewWordSource(), s.rounds).NextPrime(ctx, value)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("next prime search failed: %w", err))
	}
	s.calculationMs.Record(ctx, time.Since(ts).Milliseconds(), metric.WithAttributes(attributes...))
	logger.Info("NextPrime: exit", "next", next)
	return &NextPrimeResponse{
		Value:    value,
		Next:     next,
		Metadata: s.metadata,
	}, nil
}

// Return the greatest common divisor of a and b.
func (s *PrimeServer) GCD(ctx context.Context, a, b prime.Int) (*GCDResponse, error) {
	_, span := otel.Tracer(OpenTelemetryPackageIdentifier).Start(ctx, OpenTelemetryPackageIdentifier+"/GCD")
	defer span.End()
	s.logger.V(1).Info("GCD", "a", a, "b", b)
	if err := s.checkOperands(a, b); err != nil {
		return nil, spanError(span, err)
	}
	return &GCDResponse{
		A:        a,
		B:        b,
		GCD:      prime.GCD(a, b),
		Metadata: s.metadata,
	}, nil
}

// Return (base ^ exponent) mod modulus.
func (s *PrimeServer) ModExp(ctx context.Context, base, exponent, modulus prime.Int) (*ModExpResponse, error) {
	ctx, span := otel.Tracer(OpenTelemetryPackageIdentifier).Start(ctx, OpenTelemetryPackageIdentifier+"/ModExp")
	defer span.End()
	s.logger.V(1).Info("ModExp", "base", base, "exponent", exponent, "modulus", modulus)
	if err := s.checkOperands(base, exponent, modulus); err != nil {
		return nil, spanError(span, err)
	}
	ts := time.Now()
	result, err := prime.ModExp(base, exponent, modulus)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("modular exponentiation failed: %w", err))
	}
	s.calculationMs.Record(ctx, time.Since(ts).Milliseconds())
	return &ModExpResponse{
		Base:     base,
		Exponent: exponent,
		Modulus:  modulus,
		Result:   result,
		Metadata: s.metadata,
	}, nil
}

// Returns ErrBitsTooLarge if any operand is wider than the configured limit.
func (s *PrimeServer) checkOperands(operands ...prime.Int) error {
	for _, operand := range operands {
		if bits := operand.BitLen(); bits > s.maxBits {
			return fmt.Errorf("%w: operand has %d bits, limit %d", ErrBitsTooLarge, bits, s.maxBits)
		}
	}
	return nil
}

// Returns the instance metadata.
func (s *PrimeServer) Metadata() *Metadata {
	return s.metadata
}

// Maps an error to the gRPC code used to select an HTTP status.
func errorCode(err error) codes.Code {
	switch {
	case errors.Is(err, prime.ErrInvalidHex),
		errors.Is(err, prime.ErrBitLengthTooSmall),
		errors.Is(err, prime.ErrDivisionByZero),
		errors.Is(err, prime.ErrNegativeExponent),
		errors.Is(err, ErrBitsTooLarge),
		errors.Is(err, ErrInvalidBits):
		return codes.InvalidArgument
	case errors.Is(err, ErrSearchNotFound):
		return codes.NotFound
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// Write v to w as JSON with the status code.
func (s *PrimeServer) writeResponse(w http.ResponseWriter, status int, v any) {
	body, err := s.marshaler.Marshal(v)
	if err != nil {
		s.logger.Error(err, "Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", s.marshaler.ContentType(v))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Error(err, "Writing response raised an error; continuing")
	}
}

// Write err to w with the mapped HTTP status.
func (s *PrimeServer) writeError(w http.ResponseWriter, err error) {
	status := runtime.HTTPStatusFromCode(errorCode(err))
	if status >= http.StatusInternalServerError {
		s.logger.Error(err, "Request failed")
	}
	s.writeResponse(w, status, &ErrorResponse{
		Code:    status,
		Message: err.Error(),
	})
}

// Parse each named path parameter as a hexadecimal integer.
func parseHexParams(pathParams map[string]string, names ...string) ([]prime.Int, error) {
	values := make([]prime.Int, 0, len(names))
	for _, name := range names {
		value, err := prime.ParseHex(pathParams[name])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		values = append(values, value)
	}
	return values, nil
}

// Create a new REST handler that serves the prime API.
func (s *PrimeServer) NewRestHandler() (http.Handler, error) {
	mux := runtime.NewServeMux()
	routes := []struct {
		pattern string
		handler runtime.HandlerFunc
	}{
		{"/api/v1/prime/{bits}", s.handlePrime},
		{"/api/v1/search/{id}", s.handleSearchResult},
		{"/api/v1/test/{value}", s.handleTest},
		{"/api/v1/next/{value}", s.handleNextPrime},
		{"/api/v1/gcd/{a}/{b}", s.handleGCD},
		{"/api/v1/modexp/{base}/{exponent}/{modulus}", s.handleModExp},
		{"/api/v1/metadata", s.handleMetadata},
		{"/healthz", s.handleHealth},
	}
	for _, route := range routes {
		if err := mux.HandlePath(http.MethodGet, route.pattern, route.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s handler: %w", route.pattern, err)
		}
	}
	return otelhttp.NewHandler(mux,
		OpenTelemetryPackageIdentifier+"/RestHandler",
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	), nil
}

func (s *PrimeServer) handlePrime(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	bits, err := strconv.Atoi(pathParams["bits"])
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %q", ErrInvalidBits, pathParams["bits"]))
		return
	}
	response, err := s.Prime(r.Context(), bits)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, response)
}

func (s *PrimeServer) handleSearchResult(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	response, err := s.SearchResult(r.Context(), pathParams["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, response)
}

func (s *PrimeServer) handleTest(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	values, err := parseHexParams(pathParams, "value")
	if err != nil {
		s.writeError(w, err)
		return
	}
	response, err := s.Test(r.Context(), values[0])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, response)
}

func (s *PrimeServer) handleNextPrime(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	values, err := parseHexParams(pathParams, "value")
	if err != nil {
		s.writeError(w, err)
		return
	}
	response, err := s.NextPrime(r.Context(), values[0])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, response)
}

func (s *PrimeServer) handleGCD(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	values, err := parseHexParams(pathParams, "a", "b")
	if err != nil {
		s.writeError(w, err)
		return
	}
	response, err := s.GCD(r.Context(), values[0], values[1])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, response)
}

func (s *PrimeServer) handleModExp(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	values, err := parseHexParams(pathParams, "base", "exponent", "modulus")
	if err != nil {
		s.writeError(w, err)
		return
	}
	response, err := s.ModExp(r.Context(), values[0], values[1], values[2])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, response)
}

func (s *PrimeServer) handleMetadata(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	s.writeResponse(w, http.StatusOK, s.metadata)
}

func (s *PrimeServer) handleHealth(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String(OpenTelemetryPackageIdentifier+".identity", s.metadata.Identity))
	w.WriteHeader(http.StatusOK)
}
