package prime

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// Returns the default number of search workers: half of the available CPUs,
// but never less than one.
func DefaultWorkers() int {
	if n := runtime.NumCPU() / 2; n > 1 {
		return n
	}
	return 1
}

// Searcher finds random probable primes by racing a pool of workers. A
// Searcher with one worker searches sequentially; it is safe to call Search
// from multiple goroutines.
type Searcher struct {
	// The logr.Logger implementation to use
	logger logr.Logger
	// The number of concurrent workers per search
	workers int
	// The number of Miller-Rabin rounds per candidate
	rounds int
	// Creates the random source owned by each worker
	newSource SourceFactory
	// A counter for candidates generated
	candidates metric.Int64Counter
	// A counter for primes claimed
	primes metric.Int64Counter
	// A histogram of search durations
	searchMs metric.Int64Histogram
}

// Defines the function signature for Searcher options.
type SearcherOption func(*Searcher)

// Create a new Searcher and apply any options.
func NewSearcher(options ...SearcherOption) (*Searcher, error) {
	searcher := &Searcher{
		logger:    logger,
		workers:   DefaultWorkers(),
		rounds:    DefaultRounds,
		newSource: NewWordSource,
	}
	for _, option := range options {
		option(searcher)
	}
	var err error
	meter := otel.Meter(OpenTelemetryPackageIdentifier)
	searcher.candidates, err = meter.Int64Counter(
		OpenTelemetryPackageIdentifier+".search.candidates",
		metric.WithDescription("The count of prime candidates generated"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating candidates Counter: %w", err)
	}
	searcher.primes, err = meter.Int64Counter(
		OpenTelemetryPackageIdentifier+".search.primes",
		metric.WithDescription("The count of probable primes found"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating primes Counter: %w", err)
	}
	searcher.searchMs, err = meter.Int64Histogram(
		OpenTelemetryPackageIdentifier+".search.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("The duration (ms) of prime searches"),
	)
	if err != nil {
		return nil, fmt.Errorf("error returned while creating searchMs Histogram: %w", err)
	}
	return searcher, nil
}

// Use the supplied logger for the searcher.
func WithLogger(logger logr.Logger) SearcherOption {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// Set the number of concurrent workers; values < 1 are ignored.
func WithWorkers(workers int) SearcherOption {
	return func(s *Searcher) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// Set the number of Miller-Rabin rounds per candidate; values < 1 are ignored.
func WithRounds(rounds int) SearcherOption {
	return func(s *Searcher) {
		if rounds > 0 {
			s.rounds = rounds
		}
	}
}

// Use the factory to create each worker's random source.
func WithSourceFactory(factory SourceFactory) SearcherOption {
	return func(s *Searcher) {
		if factory != nil {
			s.newSource = factory
		}
	}
}

// Returns the number of workers each search will start.
func (s *Searcher) Workers() int {
	return s.workers
}

// Search returns a random probable prime of exactly bits bits. Workers race to
// find a prime; the first to claim the result cancels the others, which stop
// before their next candidate or Miller-Rabin round. Search blocks until all
// workers have exited. If ctx is done before a prime is claimed, the context
// error is returned.
func (s *Searcher) Search(ctx context.Context, bits int) (Int, error) {
	if bits < 2 {
		return Int{}, fmt.Errorf("%w: requested %d", ErrBitLengthTooSmall, bits)
	}
	logger := s.logger.WithValues("bits", bits, "workers", s.workers)
	logger.V(1).Info("Search: enter")
	attributes := []attribute.KeyValue{
		attribute.Int(OpenTelemetryPackageIdentifier+".bits", bits),
		attribute.Int(OpenTelemetryPackageIdentifier+".workers", s.workers),
	}
	ctx, span := otel.Tracer(OpenTelemetryPackageIdentifier).Start(ctx, OpenTelemetryPackageIdentifier+"/Search")
	defer span.End()
	span.SetAttributes(attributes...)
	ts := time.Now()

	var winner atomic.Pointer[Int]
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, workerCtx := errgroup.WithContext(searchCtx)
	for id := 0; id < s.workers; id++ {
		g.Go(func() error {
			return s.work(workerCtx, logger.WithValues("worker", id), bits, &winner, cancel)
		})
	}
	err := g.Wait()
	if result := winner.Load(); result != nil {
		elapsed := time.Since(ts)
		s.primes.Add(ctx, 1, metric.WithAttributes(attributes...))
		s.searchMs.Record(ctx, elapsed.Milliseconds(), metric.WithAttributes(attributes...))
		logger.V(1).Info("Search: exit", "elapsed", elapsed, "result", result)
		return *result, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = context.Canceled
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return Int{}, fmt.Errorf("failed to find a %d bit prime: %w", bits, err)
}

// The worker loop: generate and test candidates until a prime is found or the
// search is cancelled. A worker that finds a prime attempts to claim the
// single result slot; only the successful claimant cancels the search.
func (s *Searcher) work(ctx context.Context, logger logr.Logger, bits int, winner *atomic.Pointer[Int], claimed context.CancelFunc) error {
	source := s.newSource()
	tester := NewTester(source, s.rounds)
	tested := 0
	defer func() {
		logger.V(2).Info("worker: exit", "tested", tested)
	}()
	for ctx.Err() == nil {
		candidate, err := GenerateCandidate(source, bits)
		if err != nil {
			return err
		}
		tested++
		s.candidates.Add(ctx, 1)
		ok, err := tester.ProbablyPrime(ctx, candidate)
		if err != nil {
			// Cancelled mid-test; another worker claimed a prime or the
			// caller gave up.
			return nil
		}
		if !ok {
			continue
		}
		if winner.CompareAndSwap(nil, &candidate) {
			logger.V(2).Info("worker: claimed prime", "tested", tested)
			claimed()
		}
		return nil
	}
	return nil
}
