package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/repository"
)

// LocatorOptions tunes the Locator worker pool.
type LocatorOptions struct {
	ProviderName  string        // ProviderName labels the geocoder latency metric.
	Workers       int           // Workers is the number of concurrent geocoding workers.
	PollInterval  time.Duration // PollInterval is the time between two batches.
	BatchSize     int           // BatchSize bounds the specialists fetched per batch.
	MaxAttempts   int           // MaxAttempts skips specialists that failed this many times.
	AddressPrefix string        // AddressPrefix is prepended to every address (country, city, ...).
}

// Locator periodically backfills coordinates for specialists stored with an address only.
type Locator struct {
	log      *slog.Logger
	repo     repository.Interface
	provider geocoding.Provider
	metrics  *metrics.Metrics
	opts     LocatorOptions
}

// NewLocator creates a new Locator.
func NewLocator(
	log *slog.Logger,
	repo repository.Interface,
	provider geocoding.Provider,
	metrics *metrics.Metrics,
	opts LocatorOptions,
) *Locator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	return &Locator{
		log:      log,
		repo:     repo,
		provider: provider,
		metrics:  metrics,
		opts:     opts,
	}
}

// Run polls for unlocated specialists until ctx is cancelled.
func (l *Locator) Run(ctx context.Context) {
	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	l.log.InfoContext(ctx, "Locator started", "workers", l.opts.Workers, "interval", l.opts.PollInterval)

	for {
		select {
		case <-ctx.Done():
			l.log.InfoContext(ctx, "Locator stopped.")
			return
		case <-ticker.C:
			l.log.DebugContext(ctx, "Polling for specialists without coordinates...")
			l.processBatch(ctx)
		}
	}
}

// processBatch fetches one batch of unlocated specialists and fans it out to the worker pool.
// It returns once every worker has drained the batch.
func (l *Locator) processBatch(ctx context.Context) {
	pending, err := l.repo.FetchUnlocatedSpecialists(ctx, l.opts.BatchSize, l.opts.MaxAttempts)
	if err != nil {
		l.log.ErrorContext(ctx, "Failed to fetch unlocated specialists", "error", err)
		return
	}
	if len(pending) == 0 {
		l.log.DebugContext(ctx, "No specialists to locate.")
		return
	}

	l.log.InfoContext(ctx, "Locating specialists", "jobs", len(pending), "num_workers", l.opts.Workers)

	jobs := make(chan models.PendingSpecialist, len(pending))
	var wgr sync.WaitGroup

	for i := 1; i <= l.opts.Workers; i++ {
		wgr.Add(1)
		go l.worker(ctx, i, &wgr, jobs)
	}

	for _, sp := range pending {
		jobs <- sp
	}
	close(jobs)

	wgr.Wait()
	l.log.InfoContext(ctx, "Locating batch finished", "jobs", len(pending))
}

func (l *Locator) worker(ctx context.Context, idx int, wg *sync.WaitGroup, jobs <-chan models.PendingSpecialist) {
	defer wg.Done()
	for sp := range jobs {
		l.locate(ctx, idx, sp)
	}
}

func (l *Locator) locate(ctx context.Context, idx int, sp models.PendingSpecialist) {
	l.metrics.ActiveWorkers.Inc()
	defer l.metrics.ActiveWorkers.Dec()

	l.log.DebugContext(ctx, "Locating specialist", "worker", idx, "specialist", sp.ID)

	start := time.Now()
	coords, err := l.provider.Geocode(ctx, l.opts.AddressPrefix+sp.Address)
	l.metrics.GeocoderSeconds.WithLabelValues(l.opts.ProviderName).Observe(time.Since(start).Seconds())

	if err != nil {
		l.log.WarnContext(ctx, "Failed to geocode specialist", "worker", idx, "specialist", sp.ID, "error", err)
		l.metrics.SpecialistsLocated.WithLabelValues("failure").Inc()
		l.metrics.GeocoderErrors.Inc()

		if err = l.repo.IncrementFailureCount(ctx, sp.ID, err.Error()); err != nil {
			l.log.ErrorContext(ctx, "Could not record geocoding failure",
				"worker", idx, "specialist", sp.ID, "error", err)
		}
		return
	}

	if err = l.repo.UpdateSpecialistLocation(ctx, sp.ID, *coords); err != nil {
		l.metrics.SpecialistsLocated.WithLabelValues("failure").Inc()
		l.log.ErrorContext(ctx, "Failed to store specialist location",
			"worker", idx, "specialist", sp.ID, "error", err)
		return
	}

	l.metrics.SpecialistsLocated.WithLabelValues("success").Inc()
	l.log.DebugContext(ctx, "Specialist located", "worker", idx, "specialist", sp.ID)
}
