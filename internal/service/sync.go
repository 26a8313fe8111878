package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pkordes/tour-manager/internal/bandsintown"
	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/repo"
)

// EventFetcher lists upcoming events for one artist.
// *bandsintown.Client satisfies it.
type EventFetcher interface {
	ArtistEvents(ctx context.Context, artist string) ([]bandsintown.Event, error)
}

// SyncRecorder receives the result of each finished run.
type SyncRecorder interface {
	RecordSyncRun(status string, eventsUpserted int, finishedAt time.Time)
}

// SyncService pulls upcoming events for every touring artist and stores them.
type SyncService struct {
	tours       repo.TourRepo
	events      repo.EventRepo
	runs        repo.SyncRunRepo
	fetcher     EventFetcher
	concurrency int
	timeout     time.Duration
	metrics     SyncRecorder
	log         *slog.Logger

	group   singleflight.Group
	running atomic.Bool
	wg      sync.WaitGroup
}

// SyncOptions tunes a SyncService.
type SyncOptions struct {
	// Concurrency bounds parallel artist fetches. Values below 1 mean 1.
	Concurrency int
	// Timeout bounds a background run started by Trigger. Zero means no limit.
	Timeout time.Duration
	// Metrics may be nil.
	Metrics SyncRecorder
}

// NewSyncService constructs a SyncService. A nil fetcher disables syncing.
func NewSyncService(store repo.Store, fetcher EventFetcher, opts SyncOptions, log *slog.Logger) *SyncService {
	return &SyncService{
		tours:       store.Tours,
		events:      store.Events,
		runs:        store.SyncRuns,
		fetcher:     fetcher,
		concurrency: max(opts.Concurrency, 1),
		timeout:     opts.Timeout,
		metrics:     opts.Metrics,
		log:         log,
	}
}

// Enabled reports whether a fetcher is configured.
func (s *SyncService) Enabled() bool {
	return s.fetcher != nil
}

// Trigger starts a run in the background and returns immediately.
// The run is detached from the caller's context.
func (s *SyncService) Trigger(trigger domain.SyncTrigger) domain.SyncState {
	if !s.Enabled() {
		return domain.SyncDisabled
	}
	if !s.running.CompareAndSwap(false, true) {
		return domain.SyncAlreadyRunning
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		if _, err := s.Run(ctx, trigger); err != nil {
			s.log.Error("sync failed", "trigger", string(trigger), "err", err)
		}
	}()
	return domain.SyncStarted
}

// Wait blocks until background runs started by Trigger have finished.
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// Run executes one sync and returns its record. Concurrent calls share a
// single execution.
func (s *SyncService) Run(ctx context.Context, trigger domain.SyncTrigger) (domain.SyncRun, error) {
	if !s.Enabled() {
		return domain.SyncRun{}, fmt.Errorf("service.SyncService.Run: sync is not configured")
	}
	v, err, shared := s.group.Do("sync", func() (any, error) {
		return s.run(ctx, trigger)
	})
	if shared {
		s.log.DebugContext(ctx, "sync run shared", "trigger", string(trigger))
	}
	run, _ := v.(domain.SyncRun)
	return run, err
}

// Latest returns the most recent run, or domain.ErrNotFound.
func (s *SyncService) Latest(ctx context.Context) (domain.SyncRun, error) {
	run, err := s.runs.Latest(ctx)
	if err != nil {
		return domain.SyncRun{}, fmt.Errorf("service.SyncService.Latest: %w", err)
	}
	return run, nil
}

// Schedule runs a sync every interval until ctx is done. No run is started
// once ctx is done, so Wait after Schedule returns covers every run it began.
func (s *SyncService) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 || !s.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// select picks randomly when both cases are ready.
			if ctx.Err() != nil {
				return
			}
			if state := s.Trigger(domain.TriggerSchedule); state != domain.SyncStarted {
				s.log.InfoContext(ctx, "scheduled sync skipped", "state", string(state))
			}
		}
	}
}

func (s *SyncService) run(ctx context.Context, trigger domain.SyncTrigger) (domain.SyncRun, error) {
	run, err := s.runs.Start(ctx, trigger)
	if err != nil {
		return domain.SyncRun{}, fmt.Errorf("service.SyncService.Run: %w", err)
	}
	s.log.InfoContext(ctx, "sync started", "run_id", run.ID, "trigger", string(trigger))

	artists, upserted, runErr := s.syncArtists(ctx)
	run.Artists = artists
	run.EventsUpserted = upserted
	run.Status = domain.SyncSucceeded
	if runErr != nil {
		run.Status = domain.SyncFailed
		run.Error = runErr.Error()
	}

	// The run record is written even when ctx has expired.
	finished, err := s.runs.Finish(context.WithoutCancel(ctx), run)
	if err != nil {
		return run, errors.Join(runErr, fmt.Errorf("service.SyncService.Run: finish: %w", err))
	}

	finishedAt := time.Now()
	if finished.FinishedAt != nil {
		finishedAt = *finished.FinishedAt
	}
	if s.metrics != nil {
		s.metrics.RecordSyncRun(string(finished.Status), finished.EventsUpserted, finishedAt)
	}
	s.log.InfoContext(ctx, "sync finished",
		"run_id", finished.ID,
		"status", string(finished.Status),
		"artists", finished.Artists,
		"events_upserted", finished.EventsUpserted,
	)

	if runErr != nil {
		return finished, fmt.Errorf("service.SyncService.Run: %w", runErr)
	}
	return finished, nil
}

// syncArtists fetches and stores events for every artist. It returns the
// number of artists and upserted events, and the first error encountered.
func (s *SyncService) syncArtists(ctx context.Context) (int, int, error) {
	artists, err := s.tours.ListArtists(ctx)
	if err != nil {
		return 0, 0, err
	}

	var upserted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, artist := range artists {
		g.Go(func() error {
			n, err := s.syncArtist(gctx, artist)
			upserted.Add(int64(n))
			if err != nil {
				return fmt.Errorf("artist %q: %w", artist, err)
			}
			return nil
		})
	}

	err = g.Wait()
	return len(artists), int(upserted.Load()), err
}

func (s *SyncService) syncArtist(ctx context.Context, artist string) (int, error) {
	remote, err := s.fetcher.ArtistEvents(ctx, artist)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, re := range remote {
		event, err := re.ToDomain(artist)
		if err != nil {
			s.log.WarnContext(ctx, "skipping event", "artist", artist, "err", err)
			continue
		}
		if _, err := upsertEvent(ctx, s.tours, s.events, event); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
