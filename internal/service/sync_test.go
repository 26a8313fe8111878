package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tour-manager/internal/bandsintown"
	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/observability"
	"github.com/pkordes/tour-manager/internal/repo"
	"github.com/pkordes/tour-manager/internal/service"
)

// mockSyncRunRepo keeps runs in memory.
type mockSyncRunRepo struct {
	mu       sync.Mutex
	started  []domain.SyncRun
	finished []domain.SyncRun
}

func (m *mockSyncRunRepo) Start(_ context.Context, trigger domain.SyncTrigger) (domain.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := domain.SyncRun{ID: uuid.New(), Trigger: trigger, Status: domain.SyncRunning, StartedAt: time.Now()}
	m.started = append(m.started, run)
	return run, nil
}

func (m *mockSyncRunRepo) Finish(_ context.Context, run domain.SyncRun) (domain.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	run.FinishedAt = &now
	m.finished = append(m.finished, run)
	return run, nil
}

func (m *mockSyncRunRepo) Latest(_ context.Context) (domain.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.finished) == 0 {
		return domain.SyncRun{}, domain.ErrNotFound
	}
	return m.finished[len(m.finished)-1], nil
}

var _ repo.SyncRunRepo = (*mockSyncRunRepo)(nil)

type mockFetcher struct {
	artistEvents func(ctx context.Context, artist string) ([]bandsintown.Event, error)
}

func (m *mockFetcher) ArtistEvents(ctx context.Context, artist string) ([]bandsintown.Event, error) {
	return m.artistEvents(ctx, artist)
}

var _ service.EventFetcher = (*mockFetcher)(nil)

type syncRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *syncRecorder) RecordSyncRun(status string, _ int, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

// syncStore returns repos for two artists where every event matches tour 5.
func syncStore(upserts *atomic.Int32) (repo.Store, *mockSyncRunRepo) {
	runs := &mockSyncRunRepo{}
	return repo.Store{
		Tours: &mockTourRepo{
			listArtists: func(_ context.Context) ([]string, error) {
				return []string{"Radiohead", "Portishead"}, nil
			},
			findForEvent: func(_ context.Context, _ string, _ time.Time) (domain.Tour, error) {
				return domain.Tour{ID: 5}, nil
			},
		},
		Events: &mockEventRepo{
			upsert: func(_ context.Context, e domain.Event) (domain.Event, error) {
				upserts.Add(1)
				return e, nil
			},
		},
		SyncRuns: runs,
	}, runs
}

func remoteEvents(ids ...string) []bandsintown.Event {
	out := make([]bandsintown.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, bandsintown.Event{ID: bandsintown.ID(id), Datetime: "2025-07-04T20:00:00"})
	}
	return out
}

func TestSyncService_Run_Succeeds(t *testing.T) {
	var upserts atomic.Int32
	store, runs := syncStore(&upserts)
	fetcher := &mockFetcher{
		artistEvents: func(_ context.Context, artist string) ([]bandsintown.Event, error) {
			if artist == "Radiohead" {
				return remoteEvents("1", "2"), nil
			}
			// An event without an id is skipped, not fatal.
			return append(remoteEvents("3"), bandsintown.Event{Datetime: "2025-07-05T20:00:00"}), nil
		},
	}
	rec := &syncRecorder{}
	svc := service.NewSyncService(store, fetcher, service.SyncOptions{Concurrency: 2, Metrics: rec}, observability.NewNopLogger())

	run, err := svc.Run(context.Background(), domain.TriggerCLI)

	require.NoError(t, err)
	assert.Equal(t, domain.SyncSucceeded, run.Status)
	assert.Equal(t, 2, run.Artists)
	assert.Equal(t, 3, run.EventsUpserted)
	assert.Equal(t, int32(3), upserts.Load())
	require.Len(t, runs.finished, 1)
	assert.Equal(t, domain.TriggerCLI, runs.finished[0].Trigger)
	assert.Equal(t, []string{"succeeded"}, rec.statuses)
}

func TestSyncService_Run_FetchErrorMarksFailed(t *testing.T) {
	var upserts atomic.Int32
	store, runs := syncStore(&upserts)
	boom := errors.New("upstream 503")
	fetcher := &mockFetcher{
		artistEvents: func(_ context.Context, _ string) ([]bandsintown.Event, error) { return nil, boom },
	}
	svc := service.NewSyncService(store, fetcher, service.SyncOptions{Concurrency: 1}, observability.NewNopLogger())

	run, err := svc.Run(context.Background(), domain.TriggerSchedule)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, domain.SyncFailed, run.Status)
	assert.Contains(t, run.Error, "upstream 503")
	require.Len(t, runs.finished, 1)
}

func TestSyncService_Run_RespectsConcurrency(t *testing.T) {
	var upserts atomic.Int32
	store, _ := syncStore(&upserts)

	var inFlight, peak atomic.Int32
	fetcher := &mockFetcher{
		artistEvents: func(_ context.Context, _ string) ([]bandsintown.Event, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return nil, nil
		},
	}
	svc := service.NewSyncService(store, fetcher, service.SyncOptions{Concurrency: 1}, observability.NewNopLogger())

	_, err := svc.Run(context.Background(), domain.TriggerCLI)

	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestSyncService_Trigger(t *testing.T) {
	var upserts atomic.Int32
	store, runs := syncStore(&upserts)

	release := make(chan struct{})
	fetcher := &mockFetcher{
		artistEvents: func(_ context.Context, _ string) ([]bandsintown.Event, error) {
			<-release
			return remoteEvents("1"), nil
		},
	}
	svc := service.NewSyncService(store, fetcher, service.SyncOptions{Concurrency: 2, Timeout: time.Minute}, observability.NewNopLogger())

	assert.Equal(t, domain.SyncStarted, svc.Trigger(domain.TriggerWebhook))
	assert.Equal(t, domain.SyncAlreadyRunning, svc.Trigger(domain.TriggerWebhook))

	close(release)
	svc.Wait()

	require.Len(t, runs.finished, 1)
	assert.Equal(t, domain.TriggerWebhook, runs.finished[0].Trigger)

	// Once finished, a new trigger starts another run.
	assert.Equal(t, domain.SyncStarted, svc.Trigger(domain.TriggerWebhook))
	svc.Wait()
	assert.Len(t, runs.finished, 2)
}

func TestSyncService_Schedule_StopsWithContext(t *testing.T) {
	var upserts atomic.Int32
	store, runs := syncStore(&upserts)
	var fetches atomic.Int32
	fetcher := &mockFetcher{
		artistEvents: func(_ context.Context, _ string) ([]bandsintown.Event, error) {
			fetches.Add(1)
			return nil, nil
		},
	}
	svc := service.NewSyncService(store, fetcher, service.SyncOptions{}, observability.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// A microsecond ticker is usually ready alongside ctx.Done.
		svc.Schedule(ctx, time.Microsecond)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule did not return after its context was cancelled")
	}
	svc.Wait()

	assert.Zero(t, fetches.Load())
	assert.Empty(t, runs.started)
}

func TestSyncService_Schedule_TriggersOnTick(t *testing.T) {
	var upserts atomic.Int32
	store, runs := syncStore(&upserts)
	ran := make(chan struct{}, 1)
	fetcher := &mockFetcher{
		artistEvents: func(_ context.Context, _ string) ([]bandsintown.Event, error) {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil, nil
		},
	}
	svc := service.NewSyncService(store, fetcher, service.SyncOptions{}, observability.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Schedule(ctx, 5*time.Millisecond)
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("no scheduled run")
	}
	cancel()
	<-done
	svc.Wait()

	runs.mu.Lock()
	defer runs.mu.Unlock()
	require.NotEmpty(t, runs.finished)
	assert.Equal(t, domain.TriggerSchedule, runs.finished[0].Trigger)
}

func TestSyncService_Disabled(t *testing.T) {
	var upserts atomic.Int32
	store, _ := syncStore(&upserts)
	svc := service.NewSyncService(store, nil, service.SyncOptions{}, observability.NewNopLogger())

	assert.False(t, svc.Enabled())
	assert.Equal(t, domain.SyncDisabled, svc.Trigger(domain.TriggerWebhook))
	_, err := svc.Run(context.Background(), domain.TriggerCLI)
	assert.Error(t, err)
}

func TestSyncService_Latest(t *testing.T) {
	var upserts atomic.Int32
	store, _ := syncStore(&upserts)
	fetcher := &mockFetcher{
		artistEvents: func(_ context.Context, _ string) ([]bandsintown.Event, error) { return nil, nil },
	}
	svc := service.NewSyncService(store, fetcher, service.SyncOptions{}, observability.NewNopLogger())

	_, err := svc.Latest(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)

	run, err := svc.Run(context.Background(), domain.TriggerCLI)
	require.NoError(t, err)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
}
