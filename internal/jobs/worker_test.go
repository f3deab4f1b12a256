package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/podseek/internal/cache"
	"github.com/cloo-solutions/podseek/internal/domain"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEpisodeSource is a mock implementation of EpisodeSource
type MockEpisodeSource struct {
	mock.Mock
}

func (m *MockEpisodeSource) ListUpdatedAfter(ctx context.Context, since time.Time) ([]*domain.Episode, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Episode), args.Error(1)
}

func (m *MockEpisodeSource) NotifySynced(ctx context.Context, payload string) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// MockEpisodeIndexer is a mock implementation of EpisodeIndexer
type MockEpisodeIndexer struct {
	mock.Mock
}

func (m *MockEpisodeIndexer) Put(ctx context.Context, episode *domain.Episode, refresh bool) error {
	args := m.Called(ctx, episode.ID, refresh)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("transient"))

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_SweepsCache(t *testing.T) {
	c := cache.New(10 * time.Millisecond)
	c.Set("rust", []byte("{}"))

	worker := NewWorker("cache_sweep", cache.NewSweeper(c, nil), 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
	worker.Stop()
}

func episodeAt(id string, at time.Time) *domain.Episode {
	return &domain.Episode{ID: id, Title: id, UpdatedAt: at}
}

func TestIndexSyncWorker_NoChanges(t *testing.T) {
	source := new(MockEpisodeSource)
	indexer := new(MockEpisodeIndexer)
	source.On("ListUpdatedAfter", mock.Anything, time.Time{}).Return([]*domain.Episode{}, nil)

	w := NewIndexSyncWorker(source, indexer, testLogger())

	require.NoError(t, w.ProcessJobs(context.Background()))
	indexer.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	source.AssertNotCalled(t, "NotifySynced", mock.Anything, mock.Anything)
}

func TestIndexSyncWorker_IndexesAndNotifies(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	source := new(MockEpisodeSource)
	indexer := new(MockEpisodeIndexer)

	source.On("ListUpdatedAfter", mock.Anything, time.Time{}).Return([]*domain.Episode{
		episodeAt("a", base), episodeAt("b", base.Add(time.Minute)),
	}, nil).Once()
	indexer.On("Put", mock.Anything, "a", false).Return(nil)
	indexer.On("Put", mock.Anything, "b", false).Return(nil)
	source.On("NotifySynced", mock.Anything, "2").Return(nil)

	w := NewIndexSyncWorker(source, indexer, testLogger())

	require.NoError(t, w.ProcessJobs(context.Background()))
	assert.Equal(t, base.Add(time.Minute), w.Watermark())
	source.AssertExpectations(t)
	indexer.AssertExpectations(t)
}

func TestIndexSyncWorker_RetriesThenSkips(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	source := new(MockEpisodeSource)
	indexer := new(MockEpisodeIndexer)

	bad := episodeAt("bad", base)
	good := episodeAt("good", base.Add(time.Minute))
	source.On("ListUpdatedAfter", mock.Anything, time.Time{}).Return([]*domain.Episode{bad, good}, nil)
	source.On("ListUpdatedAfter", mock.Anything, good.UpdatedAt).Return([]*domain.Episode{}, nil)
	indexer.On("Put", mock.Anything, "bad", false).Return(errors.New("mapping conflict"))
	indexer.On("Put", mock.Anything, "good", false).Return(nil)
	source.On("NotifySynced", mock.Anything, "1").Return(nil)

	var reported []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			reported = append(reported, event)
			return nil
		},
	})
	require.NoError(t, err)
	ctx := sentry.SetHubOnContext(context.Background(), sentry.NewHub(client, sentry.NewScope()))

	w := NewIndexSyncWorker(source, indexer, testLogger())

	for i := 0; i < MaxRetries-1; i++ {
		require.NoError(t, w.ProcessJobs(ctx))
		assert.True(t, w.Watermark().IsZero(), "failed episode holds the watermark")
		assert.Equal(t, 1, w.Pending())
	}
	indexer.AssertNotCalled(t, "Put", mock.Anything, "good", false)
	assert.Empty(t, reported, "retries are not reported")

	require.NoError(t, w.ProcessJobs(ctx))
	require.Len(t, reported, 1, "skipped episode is reported once")
	assert.Equal(t, good.UpdatedAt, w.Watermark())
	assert.Zero(t, w.Pending())
	indexer.AssertCalled(t, "Put", mock.Anything, "good", false)
	source.AssertCalled(t, "NotifySynced", mock.Anything, "1")

	require.NoError(t, w.ProcessJobs(context.Background()))
}

func TestIndexSyncWorker_ListError(t *testing.T) {
	source := new(MockEpisodeSource)
	source.On("ListUpdatedAfter", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	w := NewIndexSyncWorker(source, new(MockEpisodeIndexer), testLogger())

	assert.ErrorContains(t, w.ProcessJobs(context.Background()), "db down")
}

type fakeWaiter struct {
	notifications chan *pgconn.Notification
}

func (f *fakeWaiter) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n, ok := <-f.notifications:
		if !ok {
			return nil, errors.New("conn closed")
		}
		return n, nil
	}
}

func TestSyncListener_InvalidatesOnNotification(t *testing.T) {
	c := cache.New(time.Hour)
	c.Set("rust", []byte("{}"))
	c.Set("go", []byte("{}"))

	waiter := &fakeWaiter{notifications: make(chan *pgconn.Notification)}
	var channel string
	connect := func(ctx context.Context, ch string) (NotificationWaiter, func(), error) {
		channel = ch
		return waiter, func() {}, nil
	}

	l := NewSyncListener(connect, "podseek_episodes_synced", c, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	waiter.notifications <- &pgconn.Notification{Channel: "podseek_episodes_synced", Payload: "2"}

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "podseek_episodes_synced", channel)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestSyncListener_Reconnects(t *testing.T) {
	c := cache.New(time.Hour)
	c.Set("rust", []byte("{}"))

	var mu sync.Mutex
	attempts := 0
	waiter := &fakeWaiter{notifications: make(chan *pgconn.Notification, 1)}
	connect := func(ctx context.Context, ch string) (NotificationWaiter, func(), error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return nil, nil, errors.New("connection refused")
		}
		return waiter, func() {}, nil
	}

	l := NewSyncListener(connect, "podseek_episodes_synced", c, testLogger())
	l.reconnectDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Start(ctx)

	waiter.notifications <- &pgconn.Notification{Payload: "1"}

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.GreaterOrEqual(t, attempts, 2)
	mu.Unlock()
}
