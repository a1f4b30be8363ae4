package reconciler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/jgivc/transmissionbot/internal/repository/waitlist"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWaitList struct {
	mu      sync.Mutex
	entries map[string]string
	removed []string
}

func newMemWaitList(entries map[string]string) *memWaitList {
	return &memWaitList{entries: entries}
}

func (m *memWaitList) GetAll(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		snapshot[k] = v
	}

	return snapshot, nil
}

func (m *memWaitList) Remove(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removed = append(m.removed, key)
	if _, ok := m.entries[key]; !ok {
		return false, nil
	}
	delete(m.entries, key)

	return true, nil
}

func (m *memWaitList) snapshot() map[string]string {
	s, _ := m.GetAll(context.Background())

	return s
}

type fakeDaemon struct {
	mu    sync.Mutex
	calls [][]int64
	get   func(ids []int64) ([]*entity.Torrent, error)
}

func (d *fakeDaemon) Get(_ context.Context, ids []int64) ([]*entity.Torrent, error) {
	d.mu.Lock()
	d.calls = append(d.calls, ids)
	get := d.get
	d.mu.Unlock()

	return get(ids)
}

func (d *fakeDaemon) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.calls)
}

func returning(torrents ...*entity.Torrent) func([]int64) ([]*entity.Torrent, error) {
	return func([]int64) ([]*entity.Torrent, error) {
		return torrents, nil
	}
}

type message struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	messages []message
}

func (n *fakeNotifier) SendMessage(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, message{chatID: chatID, text: text})

	return nil
}

func (n *fakeNotifier) sent() []message {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]message(nil), n.messages...)
}

type fakePublisher struct {
	events []*entity.TorrentFinishedEvent
	err    error
}

func (p *fakePublisher) PublishTorrentFinished(_ context.Context, event *entity.TorrentFinishedEvent) error {
	p.events = append(p.events, event)

	return p.err
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestPass(t *testing.T) {
	testCases := []struct {
		name            string
		entries         map[string]string
		torrents        []*entity.Torrent
		expectedEntries map[string]string
		expectedSent    []message
		expectNoDaemon  bool
	}{
		{
			name:            "empty wait list skips daemon",
			entries:         map[string]string{},
			expectedEntries: map[string]string{},
			expectNoDaemon:  true,
		},
		{
			name:            "vanished torrent is collected silently",
			entries:         map[string]string{"1": "100", "2": "200"},
			torrents:        []*entity.Torrent{{ID: 2, Name: "B", Status: entity.StatusDownloading}},
			expectedEntries: map[string]string{"2": "200"},
		},
		{
			name:            "finished torrent is removed and notified",
			entries:         map[string]string{"1": "100"},
			torrents:        []*entity.Torrent{{ID: 1, Name: "Movie", Status: entity.StatusSeedQueued}},
			expectedEntries: map[string]string{},
			expectedSent:    []message{{chatID: 100, text: `✅ Torrent finished "Movie"`}},
		},
		{
			name:    "active torrents stay",
			entries: map[string]string{"1": "100", "2": "200", "3": "300", "4": "400", "5": "500"},
			torrents: []*entity.Torrent{
				{ID: 1, Status: entity.StatusStopped},
				{ID: 2, Status: entity.StatusCheckQueued},
				{ID: 3, Status: entity.StatusChecking},
				{ID: 4, Status: entity.StatusDownloadQueued},
				{ID: 5, Status: entity.StatusDownloading},
			},
			expectedEntries: map[string]string{"1": "100", "2": "200", "3": "300", "4": "400", "5": "500"},
		},
		{
			name:    "every finished status notifies",
			entries: map[string]string{"5": "1", "6": "2", "7": "3"},
			torrents: []*entity.Torrent{
				{ID: 5, Name: "a", Status: entity.StatusSeedQueued},
				{ID: 6, Name: "b", Status: entity.StatusSeeding},
				{ID: 7, Name: "c", Status: entity.StatusCantFindPeers},
			},
			expectedEntries: map[string]string{},
			expectedSent: []message{
				{chatID: 1, text: `✅ Torrent finished "a"`},
				{chatID: 2, text: `✅ Torrent finished "b"`},
				{chatID: 3, text: `✅ Torrent finished "c"`},
			},
		},
		{
			name:            "status code above known range is finished",
			entries:         map[string]string{"1": "100"},
			torrents:        []*entity.Torrent{{ID: 1, Name: "New", Status: entity.ParseTorrentStatus(8)}},
			expectedEntries: map[string]string{},
			expectedSent:    []message{{chatID: 100, text: `✅ Torrent finished "New"`}},
		},
		{
			name:            "empty chat id removes without notification",
			entries:         map[string]string{"1": ""},
			torrents:        []*entity.Torrent{{ID: 1, Name: "x", Status: entity.StatusSeeding}},
			expectedEntries: map[string]string{},
		},
		{
			name:            "non numeric chat id removes without notification",
			entries:         map[string]string{"1": "undefined"},
			torrents:        []*entity.Torrent{{ID: 1, Name: "x", Status: entity.StatusSeeding}},
			expectedEntries: map[string]string{},
		},
		{
			name:            "group chat id is negative",
			entries:         map[string]string{"9": "-1001234"},
			torrents:        []*entity.Torrent{{ID: 9, Name: "g", Status: entity.StatusSeeding}},
			expectedEntries: map[string]string{},
			expectedSent:    []message{{chatID: -1001234, text: `✅ Torrent finished "g"`}},
		},
		{
			name:            "malformed torrent key is collected",
			entries:         map[string]string{"NaN": "100"},
			expectedEntries: map[string]string{},
			expectNoDaemon:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wl := newMemWaitList(tc.entries)
			daemon := &fakeDaemon{get: returning(tc.torrents...)}
			notifier := &fakeNotifier{}

			r := NewReconciler(Config{}, wl, daemon, notifier, discardLog())
			require.NoError(t, r.Pass(context.Background()))

			require.Equal(t, tc.expectedEntries, wl.snapshot())
			require.ElementsMatch(t, tc.expectedSent, notifier.sent())

			if tc.expectNoDaemon {
				require.Zero(t, daemon.callCount())
			} else {
				require.Equal(t, 1, daemon.callCount())
			}
		})
	}
}

func TestPassWarnsAboutDuplicateIDs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{}))

	wl := newMemWaitList(map[string]string{"1": "100", "01": "200"})
	daemon := &fakeDaemon{get: returning(&entity.Torrent{ID: 1, Name: "A", Status: entity.StatusSeeding})}
	notifier := &fakeNotifier{}

	r := NewReconciler(Config{}, wl, daemon, notifier, log)
	require.NoError(t, r.Pass(context.Background()))

	assert.Contains(t, buf.String(), "Duplicate torrent id in wait list")
	assert.Len(t, wl.snapshot(), 1)
	assert.Len(t, notifier.sent(), 1)

	require.NoError(t, r.Pass(context.Background()))
	assert.Empty(t, wl.snapshot())
	assert.Len(t, notifier.sent(), 2)
}

func TestPassQueriesExactlyWaitedIDs(t *testing.T) {
	wl := newMemWaitList(map[string]string{"3": "1", "1": "1", "2": "1"})
	daemon := &fakeDaemon{get: returning()}

	r := NewReconciler(Config{}, wl, daemon, &fakeNotifier{}, discardLog())
	require.NoError(t, r.Pass(context.Background()))

	require.Equal(t, [][]int64{{1, 2, 3}}, daemon.calls)
}

func TestPassIsIdempotent(t *testing.T) {
	wl := newMemWaitList(map[string]string{"1": "100"})
	daemon := &fakeDaemon{get: returning(&entity.Torrent{ID: 1, Name: "A", Status: entity.StatusSeeding})}
	notifier := &fakeNotifier{}

	r := NewReconciler(Config{}, wl, daemon, notifier, discardLog())

	require.NoError(t, r.Pass(context.Background()))
	require.NoError(t, r.Pass(context.Background()))

	require.Len(t, notifier.sent(), 1)
	require.Equal(t, 1, daemon.callCount(), "second pass has nothing to check")
}

// Another instance removed the entry between our snapshot and our removal.
type racingWaitList struct {
	*memWaitList
}

func (r racingWaitList) Remove(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func TestPassSkipsNotificationWhenAlreadyRemoved(t *testing.T) {
	wl := racingWaitList{newMemWaitList(map[string]string{"1": "100"})}
	daemon := &fakeDaemon{get: returning(&entity.Torrent{ID: 1, Name: "A", Status: entity.StatusSeeding})}
	notifier := &fakeNotifier{}

	r := NewReconciler(Config{}, wl, daemon, notifier, discardLog())
	require.NoError(t, r.Pass(context.Background()))

	require.Empty(t, notifier.sent())
}

func TestPassNotifyFailureStillRemoves(t *testing.T) {
	wl := newMemWaitList(map[string]string{"1": "100"})
	daemon := &fakeDaemon{get: returning(&entity.Torrent{ID: 1, Name: "A", Status: entity.StatusSeeding})}
	notifier := &fakeNotifier{err: errors.New("telegram is down")}
	publisher := &fakePublisher{}

	r := NewReconciler(Config{}, wl, daemon, notifier, discardLog()).WithPublisher(publisher)
	require.Error(t, r.Pass(context.Background()))

	require.Empty(t, wl.snapshot())
	require.Len(t, publisher.events, 1)
	require.False(t, publisher.events[0].Notified)
}

func TestPassPublishesEvents(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	wl := newMemWaitList(map[string]string{"1": "100", "2": ""})
	daemon := &fakeDaemon{get: returning(
		&entity.Torrent{ID: 1, Name: "A", Status: entity.StatusSeeding},
		&entity.Torrent{ID: 2, Name: "B", Status: entity.StatusSeeding},
	)}
	publisher := &fakePublisher{err: errors.New("broker is down")}

	r := NewReconciler(Config{}, wl, daemon, &fakeNotifier{}, discardLog()).WithPublisher(publisher)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Pass(context.Background()), "publish errors are not pass errors")
	require.ElementsMatch(t, []*entity.TorrentFinishedEvent{
		{TorrentID: 1, Name: "A", ChatID: "100", Notified: true, FinishedAt: now},
		{TorrentID: 2, Name: "B", ChatID: "", Notified: false, FinishedAt: now},
	}, publisher.events)
}

func TestRunSurvivesFailedPass(t *testing.T) {
	wl := newMemWaitList(map[string]string{"1": "100"})

	var (
		mu    sync.Mutex
		fails = 1
	)
	daemon := &fakeDaemon{get: func([]int64) ([]*entity.Torrent, error) {
		mu.Lock()
		defer mu.Unlock()

		if fails > 0 {
			fails--

			return nil, errors.New("connection refused")
		}

		return []*entity.Torrent{{ID: 1, Name: "A", Status: entity.StatusSeeding}}, nil
	}}
	notifier := &fakeNotifier{}

	r := NewReconciler(Config{Interval: 5 * time.Millisecond}, wl, daemon, notifier, discardLog())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return len(notifier.sent()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}

	require.GreaterOrEqual(t, daemon.callCount(), 2)
	require.Empty(t, wl.snapshot())
}

func TestRunSurvivesPanic(t *testing.T) {
	wl := newMemWaitList(map[string]string{"1": "100"})

	var (
		mu    sync.Mutex
		calls int
	)
	daemon := &fakeDaemon{get: func([]int64) ([]*entity.Torrent, error) {
		mu.Lock()
		defer mu.Unlock()

		calls++
		if calls == 1 {
			panic("boom")
		}

		return []*entity.Torrent{{ID: 1, Status: entity.StatusDownloading}}, nil
	}}

	r := NewReconciler(Config{Interval: time.Millisecond}, wl, daemon, &fakeNotifier{}, discardLog())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	assert.Eventually(t, func() bool {
		return daemon.callCount() >= 2
	}, 2*time.Second, time.Millisecond)
}

func TestRunStopsBeforeFirstTick(t *testing.T) {
	daemon := &fakeDaemon{get: returning()}
	r := NewReconciler(Config{Interval: time.Hour}, newMemWaitList(map[string]string{"1": "1"}), daemon, &fakeNotifier{}, discardLog())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.Run(ctx)
	require.Zero(t, daemon.callCount())
}

func TestPassWithRedisWaitList(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cl.Close()

	wl := waitlist.NewWaitListRepository(cl, "test", discardLog())
	require.NoError(t, wl.Add(ctx, 1, 100))
	require.NoError(t, wl.Add(ctx, 2, 200))
	require.NoError(t, wl.Add(ctx, 3, 300))

	daemon := &fakeDaemon{get: returning(
		&entity.Torrent{ID: 2, Name: "done", Status: entity.StatusSeeding},
		&entity.Torrent{ID: 3, Name: "active", Status: entity.StatusDownloading},
	)}
	notifier := &fakeNotifier{}

	r := NewReconciler(Config{}, wl, daemon, notifier, discardLog())
	require.NoError(t, r.Pass(ctx))

	entries, err := wl.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"3": "300"}, entries)
	require.Equal(t, []message{{chatID: 200, text: `✅ Torrent finished "done"`}}, notifier.sent())
}
