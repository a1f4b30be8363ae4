package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/jgivc/transmissionbot/internal/util"
)

const (
	serviceName = "reconciler"

	DefaultInterval = 10 * time.Second
)

type WaitList interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Remove(ctx context.Context, torrentKey string) (bool, error)
}

type Daemon interface {
	Get(ctx context.Context, ids []int64) ([]*entity.Torrent, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type EventPublisher interface {
	PublishTorrentFinished(ctx context.Context, event *entity.TorrentFinishedEvent) error
}

type Config struct {
	Interval time.Duration
	// PassTimeout bounds a single pass. Zero means the pass inherits client timeouts only.
	PassTimeout time.Duration
}

// Reconciler periodically matches the wait list against the daemon and
// notifies chats about finished torrents.
type Reconciler struct {
	cfg       Config
	waitList  WaitList
	daemon    Daemon
	notifier  Notifier
	publisher EventPublisher
	now       func() time.Time
	log       *slog.Logger
}

func NewReconciler(cfg Config, waitList WaitList, daemon Daemon, notifier Notifier, log *slog.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	return &Reconciler{
		cfg:      cfg,
		waitList: waitList,
		daemon:   daemon,
		notifier: notifier,
		now:      time.Now,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// WithPublisher sets an optional publisher for finished torrent events.
func (r *Reconciler) WithPublisher(p EventPublisher) *Reconciler {
	r.publisher = p

	return r
}

// Run sleeps for the interval and runs a pass, until ctx is cancelled.
// A failed pass is logged and never stops the loop.
func (r *Reconciler) Run(ctx context.Context) {
	r.log.Info("Started", slog.Duration("interval", r.cfg.Interval))

	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Stopped")

			return
		case <-timer.C:
		}

		if ctx.Err() != nil {
			r.log.Info("Stopped")

			return
		}

		r.runPass(ctx)
		timer.Reset(r.cfg.Interval)
	}
}

func (r *Reconciler) runPass(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Pass panicked", slog.Any("panic", rec))
		}
	}()

	if r.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.PassTimeout)
		defer cancel()
	}

	if err := r.Pass(ctx); err != nil {
		r.log.Error("Pass failed", slog.Any("error", err))
	}
}

// Pass runs one reconciliation pass.
func (r *Reconciler) Pass(ctx context.Context) error {
	entries, err := r.waitList.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("cannot read wait list: %w", err)
	}

	if len(entries) < 1 {
		return nil
	}

	log := r.log.With(slog.String("pass_id", uuid.NewString()))
	log.Debug("Checking torrents", slog.Int("count", len(entries)))

	keyByID := make(map[int64]string, len(entries))
	for key := range entries {
		id, ok := util.ParseID(key)
		if !ok {
			log.Warn("Malformed torrent id in wait list", slog.String("key", key))

			if _, err := r.waitList.Remove(ctx, key); err != nil {
				return err
			}

			continue
		}

		if prev, ok := keyByID[id]; ok {
			log.Warn("Duplicate torrent id in wait list", slog.String("key", key), slog.String("other_key", prev))
		}

		keyByID[id] = key
	}

	if len(keyByID) < 1 {
		return nil
	}

	ids := make([]int64, 0, len(keyByID))
	for id := range keyByID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	torrents, err := r.daemon.Get(ctx, ids)
	if err != nil {
		return fmt.Errorf("cannot get torrents: %w", err)
	}

	found := make(map[int64]struct{}, len(torrents))
	for _, t := range torrents {
		found[t.ID] = struct{}{}
	}

	// Torrents deleted from the daemon will never finish.
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}

		log.Info("Torrent not found in daemon", slog.Int64("torrent_id", id))

		if _, err := r.waitList.Remove(ctx, keyByID[id]); err != nil {
			return err
		}
	}

	for _, t := range torrents {
		key, ok := keyByID[t.ID]
		if !ok || !t.Status.Finished() {
			continue
		}

		if err := r.finish(ctx, log, key, entries[key], t); err != nil {
			return err
		}
	}

	return nil
}

// finish removes the entry first, then notifies. Only the caller that actually
// removed the entry sends the notification.
func (r *Reconciler) finish(ctx context.Context, log *slog.Logger, key, chat string, t *entity.Torrent) error {
	log = log.With(slog.Int64("torrent_id", t.ID), slog.String("chat_id", chat))
	log.Info("Torrent finished", slog.String("name", t.Name))

	removed, err := r.waitList.Remove(ctx, key)
	if err != nil {
		return err
	}

	if !removed {
		log.Info("Torrent already removed from wait list, skip notification")

		return nil
	}

	event := &entity.TorrentFinishedEvent{
		TorrentID:  t.ID,
		Name:       t.Name,
		ChatID:     chat,
		FinishedAt: r.now(),
	}

	chatID, ok := util.ParseID(chat)
	if !ok {
		log.Warn("Malformed chat id, skip notification")
		r.publish(ctx, log, event)

		return nil
	}

	if err := r.notifier.SendMessage(ctx, chatID, FinishedMessage(t)); err != nil {
		r.publish(ctx, log, event)

		return fmt.Errorf("cannot notify chat %d about torrent %d: %w", chatID, t.ID, err)
	}

	event.Notified = true
	r.publish(ctx, log, event)

	return nil
}

func (r *Reconciler) publish(ctx context.Context, log *slog.Logger, event *entity.TorrentFinishedEvent) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.PublishTorrentFinished(ctx, event); err != nil {
		log.Error("Cannot publish event", slog.Any("error", err))
	}
}

func FinishedMessage(t *entity.Torrent) string {
	return fmt.Sprintf("✅ Torrent finished \"%s\"", t.Name)
}
