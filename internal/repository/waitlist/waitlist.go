package waitlist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/transmissionbot/internal/repository/keys"
	"github.com/jgivc/transmissionbot/internal/util"
	"github.com/redis/go-redis/v9"
)

// waitListRepository keeps torrent_id -> chat_id pairs in a single redis hash.
type waitListRepository struct {
	key string
	cl  redis.Cmdable
	log *slog.Logger
}

func NewWaitListRepository(cl redis.Cmdable, prefix string, log *slog.Logger) *waitListRepository {
	return &waitListRepository{
		key: keys.Key(prefix, keys.KeyWaitList),
		cl:  cl,
		log: log.With(slog.String("item", "WaitListRepository")),
	}
}

// Add binds chatID to torrentID. A second call for the same torrent replaces the chat.
func (r *waitListRepository) Add(ctx context.Context, torrentID int64, chatID int64) error {
	if err := r.cl.HSet(ctx, r.key, util.FormatID(torrentID), util.FormatID(chatID)).Err(); err != nil {
		return fmt.Errorf("cannot add torrent %d to wait list: %w", torrentID, err)
	}

	r.log.Debug("Wait for torrent", slog.Int64("torrent_id", torrentID), slog.Int64("chat_id", chatID))

	return nil
}

// Remove deletes the field and reports whether it was present.
// Removing an unknown field is not an error.
func (r *waitListRepository) Remove(ctx context.Context, torrentKey string) (bool, error) {
	n, err := r.cl.HDel(ctx, r.key, torrentKey).Result()
	if err != nil {
		return false, fmt.Errorf("cannot remove torrent %s from wait list: %w", torrentKey, err)
	}

	return n > 0, nil
}

// GetAll returns a snapshot of the wait list keyed by the torrent id as stored.
func (r *waitListRepository) GetAll(ctx context.Context) (map[string]string, error) {
	entries, err := r.cl.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get wait list: %w", err)
	}

	return entries, nil
}
