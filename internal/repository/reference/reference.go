package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/jgivc/transmissionbot/internal/repository/keys"
	"github.com/redis/go-redis/v9"
)

type referenceListRepository struct {
	key string
	cl  redis.Cmdable
	log *slog.Logger
}

func NewReferenceListRepository(cl redis.Cmdable, prefix string, log *slog.Logger) *referenceListRepository {
	return &referenceListRepository{
		key: keys.Key(prefix, keys.KeyReferenceList),
		cl:  cl,
		log: log.With(slog.String("item", "ReferenceListRepository")),
	}
}

// Set replaces the stored list with the ids of torrents, keeping their order.
func (r *referenceListRepository) Set(ctx context.Context, torrents []*entity.Torrent) error {
	ids := make([]int64, 0, len(torrents))
	for _, t := range torrents {
		ids = append(ids, t.ID)
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("cannot marshal reference list: %w", err)
	}

	if err := r.cl.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("cannot save reference list: %w", err)
	}

	return nil
}

// Get returns the last stored list. ok is false when the list was never set;
// an empty listing is returned as an empty, non-nil slice.
func (r *referenceListRepository) Get(ctx context.Context) (ids []int64, ok bool, err error) {
	str, err := r.cl.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("cannot get reference list: %w", err)
	}

	ids = []int64{}
	if err := json.Unmarshal([]byte(str), &ids); err != nil {
		r.log.Error("Cannot decode reference list", slog.String("value", str), slog.Any("error", err))

		return nil, false, fmt.Errorf("cannot decode reference list: %w", err)
	}

	return ids, true, nil
}
