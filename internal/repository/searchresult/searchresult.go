package searchresult

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/jgivc/transmissionbot/internal/repository/keys"
	"github.com/jgivc/transmissionbot/internal/util"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 30 * 24 * time.Hour

type searchResultRepository struct {
	prefix string
	ttl    time.Duration
	cl     redis.Cmdable
	log    *slog.Logger
}

func NewSearchResultRepository(cl redis.Cmdable, prefix string, ttl time.Duration, log *slog.Logger) *searchResultRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &searchResultRepository{
		prefix: keys.Key(prefix, keys.KeySearchResultsPrefix),
		ttl:    ttl,
		cl:     cl,
		log:    log.With(slog.String("item", "SearchResultRepository")),
	}
}

// Create stores results under a fresh token and returns the token.
func (r *searchResultRepository) Create(ctx context.Context, results []entity.SearchResult) (string, error) {
	token, err := util.RandomToken()
	if err != nil {
		return "", fmt.Errorf("cannot generate token: %w", err)
	}

	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("cannot marshal search results: %w", err)
	}

	if err := r.cl.Set(ctx, keys.Key(r.prefix, token), data, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("cannot save search results: %w", err)
	}

	r.log.Debug("Search results saved", slog.String("token", token), slog.Int("count", len(results)))

	return token, nil
}

// Get returns the batch stored under token. ok is false when the token is unknown or expired.
func (r *searchResultRepository) Get(ctx context.Context, token string) (results []entity.SearchResult, ok bool, err error) {
	str, err := r.cl.Get(ctx, keys.Key(r.prefix, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("cannot get search results %s: %w", token, err)
	}

	if err := json.Unmarshal([]byte(str), &results); err != nil {
		return nil, false, fmt.Errorf("cannot decode search results %s: %w", token, err)
	}

	return results, true, nil
}
