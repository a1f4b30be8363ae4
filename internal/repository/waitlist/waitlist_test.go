package waitlist

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*waitListRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cl.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewWaitListRepository(cl, "test", log), mr
}

func TestWaitList(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		repo, _ := newTestRepo(t)

		entries, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("last add wins", func(t *testing.T) {
		repo, mr := newTestRepo(t)

		require.NoError(t, repo.Add(ctx, 42, 100))
		require.NoError(t, repo.Add(ctx, 42, 200))

		entries, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"42": "200"}, entries)
		require.Equal(t, "200", mr.HGet("test:WaitList", "42"))
	})

	t.Run("remove", func(t *testing.T) {
		repo, _ := newTestRepo(t)

		require.NoError(t, repo.Add(ctx, 1, 100))
		require.NoError(t, repo.Add(ctx, 2, -100500))

		removed, err := repo.Remove(ctx, "1")
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = repo.Remove(ctx, "1")
		require.NoError(t, err)
		require.False(t, removed)

		removed, err = repo.Remove(ctx, "unknown")
		require.NoError(t, err)
		require.False(t, removed)

		entries, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"2": "-100500"}, entries)
	})

	t.Run("store failure", func(t *testing.T) {
		repo, mr := newTestRepo(t)
		mr.Close()

		_, err := repo.GetAll(ctx)
		require.Error(t, err)
		require.Error(t, repo.Add(ctx, 1, 1))
	})
}
