package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jgivc/transmissionbot/internal/common"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/jgivc/transmissionbot/internal/util"
)

const requestTimeout = 10 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type WaitListService interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

type TorrentService interface {
	Get(ctx context.Context, id int64) (*entity.Torrent, error)
}

type waitEntry struct {
	TorrentID string `json:"torrentId"`
	ChatID    string `json:"chatId"`
}

type torrentView struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	PercentDone  float64 `json:"percentDone"`
	ETASeconds   int64   `json:"eta"`
	SizeWhenDone int64   `json:"sizeWhenDone"`
	Finished     bool    `json:"finished"`
}

func NewHealthHandler(pinger Pinger, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "HealthHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := pinger.Ping(ctx); err != nil {
			log.Error("Health check failed", slog.Any("error", err))
			http.Error(w, "Store is unavailable", http.StatusServiceUnavailable)

			return
		}

		w.Write([]byte("ok"))
	}
}

func NewWaitListHandler(srv WaitListService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "WaitListHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		entries, err := srv.GetAll(ctx)
		if err != nil {
			log.Error("Cannot get wait list", slog.Any("error", err))
			http.Error(w, "Cannot get wait list", http.StatusInternalServerError)

			return
		}

		out := make([]waitEntry, 0, len(entries))
		for torrentID, chatID := range entries {
			out = append(out, waitEntry{TorrentID: torrentID, ChatID: chatID})
		}
		slices.SortFunc(out, func(a, b waitEntry) int {
			return strings.Compare(a.TorrentID, b.TorrentID)
		})

		writeJSON(w, out)
	}
}

func NewTorrentHandler(srv TorrentService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "TorrentHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := util.ParseID(r.PathValue("id"))
		if !ok || id < 0 {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		t, err := srv.Get(ctx, id)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrTorrentNotFound):
				http.Error(w, "Cannot find torrent", http.StatusNotFound)
			default:
				log.Error("Cannot get torrent", slog.Int64("torrent_id", id), slog.Any("error", err))
				http.Error(w, "Cannot get torrent", http.StatusInternalServerError)
			}

			return
		}

		eta := int64(-1)
		if t.ETAKnown() {
			eta = int64(t.ETA / time.Second)
		}

		writeJSON(w, torrentView{
			ID:           t.ID,
			Name:         t.Name,
			Status:       t.Status.String(),
			PercentDone:  t.PercentDone,
			ETASeconds:   eta,
			SizeWhenDone: t.SizeWhenDone,
			Finished:     t.Status.Finished(),
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
