package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	event := &entity.TorrentFinishedEvent{TorrentID: 3, Name: "Movie", ChatID: "42", Notified: true, FinishedAt: at}

	env := NewEnvelope(entity.EventTorrentFinished, at, event)

	_, err := uuid.Parse(env.Meta.ID)
	require.NoError(t, err)
	require.Equal(t, at.UTC(), env.Meta.OccurredAt)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded struct {
		Meta struct {
			Type   string `json:"type"`
			Source string `json:"source"`
		} `json:"meta"`
		Data struct {
			TorrentID int64  `json:"torrent_id"`
			ChatID    string `json:"chat_id"`
			Notified  bool   `json:"notified"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "torrent.finished", decoded.Meta.Type)
	require.Equal(t, "transmissionbot", decoded.Meta.Source)
	require.Equal(t, int64(3), decoded.Data.TorrentID)
	require.Equal(t, "42", decoded.Data.ChatID)
	require.True(t, decoded.Data.Notified)

	require.NotEqual(t, env.Meta.ID, NewEnvelope(entity.EventTorrentFinished, at, event).Meta.ID)
}
