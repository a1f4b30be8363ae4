package entity

import "time"

const EventTorrentFinished = "torrent.finished"

// TorrentFinishedEvent is published when a waited torrent finishes downloading.
type TorrentFinishedEvent struct {
	TorrentID  int64     `json:"torrent_id"`
	Name       string    `json:"name"`
	ChatID     string    `json:"chat_id"`
	Notified   bool      `json:"notified"`
	FinishedAt time.Time `json:"finished_at"`
}
