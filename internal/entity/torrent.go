package entity

import (
	"io"
	"time"
)

// TorrentStatus is the Transmission torrent status code.
type TorrentStatus int

const (
	StatusStopped TorrentStatus = iota
	StatusCheckQueued
	StatusChecking
	StatusDownloadQueued
	StatusDownloading
	StatusSeedQueued
	StatusSeeding
	// StatusCantFindPeers is reported by some Transmission builds but is missing from the RPC docs.
	StatusCantFindPeers

	StatusUnknown TorrentStatus = -1
)

// ParseTorrentStatus maps a raw status code to a status. Codes above the known
// range are kept as is so they still count as finished.
func ParseTorrentStatus(code int) TorrentStatus {
	if code < int(StatusStopped) {
		return StatusUnknown
	}

	return TorrentStatus(code)
}

// Finished reports whether the raw code is past the downloading states.
func (s TorrentStatus) Finished() bool {
	return s > StatusDownloading
}

func (s TorrentStatus) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusCheckQueued, StatusChecking:
		return "Checking"
	case StatusDownloadQueued, StatusDownloading:
		return "Downloading"
	case StatusSeedQueued, StatusSeeding:
		return "Seeding"
	case StatusCantFindPeers:
		return "Cannot find peers"
	default:
		return "Unknown"
	}
}

// Torrent is a torrent as reported by the download daemon.
type Torrent struct {
	ID           int64
	Name         string
	Status       TorrentStatus
	PercentDone  float64 // 0.0 - 1.0
	ETA          time.Duration
	SizeWhenDone int64
	DownloadDir  string
	AddedDate    time.Time
	Files        []TorrentFile
}

// ETAKnown reports whether the daemon could estimate the remaining time.
func (t *Torrent) ETAKnown() bool {
	return t.ETA >= 0
}

// TorrentFile is a single file inside a torrent.
type TorrentFile struct {
	Name           string // Path relative to the torrent download dir
	Length         int64
	BytesCompleted int64
}

func (f *TorrentFile) Downloaded() bool {
	return f.BytesCompleted == f.Length
}

// SessionInfo describes the daemon session.
type SessionInfo struct {
	DownloadDir    string
	FreeSpaceBytes int64
	Version        string
}

// FileContent is an opened downloaded file.
type FileContent struct {
	Name string
	Size int64
	io.ReadCloser
}
