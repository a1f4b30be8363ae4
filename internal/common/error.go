package common

import "fmt"

var (
	ErrTorrentNotFound      = fmt.Errorf("torrent not found")
	ErrFileNotFound         = fmt.Errorf("file not found")
	ErrFileNotDownloaded    = fmt.Errorf("file is not downloaded yet")
	ErrFileTooLarge         = fmt.Errorf("file is too large")
	ErrReferenceListAbsent  = fmt.Errorf("reference list is absent")
	ErrWrongTorrentNumber   = fmt.Errorf("wrong torrent number")
	ErrSearchResultsExpired = fmt.Errorf("search results expired")
	ErrNoSearchResults      = fmt.Errorf("no results")
	ErrRPC                  = fmt.Errorf("rpc error")
	ErrTrackerLogin         = fmt.Errorf("tracker login failed")
	ErrTunnelNotConfigured  = fmt.Errorf("tunnel is not configured")
)
