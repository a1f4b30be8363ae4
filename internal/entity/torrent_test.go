package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTorrentStatus(t *testing.T) {
	tests := []struct {
		code     int
		status   TorrentStatus
		label    string
		finished bool
	}{
		{code: 0, status: StatusStopped, label: "Stopped"},
		{code: 2, status: StatusChecking, label: "Checking"},
		{code: 4, status: StatusDownloading, label: "Downloading"},
		{code: 5, status: StatusSeedQueued, label: "Seeding", finished: true},
		{code: 6, status: StatusSeeding, label: "Seeding", finished: true},
		{code: 7, status: StatusCantFindPeers, label: "Cannot find peers", finished: true},
		{code: 8, status: TorrentStatus(8), label: "Unknown", finished: true},
		{code: -3, status: StatusUnknown, label: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			s := ParseTorrentStatus(tt.code)
			assert.Equal(t, tt.status, s)
			assert.Equal(t, tt.label, s.String())
			assert.Equal(t, tt.finished, s.Finished())
		})
	}
}
