package transmission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jgivc/transmissionbot/internal/entity"
)

var torrentFields = []string{
	"id",
	"name",
	"status",
	"percentDone",
	"eta",
	"sizeWhenDone",
	"downloadDir",
	"addedDate",
	"files",
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

// rpcID accepts both numeric and string ids.
type rpcID int64

func (id *rpcID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 {
		return fmt.Errorf("empty torrent id")
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("bad torrent id %q: %w", data, err)
	}
	*id = rpcID(n)

	return nil
}

type rpcFile struct {
	Name           string `json:"name"`
	Length         int64  `json:"length"`
	BytesCompleted int64  `json:"bytesCompleted"`
}

type rpcTorrent struct {
	ID           rpcID     `json:"id"`
	Name         string    `json:"name"`
	Status       int       `json:"status"`
	PercentDone  float64   `json:"percentDone"`
	ETA          int64     `json:"eta"`
	SizeWhenDone int64     `json:"sizeWhenDone"`
	DownloadDir  string    `json:"downloadDir"`
	AddedDate    int64     `json:"addedDate"`
	Files        []rpcFile `json:"files"`
}

func (t *rpcTorrent) toEntity() *entity.Torrent {
	torrent := &entity.Torrent{
		ID:           int64(t.ID),
		Name:         t.Name,
		Status:       entity.ParseTorrentStatus(t.Status),
		PercentDone:  t.PercentDone,
		ETA:          time.Duration(t.ETA) * time.Second,
		SizeWhenDone: t.SizeWhenDone,
		DownloadDir:  t.DownloadDir,
		Files:        make([]entity.TorrentFile, 0, len(t.Files)),
	}

	// -1 not available, -2 unknown.
	if t.ETA < 0 {
		torrent.ETA = -1
	}

	if t.AddedDate > 0 {
		torrent.AddedDate = time.Unix(t.AddedDate, 0)
	}

	for _, f := range t.Files {
		torrent.Files = append(torrent.Files, entity.TorrentFile{
			Name:           f.Name,
			Length:         f.Length,
			BytesCompleted: f.BytesCompleted,
		})
	}

	return torrent
}

type torrentGetArgs struct {
	IDs    []int64  `json:"ids,omitempty"`
	Fields []string `json:"fields"`
}

type torrentGetResult struct {
	Torrents []rpcTorrent `json:"torrents"`
}

type torrentAddArgs struct {
	Filename string `json:"filename,omitempty"`
	MetaInfo string `json:"metainfo,omitempty"`
}

type addedTorrent struct {
	ID   rpcID  `json:"id"`
	Name string `json:"name"`
	Hash string `json:"hashString"`
}

type torrentAddResult struct {
	Added     *addedTorrent `json:"torrent-added"`
	Duplicate *addedTorrent `json:"torrent-duplicate"`
}

type torrentRemoveArgs struct {
	IDs             []int64 `json:"ids"`
	DeleteLocalData bool    `json:"delete-local-data"`
}

type sessionGetArgs struct {
	Fields []string `json:"fields"`
}

type sessionGetResult struct {
	DownloadDir          string `json:"download-dir"`
	DownloadDirFreeSpace *int64 `json:"download-dir-free-space"`
	Version              string `json:"version"`
}

type freeSpaceArgs struct {
	Path string `json:"path"`
}

type freeSpaceResult struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size-bytes"`
}
