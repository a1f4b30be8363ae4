package torrent

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/jgivc/transmissionbot/internal/common"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/jgivc/transmissionbot/internal/util"
)

const (
	serviceName = "torrent"

	DefaultListLimit = 10
)

type Daemon interface {
	Get(ctx context.Context, ids []int64) ([]*entity.Torrent, error)
	All(ctx context.Context) ([]*entity.Torrent, error)
	AddURL(ctx context.Context, torrentURL string) (*entity.Torrent, error)
	AddBase64(ctx context.Context, data string) (*entity.Torrent, error)
	Remove(ctx context.Context, id int64, deleteData bool) error
	Session(ctx context.Context) (*entity.SessionInfo, error)
}

type WaitList interface {
	Add(ctx context.Context, torrentID int64, chatID int64) error
	Remove(ctx context.Context, torrentKey string) (bool, error)
}

type ReferenceList interface {
	Set(ctx context.Context, torrents []*entity.Torrent) error
	Get(ctx context.Context) ([]int64, bool, error)
}

// TorrentSource fetches .torrent files of tracker topics.
type TorrentSource interface {
	TorrentFile(ctx context.Context, topicID int64) ([]byte, error)
}

type FileOpener interface {
	Open(downloadDir, name string) (*entity.FileContent, error)
}

type TunnelStatus interface {
	Status(ctx context.Context) (*entity.Tunnel, error)
}

type Config struct {
	ListLimit int
}

type torrentService struct {
	daemon    Daemon
	waitList  WaitList
	reference ReferenceList
	source    TorrentSource
	files     FileOpener
	tunnel    TunnelStatus
	listLimit int
	log       *slog.Logger
}

func NewTorrentService(cfg Config, daemon Daemon, waitList WaitList, reference ReferenceList,
	source TorrentSource, files FileOpener, tunnel TunnelStatus, log *slog.Logger,
) *torrentService {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultListLimit
	}

	return &torrentService{
		daemon:    daemon,
		waitList:  waitList,
		reference: reference,
		source:    source,
		files:     files,
		tunnel:    tunnel,
		listLimit: cfg.ListLimit,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// AddFromURL adds a torrent by the .torrent file URL and waits for it on behalf of chatID.
func (s *torrentService) AddFromURL(ctx context.Context, torrentURL string, chatID int64) (*entity.Torrent, error) {
	t, err := s.daemon.AddURL(ctx, torrentURL)
	if err != nil {
		return nil, fmt.Errorf("cannot add torrent: %w", err)
	}

	return s.wait(ctx, t, chatID)
}

// AddFromFile adds a torrent from the .torrent file content.
func (s *torrentService) AddFromFile(ctx context.Context, data []byte, chatID int64) (*entity.Torrent, error) {
	t, err := s.daemon.AddBase64(ctx, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		return nil, fmt.Errorf("cannot add torrent: %w", err)
	}

	return s.wait(ctx, t, chatID)
}

// AddFromTopic downloads the .torrent file of a tracker topic and adds it.
func (s *torrentService) AddFromTopic(ctx context.Context, topicID int64, chatID int64) (*entity.Torrent, error) {
	if topicID <= 0 {
		return nil, fmt.Errorf("illegal topic id: %d", topicID)
	}

	data, err := s.source.TorrentFile(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("cannot download torrent file of topic %d: %w", topicID, err)
	}

	return s.AddFromFile(ctx, data, chatID)
}

func (s *torrentService) wait(ctx context.Context, t *entity.Torrent, chatID int64) (*entity.Torrent, error) {
	if err := s.waitList.Add(ctx, t.ID, chatID); err != nil {
		s.log.Error("Cannot add torrent to wait list", slog.Int64("torrent_id", t.ID), slog.Any("error", err))

		return nil, fmt.Errorf("torrent %q added, but it will not be tracked: %w", t.Name, err)
	}

	s.log.Info("Torrent added", slog.Int64("torrent_id", t.ID), slog.String("name", t.Name), slog.Int64("chat_id", chatID))

	return t, nil
}

// List returns the most recent torrents and remembers their order for Select.
func (s *torrentService) List(ctx context.Context) ([]*entity.Torrent, error) {
	torrents, err := s.daemon.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot list torrents: %w", err)
	}

	if len(torrents) > s.listLimit {
		torrents = torrents[:s.listLimit]
	}

	if err := s.reference.Set(ctx, torrents); err != nil {
		s.log.Error("Cannot save reference list", slog.Any("error", err))
	}

	return torrents, nil
}

// Select resolves a 1-based ordinal of the last List.
func (s *torrentService) Select(ctx context.Context, ordinal int) (*entity.Torrent, error) {
	if ordinal < 1 {
		return nil, common.ErrWrongTorrentNumber
	}

	ids, ok, err := s.reference.Get(ctx)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, common.ErrReferenceListAbsent
	}

	if ordinal > len(ids) {
		return nil, common.ErrWrongTorrentNumber
	}

	return s.Get(ctx, ids[ordinal-1])
}

func (s *torrentService) Get(ctx context.Context, id int64) (*entity.Torrent, error) {
	torrents, err := s.daemon.Get(ctx, []int64{id})
	if err != nil {
		return nil, fmt.Errorf("cannot get torrent: %w", err)
	}

	if len(torrents) == 0 {
		return nil, fmt.Errorf("%w: id=%d", common.ErrTorrentNotFound, id)
	}

	return torrents[0], nil
}

// Remove deletes the torrent with its data.
func (s *torrentService) Remove(ctx context.Context, id int64) error {
	if err := s.daemon.Remove(ctx, id, true); err != nil {
		return fmt.Errorf("cannot remove torrent: %w", err)
	}

	if _, err := s.waitList.Remove(ctx, util.FormatID(id)); err != nil {
		// The reconciler drops entries of vanished torrents anyway.
		s.log.Warn("Cannot remove torrent from wait list", slog.Int64("torrent_id", id), slog.Any("error", err))
	}

	s.log.Info("Torrent removed", slog.Int64("torrent_id", id))

	return nil
}

func (s *torrentService) Files(ctx context.Context, id int64) ([]entity.TorrentFile, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return t.Files, nil
}

// File opens the index-th file of the torrent. Only fully downloaded files are served.
func (s *torrentService) File(ctx context.Context, id int64, index int) (*entity.FileContent, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(t.Files) {
		return nil, common.ErrFileNotFound
	}

	f := t.Files[index]
	if !f.Downloaded() {
		return nil, common.ErrFileNotDownloaded
	}

	return s.files.Open(t.DownloadDir, f.Name)
}

// Info reports the daemon session and the tunnel state. A failing tunnel
// does not hide the session.
func (s *torrentService) Info(ctx context.Context) (*entity.Info, error) {
	session, err := s.daemon.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot get session: %w", err)
	}

	info := &entity.Info{Session: *session}

	if s.tunnel == nil {
		return info, nil
	}

	tunnel, err := s.tunnel.Status(ctx)
	if err != nil {
		s.log.Warn("Cannot get tunnel status", slog.Any("error", err))

		return info, nil
	}

	info.Tunnel = *tunnel

	return info, nil
}
