package fsadapter

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jgivc/transmissionbot/internal/common"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/spf13/afero"
)

// DefaultMaxFileSize is the largest document a Telegram bot may upload.
const DefaultMaxFileSize = 50 << 20

type fsAdapter struct {
	fs      afero.Fs
	maxSize int64
	log     *slog.Logger
}

func NewFSAdapter(maxSize int64, log *slog.Logger) *fsAdapter {
	return NewFSAdapterWithFS(afero.NewOsFs(), maxSize, log)
}

func NewFSAdapterWithFS(fs afero.Fs, maxSize int64, log *slog.Logger) *fsAdapter {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	return &fsAdapter{
		fs:      fs,
		maxSize: maxSize,
		log:     log.With(slog.String("item", "FSAdapter")),
	}
}

func (a *fsAdapter) MaxFileSize() int64 {
	return a.maxSize
}

// Open opens a downloaded torrent file. name is relative to downloadDir.
func (a *fsAdapter) Open(downloadDir, name string) (*entity.FileContent, error) {
	if name == "" || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid file path: %s", name)
	}

	path := filepath.Join(downloadDir, filepath.FromSlash(name))

	info, err := a.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrFileNotFound
		}

		return nil, fmt.Errorf("cannot stat file: %w", err)
	}

	if info.IsDir() {
		return nil, common.ErrFileNotFound
	}

	if info.Size() > a.maxSize {
		return nil, common.ErrFileTooLarge
	}

	f, err := a.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}

	a.log.Debug("Open file", slog.String("path", path), slog.Int64("size", info.Size()))

	return &entity.FileContent{
		Name:       filepath.Base(path),
		Size:       info.Size(),
		ReadCloser: f,
	}, nil
}
