package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jgivc/transmissionbot/internal/adapter/mdadapter"
	"github.com/jgivc/transmissionbot/internal/common"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/jgivc/transmissionbot/internal/util"
)

func (b *Bot) start(_ context.Context, req *request) error {
	return b.replyPage(req.chatID, mdadapter.PageStart)
}

func (b *Bot) help(_ context.Context, req *request) error {
	return b.replyPage(req.chatID, mdadapter.PageHelp)
}

func (b *Bot) replyPage(chatID int64, name string) error {
	page, err := b.pages.RenderPage(name)
	if err != nil {
		return err
	}

	b.replyHTML(chatID, page.HTML)

	return nil
}

func (b *Bot) list(ctx context.Context, req *request) error {
	torrents, err := b.torrents.List(ctx)
	if err != nil {
		return err
	}

	if len(torrents) == 0 {
		b.reply(req.chatID, "No torrents")

		return nil
	}

	b.reply(req.chatID, renderTorrentList(torrents, b.cfg.ListLimit))

	return nil
}

func (b *Bot) info(ctx context.Context, req *request) error {
	info, err := b.torrents.Info(ctx)
	if err != nil {
		return err
	}

	b.reply(req.chatID, renderInfo(info))

	return nil
}

func (b *Bot) startTunnel(ctx context.Context, req *request) error {
	if b.tunnel == nil {
		return common.ErrTunnelNotConfigured
	}

	t, err := b.tunnel.Start(ctx)
	if err != nil {
		return err
	}

	b.reply(req.chatID, t.URL)

	return nil
}

func (b *Bot) stopTunnel(ctx context.Context, req *request) error {
	if b.tunnel == nil {
		return common.ErrTunnelNotConfigured
	}

	if err := b.tunnel.Stop(ctx); err != nil {
		return err
	}

	b.reply(req.chatID, "Tunnel stopped")

	return nil
}

func (b *Bot) selectTorrent(ctx context.Context, req *request) error {
	id, ok := util.ParseID(req.match[1])
	if !ok {
		return nil
	}

	t, err := b.torrents.Get(ctx, id)
	if errors.Is(err, common.ErrTorrentNotFound) {
		b.reply(req.chatID, fmt.Sprintf("Cannot find this torrent: id=%d", id))

		return nil
	}
	if err != nil {
		return err
	}

	b.showTorrent(req.chatID, t)

	return nil
}

func (b *Bot) selectByOrdinal(ctx context.Context, req *request) error {
	n, err := strconv.Atoi(req.match[1])
	if err != nil {
		n = 0
	}

	t, err := b.torrents.Select(ctx, n)
	switch {
	case errors.Is(err, common.ErrReferenceListAbsent), errors.Is(err, common.ErrWrongTorrentNumber):
		b.reply(req.chatID, "Wrong torrent number. To see the torrents, run /list")
	case errors.Is(err, common.ErrTorrentNotFound):
		b.reply(req.chatID, "Cannot find this torrent")
	case err != nil:
		return err
	default:
		b.showTorrent(req.chatID, t)
	}

	return nil
}

func (b *Bot) showTorrent(chatID int64, t *entity.Torrent) {
	id := util.FormatID(t.ID)

	b.replyWithKeyboard(chatID, renderTorrent(t),
		tgbotapi.NewInlineKeyboardButtonData("❌ Delete", "confirmDeleteTorrent:"+id),
		tgbotapi.NewInlineKeyboardButtonData("📁 Files", "listFiles:"+id),
	)
}

func (b *Bot) downloadTopic(ctx context.Context, req *request) error {
	topicID, ok := util.ParseID(req.match[1])
	if !ok {
		return errors.New("illegal topic id")
	}

	t, err := b.torrents.AddFromTopic(ctx, topicID, req.chatID)
	if err != nil {
		return err
	}

	b.reply(req.chatID, fmt.Sprintf("Added \"%s\"", t.Name))

	return nil
}

func (b *Bot) addTorrentFile(ctx context.Context, req *request) error {
	fileURL, err := b.api.GetFileDirectURL(req.message.Document.FileID)
	if err != nil {
		return fmt.Errorf("cannot get file link: %w", err)
	}

	t, err := b.torrents.AddFromURL(ctx, fileURL, req.chatID)
	if err != nil {
		return err
	}

	b.reply(req.chatID, fmt.Sprintf("Added \"%s\"", t.Name))

	return nil
}

func (b *Bot) searchTorrent(ctx context.Context, req *request) error {
	b.reply(req.chatID, "Searching...")

	found, err := b.search.Search(ctx, req.message.Text)
	if errors.Is(err, common.ErrNoSearchResults) {
		b.reply(req.chatID, "No results")

		return nil
	}
	if err != nil {
		return err
	}

	b.replyHTML(req.chatID, renderSearchResults(found.Results))

	if found.More != nil {
		b.reply(req.chatID, fmt.Sprintf("More %d results /more_%s", found.More.Count, found.More.Token))
	}

	return nil
}

func (b *Bot) moreResults(ctx context.Context, req *request) error {
	results, err := b.search.More(ctx, req.match[1])
	if errors.Is(err, common.ErrSearchResultsExpired) {
		b.reply(req.chatID, "No results")

		return nil
	}
	if err != nil {
		return err
	}

	b.replyHTML(req.chatID, renderSearchResults(results))

	return nil
}

func (b *Bot) sendFile(ctx context.Context, req *request) error {
	id, ok := util.ParseID(req.match[1])
	if !ok {
		return common.ErrTorrentNotFound
	}

	index, err := strconv.Atoi(req.match[2])
	if err != nil {
		return common.ErrFileNotFound
	}

	f, err := b.torrents.File(ctx, id, index)
	if err != nil {
		return err
	}
	defer f.Close()

	b.log.Info("Send file", slog.Int64("torrent_id", id), slog.String("name", f.Name), slog.Int64("size", f.Size))

	return b.send(tgbotapi.NewDocument(req.chatID, tgbotapi.FileReader{Name: f.Name, Reader: f}))
}

func (b *Bot) confirmDelete(_ context.Context, req *request) error {
	id := req.match[1]

	b.replyWithKeyboard(req.chatID, "Are you sure?",
		tgbotapi.NewInlineKeyboardButtonData("❌ Yes, delete it", "deleteTorrentYes:"+id),
		tgbotapi.NewInlineKeyboardButtonData("✅ No, leave it", "deleteTorrentNo:"+id),
	)

	return nil
}

func (b *Bot) deleteYes(ctx context.Context, req *request) error {
	id, ok := util.ParseID(req.match[1])
	if !ok {
		return nil
	}

	if err := b.torrents.Remove(ctx, id); err != nil {
		return err
	}

	b.deleteMessage(req.chatID, req.messageID)
	b.reply(req.chatID, "Torrent deleted\n/list")

	return nil
}

func (b *Bot) deleteNo(_ context.Context, req *request) error {
	b.deleteMessage(req.chatID, req.messageID)

	return nil
}

func (b *Bot) listFiles(ctx context.Context, req *request) error {
	id, ok := util.ParseID(req.match[1])
	if !ok {
		return nil
	}

	files, err := b.torrents.Files(ctx, id)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		b.reply(req.chatID, "Files not found")

		return nil
	}

	b.replyHTML(req.chatID, renderFiles(id, files, b.cfg.FilesPerMessage, b.cfg.MaxFileSize))

	return nil
}
