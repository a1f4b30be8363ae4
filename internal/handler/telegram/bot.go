package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jgivc/transmissionbot/internal/adapter/mdadapter"
	"github.com/jgivc/transmissionbot/internal/entity"
	"github.com/jgivc/transmissionbot/internal/service/search"
	"go.uber.org/ratelimit"
)

const (
	torrentMimeType = "application/x-bittorrent"

	defaultUpdateTimeout   = 60
	defaultSendRate        = 20
	defaultFilesPerMessage = 25
	defaultListLimit       = 10
	defaultMaxFileSize     = 50 << 20
	handleTimeout          = 2 * time.Minute
)

// BotAPI is the subset of *tgbotapi.BotAPI the bot uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type TorrentService interface {
	AddFromURL(ctx context.Context, torrentURL string, chatID int64) (*entity.Torrent, error)
	AddFromTopic(ctx context.Context, topicID int64, chatID int64) (*entity.Torrent, error)
	List(ctx context.Context) ([]*entity.Torrent, error)
	Select(ctx context.Context, ordinal int) (*entity.Torrent, error)
	Get(ctx context.Context, id int64) (*entity.Torrent, error)
	Remove(ctx context.Context, id int64) error
	Files(ctx context.Context, id int64) ([]entity.TorrentFile, error)
	File(ctx context.Context, id int64, index int) (*entity.FileContent, error)
	Info(ctx context.Context) (*entity.Info, error)
}

type SearchService interface {
	Search(ctx context.Context, query string) (*search.Found, error)
	More(ctx context.Context, token string) ([]entity.RankedSearchResult, error)
}

type TunnelService interface {
	Start(ctx context.Context) (*entity.Tunnel, error)
	Stop(ctx context.Context) error
}

type PageRenderer interface {
	RenderPage(name string) (*mdadapter.Page, error)
}

type Config struct {
	AllowedUsers    []string
	ListLimit       int
	FilesPerMessage int
	MaxFileSize     int64
	// SendRate is the number of messages per second the bot may send.
	SendRate      int
	UpdateTimeout int
}

type request struct {
	chatID    int64
	messageID int
	match     []string
	message   *tgbotapi.Message
}

type handlerFunc func(ctx context.Context, req *request) error

type route struct {
	re *regexp.Regexp
	h  handlerFunc
}

type Bot struct {
	cfg      Config
	api      BotAPI
	torrents TorrentService
	search   SearchService
	tunnel   TunnelService
	pages    PageRenderer
	limiter  ratelimit.Limiter

	messages  []route
	callbacks []route

	wg  sync.WaitGroup
	log *slog.Logger
}

func NewBot(cfg Config, api BotAPI, torrents TorrentService, searchSrv SearchService, tunnel TunnelService,
	pages PageRenderer, log *slog.Logger,
) *Bot {
	if cfg.SendRate <= 0 {
		cfg.SendRate = defaultSendRate
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = defaultUpdateTimeout
	}
	if cfg.FilesPerMessage <= 0 {
		cfg.FilesPerMessage = defaultFilesPerMessage
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}

	b := &Bot{
		cfg:      cfg,
		api:      api,
		torrents: torrents,
		search:   searchSrv,
		tunnel:   tunnel,
		pages:    pages,
		limiter:  ratelimit.New(cfg.SendRate),
		log:      log.With(slog.String("item", "TelegramBot")),
	}

	b.messages = []route{
		{regexp.MustCompile(`^/start(?:@\w+)?$`), b.start},
		{regexp.MustCompile(`^/help(?:@\w+)?$`), b.help},
		{regexp.MustCompile(`^/list(?:@\w+)?$`), b.list},
		{regexp.MustCompile(`^/info(?:@\w+)?$`), b.info},
		{regexp.MustCompile(`^/tunnel(?:@\w+)?$`), b.startTunnel},
		{regexp.MustCompile(`^/untunnel(?:@\w+)?$`), b.stopTunnel},
		{regexp.MustCompile(`^/torrent(\d+)$`), b.selectTorrent},
		{regexp.MustCompile(`^(\d+)$`), b.selectByOrdinal},
		{regexp.MustCompile(`^https://rutracker\.org/forum/viewtopic\.php\?t=(\d+)`), b.downloadTopic},
		{regexp.MustCompile(`^/topic(\d+)$`), b.downloadTopic},
		{regexp.MustCompile(`^/more_([a-f0-9]+)$`), b.moreResults},
		{regexp.MustCompile(`^/file(\d+)_(\d+)$`), b.sendFile},
		{regexp.MustCompile(`(?s)^.+$`), b.searchTorrent},
	}

	b.callbacks = []route{
		{regexp.MustCompile(`^confirmDeleteTorrent:(\d+)$`), b.confirmDelete},
		{regexp.MustCompile(`^deleteTorrentYes:(\d+)$`), b.deleteYes},
		{regexp.MustCompile(`^deleteTorrentNo:(\d+)$`), b.deleteNo},
		{regexp.MustCompile(`^listFiles:(\d+)$`), b.listFiles},
	}

	return b
}

// Run receives updates until ctx is cancelled. In-flight updates are
// finished before Run returns.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeout
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("Start receiving updates")

	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("Stop receiving updates")

			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			b.wg.Add(1)
			go func() {
				defer b.wg.Done()

				hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handleTimeout)
				defer cancel()

				b.HandleUpdate(hctx, update)
			}()
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Update handler panicked", slog.Int("update_id", update.UpdateID), slog.Any("panic", r))
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) authorized(chat *tgbotapi.Chat) bool {
	if chat == nil {
		return false
	}

	if chat.UserName != "" && slices.Contains(b.cfg.AllowedUsers, chat.UserName) {
		return true
	}

	b.log.Warn("Access denied", slog.Int64("chat_id", chat.ID), slog.String("username", chat.UserName))

	return false
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.authorized(msg.Chat) {
		if msg.Chat != nil {
			b.reply(msg.Chat.ID, "You are not authenticated to this bot")
		}

		return
	}

	req := &request{chatID: msg.Chat.ID, messageID: msg.MessageID, message: msg}

	if msg.Document != nil {
		if msg.Document.MimeType == torrentMimeType {
			b.dispatch(ctx, req, b.addTorrentFile)
		}

		return
	}

	for _, r := range b.messages {
		if m := r.re.FindStringSubmatch(msg.Text); m != nil {
			req.match = m
			b.dispatch(ctx, req, r.h)

			return
		}
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Warn("Cannot answer callback", slog.Any("error", err))
	}

	if cq.Message == nil || !b.authorized(cq.Message.Chat) {
		return
	}

	req := &request{chatID: cq.Message.Chat.ID, messageID: cq.Message.MessageID, message: cq.Message}

	for _, r := range b.callbacks {
		if m := r.re.FindStringSubmatch(cq.Data); m != nil {
			req.match = m
			b.dispatch(ctx, req, r.h)

			return
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, req *request, h handlerFunc) {
	if err := h(ctx, req); err != nil {
		b.log.Error("Cannot handle request", slog.Int64("chat_id", req.chatID), slog.Any("error", err))
		b.reply(req.chatID, fmt.Sprintf("Error: %s", err))
	}
}

// SendMessage sends a plain text message. It is used for notifications.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	b.limiter.Take()

	_, err := b.api.Send(c)

	return err
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("Cannot send message", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if err := b.send(msg); err != nil {
		b.log.Error("Cannot send message", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, buttons ...tgbotapi.InlineKeyboardButton) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))

	if err := b.send(msg); err != nil {
		b.log.Error("Cannot send message", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	b.limiter.Take()

	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Warn("Cannot delete message", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
