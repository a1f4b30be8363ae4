package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jgivc/transmissionbot/internal/adapter/events"
	"github.com/jgivc/transmissionbot/internal/adapter/fsadapter"
	"github.com/jgivc/transmissionbot/internal/adapter/httpclient"
	"github.com/jgivc/transmissionbot/internal/adapter/mdadapter"
	"github.com/jgivc/transmissionbot/internal/adapter/rutracker"
	"github.com/jgivc/transmissionbot/internal/adapter/transmission"
	"github.com/jgivc/transmissionbot/internal/adapter/tunnel"
	"github.com/jgivc/transmissionbot/internal/config"
	httphandler "github.com/jgivc/transmissionbot/internal/handler/http"
	"github.com/jgivc/transmissionbot/internal/handler/telegram"
	"github.com/jgivc/transmissionbot/internal/logger"
	"github.com/jgivc/transmissionbot/internal/repository/reference"
	"github.com/jgivc/transmissionbot/internal/repository/searchresult"
	"github.com/jgivc/transmissionbot/internal/repository/waitlist"
	"github.com/jgivc/transmissionbot/internal/service/reconciler"
	"github.com/jgivc/transmissionbot/internal/service/search"
	"github.com/jgivc/transmissionbot/internal/service/torrent"
	"github.com/redis/go-redis/v9"
	"go.uber.org/ratelimit"
)

const (
	shutdownTimeout = 5 * time.Second
	pingTimeout     = 5 * time.Second
)

type App struct {
	cfgPath string
	cfg     *config.Config
	rdb     *redis.Client
	srv     *http.Server

	daemon     *transmission.Client
	waitList   waitListStore
	bot        *telegram.Bot
	reconciler *reconciler.Reconciler
	publisher  *events.Publisher

	logCloser io.Closer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	log       *slog.Logger
}

type waitListStore interface {
	reconciler.WaitList
	torrent.WaitList
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

// setup loads the config and opens the store and the daemon client.
func (a *App) setup(ctx context.Context) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, closer, err := logger.New(cfg.LogConfig)
	if err != nil {
		return err
	}
	a.log = log
	a.logCloser = closer

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("cannot parse redis url: %w", err)
	}

	a.rdb = redis.NewClient(opt)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := a.rdb.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("cannot connect to redis: %w", err)
	}

	a.waitList = waitlist.NewWaitListRepository(a.rdb, cfg.KeyPrefix, log)

	a.daemon = transmission.NewClient(transmission.Config{
		Host:     cfg.Transmission.Host,
		Port:     cfg.Transmission.Port,
		Path:     cfg.Transmission.Path,
		HTTPS:    cfg.Transmission.HTTPS,
		Username: cfg.Transmission.Username,
		Password: cfg.Transmission.Password,
	}, httpclient.NewRetryableHTTPClient(httpclient.Options{Timeout: cfg.Transmission.Timeout}, log), log)

	return nil
}

// build wires the bot and the reconciler on top of setup.
func (a *App) build(ctx context.Context) error {
	if err := a.setup(ctx); err != nil {
		return err
	}

	cfg, log := a.cfg, a.log

	trackerClient := httpclient.NewRetryableHTTPClient(httpclient.Options{
		Timeout: cfg.Transmission.Timeout,
		Limiter: ratelimit.New(cfg.Search.RateLimit),
	}, log)

	tracker, err := rutracker.NewClient(rutracker.Config{
		BaseURL:  cfg.Search.BaseURL,
		Login:    cfg.Search.Login,
		Password: cfg.Search.Password,
	}, trackerClient, log)
	if err != nil {
		return fmt.Errorf("cannot create tracker client: %w", err)
	}

	var (
		tunnelSrv    telegram.TunnelService
		tunnelStatus torrent.TunnelStatus
	)

	if cfg.Tunnel.URL != "" {
		tc := tunnel.NewClient(cfg.Tunnel.URL,
			httpclient.NewRetryableHTTPClient(httpclient.Options{Timeout: cfg.Transmission.Timeout}, log), log)
		tunnelSrv, tunnelStatus = tc, tc
	}

	torrentSrv := torrent.NewTorrentService(
		torrent.Config{ListLimit: cfg.ListLimit},
		a.daemon,
		a.waitList,
		reference.NewReferenceListRepository(a.rdb, cfg.KeyPrefix, log),
		tracker,
		fsadapter.NewFSAdapter(cfg.MaxFileSize, log),
		tunnelStatus,
		log,
	)

	searchSrv := search.NewSearchService(
		tracker,
		searchresult.NewSearchResultRepository(a.rdb, cfg.KeyPrefix, cfg.Search.CacheTTL, log),
		cfg.Search.MoreLimit,
		log,
	)

	pages := mdadapter.NewMDAdapter(map[string]string{
		"list_limit":    strconv.Itoa(cfg.ListLimit),
		"poll_interval": cfg.Reconciler.PollInterval.String(),
	})

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("cannot connect to telegram: %w", err)
	}
	api.Debug = cfg.Telegram.Debug

	log.Info("Authorized on telegram", slog.String("bot", api.Self.UserName))

	a.bot = telegram.NewBot(telegram.Config{
		AllowedUsers:    cfg.Telegram.AllowedUsers,
		ListLimit:       cfg.ListLimit,
		FilesPerMessage: cfg.FilesPerMessage,
		MaxFileSize:     cfg.MaxFileSize,
		SendRate:        cfg.Telegram.SendRate,
	}, api, torrentSrv, searchSrv, tunnelSrv, pages, log)

	a.reconciler = reconciler.NewReconciler(reconciler.Config{
		Interval:    cfg.Reconciler.PollInterval,
		PassTimeout: cfg.Reconciler.PassTimeout,
	}, a.waitList, a.daemon, a.bot, log)

	if cfg.Events.URL != "" {
		p, err := events.NewPublisher(cfg.Events.URL, cfg.Events.Exchange, log)
		if err != nil {
			return err
		}

		a.publisher = p
		a.reconciler.WithPublisher(p)
	}

	if cfg.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /healthz", httphandler.NewHealthHandler(httphandler.PingFunc(func(ctx context.Context) error {
			return a.rdb.Ping(ctx).Err()
		}), log))
		mux.Handle("GET /waitlist/{$}", httphandler.NewWaitListHandler(a.waitList, log))
		mux.Handle("GET /torrent/{id}/{$}", httphandler.NewTorrentHandler(torrentSrv, log))

		a.srv = &http.Server{
			Addr:    cfg.Listen,
			Handler: mux,
		}
	}

	return nil
}

// Start runs the bot, the reconciler and the status server until Stop is called.
func (a *App) Start(ctx context.Context) error {
	if err := a.build(ctx); err != nil {
		return err
	}

	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.bot.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.reconciler.Run(ctx)
	}()

	if a.srv != nil {
		go func() {
			a.log.Info("Start listen", slog.String("addr", a.cfg.Listen))

			if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			}
		}()
	}

	return nil
}

// Reconcile runs a single reconciliation pass and exits.
func (a *App) Reconcile(ctx context.Context) error {
	if err := a.build(ctx); err != nil {
		return err
	}

	return a.reconciler.Pass(ctx)
}

// PrintWaitList writes the wait list as "torrent_id chat_id" lines, sorted by torrent id.
func (a *App) PrintWaitList(ctx context.Context, w io.Writer) error {
	if err := a.setup(ctx); err != nil {
		return err
	}

	entries, err := a.waitList.GetAll(ctx)
	if err != nil {
		return err
	}

	writeWaitList(w, entries, a.log)

	return nil
}

type waitEntry struct {
	id  int64
	key string
}

func writeWaitList(w io.Writer, entries map[string]string, log *slog.Logger) {
	sorted := make([]waitEntry, 0, len(entries))
	for key := range entries {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			log.Warn("Wrong wait list key", slog.String("torrent_key", key))

			continue
		}
		sorted = append(sorted, waitEntry{id: id, key: key})
	}
	slices.SortFunc(sorted, func(a, b waitEntry) int {
		if c := cmp.Compare(a.id, b.id); c != 0 {
			return c
		}

		return strings.Compare(a.key, b.key)
	})

	for _, e := range sorted {
		fmt.Fprintf(w, "%d %s\n", e.id, entries[e.key])
	}
}

func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}

	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Error("Cannot shutdown server", slog.Any("error", err))
		}
	}

	a.wg.Wait()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Error("Cannot close publisher", slog.Any("error", err))
		}
	}

	if a.rdb != nil {
		a.rdb.Close()
	}

	if a.logCloser != nil {
		a.logCloser.Close()
	}
}
