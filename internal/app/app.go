package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/sobre/internal/blocking"
	"github.com/ykvlv/sobre/internal/clock"
	"github.com/ykvlv/sobre/internal/config"
	"github.com/ykvlv/sobre/internal/domain"
	"github.com/ykvlv/sobre/internal/launch"
	"github.com/ykvlv/sobre/internal/notify"
	"github.com/ykvlv/sobre/internal/pendingaction"
	"github.com/ykvlv/sobre/internal/push"
	"github.com/ykvlv/sobre/internal/reminder"
	"github.com/ykvlv/sobre/internal/scheduler"
	"github.com/ykvlv/sobre/internal/server"
	"github.com/ykvlv/sobre/internal/store"
	"github.com/ykvlv/sobre/internal/telegram"
)

// App wires the device-side components around one SQLite database.
type App struct {
	cfg   config.Config
	log   *zap.Logger
	clock clock.Clock
	repo  *store.SQLiteRepo
	text  reminder.Copy

	platform   domain.Platform
	capability blocking.Capability // nil when the platform has no blocking
	center     *notify.LocalCenter
	reminder   *reminder.Scheduler
	service    *blocking.Service
	bridge     *pendingaction.StoreBridge
	launch     *launch.Context
	nav        *RouteRecorder
	pending    *pendingaction.Notifier
}

// New opens the database and builds every component. c may be nil to use
// the wall clock in DEFAULT_TZ.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, c clock.Clock) (*App, error) {
	loc, err := domain.ValidateTZ(cfg.DefaultTZ)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.Real{}
	}
	c = clock.InLocation(c, loc)

	text, err := config.LoadCopy(cfg.CopyFile)
	if err != nil {
		return nil, err
	}

	repo, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		clock:    c,
		repo:     repo,
		text:     reminder.Copy{Title: text.Title, Body: text.Body},
		platform: domain.Platform(cfg.Platform),
		launch:   launch.New(),
		nav:      &RouteRecorder{log: log},
	}
	if a.text.Title == "" && a.text.Body == "" {
		a.text = reminder.DefaultCopy
	}

	local := blocking.NewLocal(repo, c, log)
	if a.platform.SupportsBlocking() {
		a.capability = local
	}

	kv := store.NewNamespaced(repo, cfg.KVNamespace)
	a.center = notify.NewLocalCenter(kv, repo, notify.StaticPrompter(cfg.NotifyAnswer), c, log)
	a.reminder = reminder.New(a.platform, a.capability, a.center, kv, c, a.text, log)
	a.service = blocking.NewService(local, c, log, a.reminder)
	a.bridge = pendingaction.NewStoreBridge(repo, c)

	var bridge pendingaction.Bridge
	if a.platform.SupportsBlocking() {
		bridge = a.bridge
	}
	a.pending = pendingaction.NewNotifier(a.launch, bridge, a.capability, a.nav, cfg.PendingMaxAge, log)

	return a, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.repo.Close()
}

// Run serves the push API, delivers due reminders and, when a bot token is
// configured, answers Telegram link commands. It returns on SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting sobre",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("platform", string(a.platform)),
		zap.String("device", a.cfg.DeviceKey),
	)

	registry := push.NewRegistry(push.NewExpoTransport(a.cfg.ExpoPushURL, a.cfg.ExpoAccessToken))

	var updCh tgbotapi.UpdatesChannel
	var router *telegram.Router
	if a.cfg.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(a.cfg.BotToken)
		if err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		bot.Debug = false
		registry.Register(push.NewTelegramTransport(bot))
		router = telegram.NewRouter(bot, a.log, a.repo, a.clock)

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updCh = bot.GetUpdatesChan(u)
		defer bot.StopReceivingUpdates()
	}
	a.log.Info("push providers ready", zap.Strings("providers", registry.Providers()))
	if a.cfg.APIToken == "" {
		a.log.Warn("API_TOKEN is empty; /v1 routes accept unauthenticated requests")
	}

	srv := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      server.New(a.repo, registry, push.DailyReset(a.text.Title, a.text.Body), a.clock, a.cfg.APIToken, a.log),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := scheduler.New(a.repo, a.repo, a.cfg.DeviceKey, registry, a.reminder, a.clock, a.log, a.cfg.DispatchInterval)
	go dispatcher.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := srv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			return nil

		case upd := <-updCh:
			router.HandleUpdate(ctx, upd)
		}
	}
}
