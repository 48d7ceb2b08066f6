package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"flight-deals-bot/internal/config"
	"flight-deals-bot/internal/listener"
	"flight-deals-bot/internal/notify"
	"flight-deals-bot/internal/provider"
	"flight-deals-bot/internal/scheduler"
	"flight-deals-bot/internal/service"
	"flight-deals-bot/internal/storage"
	"flight-deals-bot/internal/telegram"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newQuoteFetcher() provider.QuoteFetcher {
	return provider.NewAmadeus(provider.AmadeusOptions{
		ClientID:      a.Config.Amadeus.ClientID,
		ClientSecret:  a.Config.Amadeus.ClientSecret,
		BaseURL:       a.Config.Amadeus.BaseURL,
		Timeout:       a.Config.Amadeus.RequestTimeout,
		Origin:        a.Config.Trip.Origin,
		Destination:   a.Config.Trip.Destination,
		DepartureDate: a.Config.Trip.DepartureDate,
		ReturnDate:    a.Config.Trip.ReturnDate,
		Adults:        a.Config.Trip.Adults,
		Currency:      a.Config.Trip.Currency,
	}, a.Logger)
}

func (a *App) newNotifier() notify.Notifier {
	cfg := a.Config.Alerting.Telegram
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		a.Logger.Warn().Msg("telegram bot_token or chat_id not configured; notifications disabled")
		return nil
	}
	return notify.NewTelegram(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.SendTimeout, a.Logger)
}

func (a *App) newUpdatePoller() telegram.UpdatePoller {
	cfg := a.Config.Alerting.Telegram
	if cfg.BotToken == "" {
		return nil
	}
	return telegram.NewClient(telegram.ClientOptions{
		BotToken:    cfg.BotToken,
		BaseURL:     cfg.APIBase,
		PollTimeout: a.Config.Listener.PollTimeout,
		BatchLimit:  a.Config.Listener.BatchLimit,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service: the interval poll loop,
// the daily summary cron, and the command listener, all against shared
// persisted state.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var obsStore storage.ObservationStore
	var cursorStore storage.CursorStore
	if store != nil {
		obsStore = store
		cursorStore = store
	}

	quotes := a.newQuoteFetcher()
	notifier := a.newNotifier()
	svc := service.New(a.Config, quotes, obsStore, notifier, a.Logger)

	summaryCron := cron.New(cron.WithLocation(a.Config.Location()))
	spec := fmt.Sprintf("%d %d * * *", a.Config.Summary.Minute, a.Config.Summary.Hour)
	if _, err := summaryCron.AddFunc(spec, func() {
		summaryCtx, cancelSummary := context.WithTimeout(ctx, time.Minute)
		defer cancelSummary()
		if err := svc.RunDailySummary(summaryCtx); err != nil {
			a.Logger.Error().Err(err).Msg("daily summary failed")
		}
	}); err != nil {
		return fmt.Errorf("register daily summary: %w", err)
	}
	summaryCron.Start()
	defer func() { <-summaryCron.Stop().Done() }()

	if poller := a.newUpdatePoller(); poller != nil {
		lst := listener.New(poller, cursorStore, obsStore, notifier, svc, listener.Options{
			AuthorizedChatID: a.Config.Alerting.Telegram.ChatID,
			IdleDelay:        a.Config.Listener.IdleDelay,
			ErrorBackoff:     a.Config.Listener.ErrorBackoff,
			HistoryLimit:     a.Config.Listener.HistoryLimit,
		}, service.RenderHistory, a.Logger)

		go func() {
			if err := lst.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("command listener terminated")
			}
		}()
	} else {
		a.Logger.Warn().Msg("telegram not configured; command listener disabled")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Poll.Interval,
		StartupDelay: a.Config.Poll.StartupDelay,
		RunOnStart:   a.Config.Poll.InitialRun,
	}, a.Logger)

	a.Logger.Info().
		Str("route", a.Config.Trip.Origin+"-"+a.Config.Trip.Destination).
		Str("summary_spec", spec).
		Msg("starting monitoring service")

	err = sched.Run(ctx, svc.RunPollCycle)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical observations.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
