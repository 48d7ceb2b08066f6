// Package listener consumes inbound chat commands. It owns the durable
// consumption cursor: every update is handled first and the cursor is then
// advanced to id+1, so a crash mid-batch re-delivers only unconfirmed updates
// and never duplicates confirmed ones.
package listener

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flight-deals-bot/internal/notify"
	"flight-deals-bot/internal/storage"
	"flight-deals-bot/internal/telegram"
)

const helpText = "Commands:\n" +
	"/check   - run immediate search\n" +
	"/history - top 10 lowest prices\n" +
	"/help    - this message"

const fallbackText = "Send /check, /history or /help"

// PollRunner triggers one synchronous poll cycle.
type PollRunner interface {
	RunPollCycle(ctx context.Context) error
}

// Options tune the consumption loop.
type Options struct {
	AuthorizedChatID int64
	IdleDelay        time.Duration
	ErrorBackoff     time.Duration
	HistoryLimit     int
}

// Listener runs the long-poll command loop.
type Listener struct {
	poller   telegram.UpdatePoller
	cursor   storage.CursorStore
	store    storage.ObservationStore
	notifier notify.Notifier
	runner   PollRunner
	opts     Options
	logger   zerolog.Logger
	render   func([]storage.Observation) string
}

// New constructs the listener. cursor and store may be nil when persistence
// is disabled; the loop then degrades to an in-memory offset.
func New(poller telegram.UpdatePoller, cursor storage.CursorStore, store storage.ObservationStore, notifier notify.Notifier, runner PollRunner, opts Options, render func([]storage.Observation) string, logger zerolog.Logger) *Listener {
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = 2 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 5 * time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}

	return &Listener{
		poller:   poller,
		cursor:   cursor,
		store:    store,
		notifier: notifier,
		runner:   runner,
		opts:     opts,
		logger:   logger.With().Str("component", "listener").Logger(),
		render:   render,
	}
}

// Run blocks consuming updates until ctx is cancelled. Transport failures
// back off and retry without touching the cursor.
func (l *Listener) Run(ctx context.Context) error {
	offset := l.loadOffset(ctx)
	l.logger.Info().Int64("offset", offset).Msg("command listener started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := l.poller.Poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn().Err(err).Msg("update poll failed")
			if !l.sleep(ctx, l.opts.ErrorBackoff) {
				return ctx.Err()
			}
			continue
		}

		if len(updates) == 0 {
			if !l.sleep(ctx, l.opts.IdleDelay) {
				return ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			l.handleUpdate(ctx, update)

			// Confirm each update individually before moving on.
			offset = update.UpdateID + 1
			l.saveOffset(ctx, offset)
		}
	}
}

func (l *Listener) loadOffset(ctx context.Context) int64 {
	if l.cursor == nil {
		return 0
	}
	next, found, err := l.cursor.LoadCursor(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("failed to load cursor; consuming from start")
		return 0
	}
	if !found {
		return 0
	}
	return next
}

func (l *Listener) saveOffset(ctx context.Context, next int64) {
	if l.cursor == nil {
		return
	}
	if err := l.cursor.SaveCursor(ctx, next); err != nil {
		l.logger.Error().Err(err).Int64("next", next).Msg("failed to persist cursor")
	}
}

// handleUpdate dispatches one command. Updates from other chats, and updates
// without text, are dropped silently; they still advance the cursor.
func (l *Listener) handleUpdate(ctx context.Context, update telegram.Update) {
	if update.Text == "" {
		return
	}
	if l.opts.AuthorizedChatID != 0 && update.ChatID != l.opts.AuthorizedChatID {
		l.logger.Debug().Int64("chat_id", update.ChatID).Msg("dropping update from unauthorized chat")
		return
	}

	text := strings.TrimSpace(update.Text)
	switch {
	case strings.HasPrefix(text, "/check"), strings.HasPrefix(text, "/start"):
		l.reply(ctx, "🔎 Running immediate search...")
		if l.runner != nil {
			if err := l.runner.RunPollCycle(ctx); err != nil {
				l.logger.Warn().Err(err).Msg("on-demand poll cycle failed")
			}
		}
	case strings.HasPrefix(text, "/history"):
		l.replyHistory(ctx)
	case strings.HasPrefix(text, "/help"):
		l.reply(ctx, helpText)
	default:
		l.reply(ctx, fallbackText)
	}
}

func (l *Listener) replyHistory(ctx context.Context) {
	if l.store == nil {
		l.reply(ctx, "No history yet.")
		return
	}

	observations, err := l.store.TopCheapest(ctx, l.opts.HistoryLimit)
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to query history")
		return
	}
	l.reply(ctx, l.render(observations))
}

func (l *Listener) reply(ctx context.Context, text string) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Send(ctx, text); err != nil {
		l.logger.Error().Err(err).Msg("failed to send reply")
	}
}

func (l *Listener) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
