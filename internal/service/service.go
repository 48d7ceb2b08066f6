package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flight-deals-bot/internal/config"
	"flight-deals-bot/internal/links"
	"flight-deals-bot/internal/notify"
	"flight-deals-bot/internal/provider"
	"flight-deals-bot/internal/selector"
	"flight-deals-bot/internal/storage"
)

// Service orchestrates quote fetching, selection, persistence, and
// notification for the fixed itinerary.
type Service struct {
	quotes   provider.QuoteFetcher
	store    storage.ObservationStore
	notifier notify.Notifier
	logger   zerolog.Logger

	trip      config.TripConfig
	windows   selector.Windows
	threshold decimal.Decimal
	location  *time.Location
}

// New constructs the monitoring service.
func New(cfg *config.Config, quotes provider.QuoteFetcher, store storage.ObservationStore, notifier notify.Notifier, logger zerolog.Logger) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.PerPersonThreshold > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.PerPersonThreshold)
	}

	return &Service{
		quotes:   quotes,
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "service").Logger(),
		trip:     cfg.Trip,
		windows: selector.Windows{
			OutboundFrom: cfg.Windows.OutboundFrom,
			OutboundTo:   cfg.Windows.OutboundTo,
			InboundFrom:  cfg.Windows.InboundFrom,
			InboundTo:    cfg.Windows.InboundTo,
		},
		threshold: threshold,
		location:  cfg.Location(),
	}
}

// RunPollCycle executes one fetch/select/persist/notify pass. Upstream
// failures abort the cycle and surface as the returned error; the caller logs
// and waits for the next scheduled tick. A batch with no qualifying offer is
// not an error and produces no side effects.
func (s *Service) RunPollCycle(ctx context.Context) error {
	offers, err := s.quotes.FetchOffers(ctx)
	if err != nil {
		return fmt.Errorf("fetch offers: %w", err)
	}

	best, found := selector.Select(offers, s.windows)
	if !found {
		s.logger.Info().Int("offers", len(offers)).Msg("no qualifying offer this cycle")
		return nil
	}

	depDate := best.OutboundDate()
	if depDate == "" {
		depDate = s.trip.DepartureDate
	}
	retDate := best.ReturnDate()

	gLink := links.GoogleFlights(s.trip.Origin, s.trip.Destination, depDate, retDate, s.trip.Currency, s.trip.Adults)
	sLink := links.Skyscanner(s.trip.Origin, s.trip.Destination, depDate, retDate, s.trip.Currency, s.trip.Adults)

	obs := storage.Observation{
		ObservedAt:   time.Now().In(s.location),
		Price:        best.Price,
		Currency:     best.Currency,
		OutboundDate: depDate,
	}
	if retDate != "" {
		obs.ReturnDate = &retDate
	}
	if gLink != "" {
		obs.GoogleLink = &gLink
	}
	if sLink != "" {
		obs.SkyscannerLink = &sLink
	}

	// Persist strictly before notifying: a crash in between loses at most one
	// message, never the historical record.
	if s.store != nil {
		if _, err := s.store.InsertObservation(ctx, obs); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist observation")
		}
	}

	s.logger.Info().
		Str("price", best.Price.StringFixed(2)).
		Str("currency", best.Currency).
		Str("outbound", depDate).
		Msg("observation recorded")

	s.send(ctx, renderFound(best, s.trip.Adults, gLink, sLink))

	perPerson := best.Price.Div(decimal.NewFromInt(int64(s.trip.Adults)))
	if !s.threshold.IsZero() && perPerson.LessThanOrEqual(s.threshold) {
		s.send(ctx, renderAlert(perPerson, s.threshold))
	}

	return nil
}

// RunDailySummary 查询当天最低价并推送一条汇总消息。Performs no writes.
func (s *Service) RunDailySummary(ctx context.Context) error {
	if s.store == nil {
		s.logger.Warn().Msg("persistence disabled; skipping daily summary")
		return nil
	}

	now := time.Now().In(s.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)

	best, found, err := s.store.BestBetween(ctx, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("query best of day: %w", err)
	}

	if !found {
		s.send(ctx, "ℹ️ No prices recorded today.")
		return nil
	}

	s.send(ctx, renderSummary(best))
	return nil
}

func (s *Service) send(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, text); err != nil {
		s.logger.Error().Err(err).Msg("failed to dispatch message")
	}
}
