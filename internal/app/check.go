package app

import (
	"context"

	"flight-deals-bot/internal/service"
	"flight-deals-bot/internal/storage"
)

// Check runs exactly one poll cycle and exits. Useful for cron-less setups
// and for verifying credentials.
func (a *App) Check(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; observation will not be persisted")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var obsStore storage.ObservationStore
	if store != nil {
		obsStore = store
	}

	svc := service.New(a.Config, a.newQuoteFetcher(), obsStore, a.newNotifier(), a.Logger)
	return svc.RunPollCycle(ctx)
}
