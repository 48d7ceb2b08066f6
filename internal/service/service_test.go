package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flight-deals-bot/internal/config"
	"flight-deals-bot/internal/provider"
	"flight-deals-bot/internal/storage"
)

type fakeQuotes struct {
	offers []provider.Offer
	err    error
}

func (f *fakeQuotes) FetchOffers(ctx context.Context) ([]provider.Offer, error) {
	return f.offers, f.err
}

// memStore keeps observations in memory and records the call order shared
// with the fake notifier.
type memStore struct {
	observations []storage.Observation
	insertErr    error
	events       *[]string
}

func (m *memStore) InsertObservation(ctx context.Context, obs storage.Observation) (storage.Observation, error) {
	if m.events != nil {
		*m.events = append(*m.events, "insert")
	}
	if m.insertErr != nil {
		return storage.Observation{}, m.insertErr
	}
	obs.ID = int64(len(m.observations) + 1)
	m.observations = append(m.observations, obs)
	return obs, nil
}

func (m *memStore) TopCheapest(ctx context.Context, limit int) ([]storage.Observation, error) {
	out := make([]storage.Observation, len(m.observations))
	copy(out, m.observations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) BestBetween(ctx context.Context, from, to time.Time) (storage.Observation, bool, error) {
	var best storage.Observation
	found := false
	for _, obs := range m.observations {
		if obs.ObservedAt.Before(from) || !obs.ObservedAt.Before(to) {
			continue
		}
		if !found || obs.Price.LessThan(best.Price) {
			best = obs
			found = true
		}
	}
	return best, found, nil
}

func (m *memStore) ListBetween(ctx context.Context, from, to time.Time) ([]storage.Observation, error) {
	out := make([]storage.Observation, 0)
	for _, obs := range m.observations {
		if !obs.ObservedAt.Before(from) && obs.ObservedAt.Before(to) {
			out = append(out, obs)
		}
	}
	return out, nil
}

func (m *memStore) ListRecent(ctx context.Context, limit int) ([]storage.Observation, error) {
	out := make([]storage.Observation, len(m.observations))
	copy(out, m.observations)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) CountObservations(ctx context.Context) (int64, error) {
	return int64(len(m.observations)), nil
}

type fakeNotifier struct {
	sent   []string
	events *[]string
}

func (f *fakeNotifier) Send(ctx context.Context, text string) error {
	if f.events != nil {
		*f.events = append(*f.events, "send")
	}
	f.sent = append(f.sent, text)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Trip: config.TripConfig{
			Origin:        "ATH",
			Destination:   "BCN",
			DepartureDate: "2026-04-28",
			ReturnDate:    "2026-05-05",
			Adults:        2,
			Currency:      "EUR",
		},
		Alerting: config.AlertingConfig{PerPersonThreshold: 200},
		Timezone: "UTC",
	}
}

func roundTripOffer(total string) provider.Offer {
	return provider.Offer{
		Price:             decimal.RequireFromString(total),
		Currency:          "EUR",
		OutboundDeparture: "2026-04-28T09:10:00",
		OutboundArrival:   "2026-04-28T11:05:00",
		InboundDeparture:  "2026-05-05T18:30:00",
		InboundArrival:    "2026-05-05T22:20:00",
	}
}

func TestPollCycleAlertsBelowThreshold(t *testing.T) {
	quotes := &fakeQuotes{offers: []provider.Offer{roundTripOffer("380.00")}}
	store := &memStore{}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), quotes, store, notifier, zerolog.Nop())
	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("poll cycle failed: %v", err)
	}

	if len(store.observations) != 1 {
		t.Fatalf("expected 1 observation persisted, got %d", len(store.observations))
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("expected found + alert messages, got %d: %v", len(notifier.sent), notifier.sent)
	}
	if !strings.Contains(notifier.sent[0], "Found price: 380.00 EUR for 2 pax") {
		t.Fatalf("unexpected found message: %s", notifier.sent[0])
	}
	if !strings.Contains(notifier.sent[1], "[ALERT]") || !strings.Contains(notifier.sent[1], "190.00") {
		t.Fatalf("unexpected alert message: %s", notifier.sent[1])
	}
}

func TestPollCycleAlertsAtExactThreshold(t *testing.T) {
	quotes := &fakeQuotes{offers: []provider.Offer{roundTripOffer("400.00")}}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), quotes, &memStore{}, notifier, zerolog.Nop())
	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("poll cycle failed: %v", err)
	}

	if len(notifier.sent) != 2 {
		t.Fatalf("per-person price equal to the threshold must alert, got %d messages", len(notifier.sent))
	}
}

func TestPollCycleNoAlertAboveThreshold(t *testing.T) {
	quotes := &fakeQuotes{offers: []provider.Offer{roundTripOffer("410.00")}}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), quotes, &memStore{}, notifier, zerolog.Nop())
	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("poll cycle failed: %v", err)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected only the found message, got %d: %v", len(notifier.sent), notifier.sent)
	}
}

func TestPollCyclePersistsBeforeNotifying(t *testing.T) {
	events := make([]string, 0)
	quotes := &fakeQuotes{offers: []provider.Offer{roundTripOffer("380.00")}}
	store := &memStore{events: &events}
	notifier := &fakeNotifier{events: &events}

	svc := New(testConfig(), quotes, store, notifier, zerolog.Nop())
	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("poll cycle failed: %v", err)
	}

	if len(events) < 2 || events[0] != "insert" {
		t.Fatalf("persistence must precede notification, got %v", events)
	}
}

func TestPollCycleNoQualifyingOfferIsQuiet(t *testing.T) {
	quotes := &fakeQuotes{}
	store := &memStore{}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), quotes, store, notifier, zerolog.Nop())
	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("empty batch must not be an error: %v", err)
	}

	if len(store.observations) != 0 || len(notifier.sent) != 0 {
		t.Fatalf("empty batch must produce no side effects: %d obs, %d sends", len(store.observations), len(notifier.sent))
	}
}

func TestPollCycleFetchErrorAborts(t *testing.T) {
	quotes := &fakeQuotes{err: errors.New("upstream down")}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), quotes, &memStore{}, notifier, zerolog.Nop())
	if err := svc.RunPollCycle(context.Background()); err == nil {
		t.Fatal("fetch failure must surface as an error")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("failed cycle must not notify, got %v", notifier.sent)
	}
}

func TestPollCyclePersistFailureStillNotifies(t *testing.T) {
	quotes := &fakeQuotes{offers: []provider.Offer{roundTripOffer("380.00")}}
	store := &memStore{insertErr: errors.New("db gone")}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), quotes, store, notifier, zerolog.Nop())
	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("insert failure is logged, not fatal: %v", err)
	}
	if len(notifier.sent) == 0 {
		t.Fatal("notification must still go out when persistence fails")
	}
}

func TestPollCycleWithoutStoreOrNotifier(t *testing.T) {
	quotes := &fakeQuotes{offers: []provider.Offer{roundTripOffer("380.00")}}

	svc := New(testConfig(), quotes, nil, nil, zerolog.Nop())
	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("degraded mode must not fail: %v", err)
	}
}

func TestDailySummaryEmptyDay(t *testing.T) {
	notifier := &fakeNotifier{}

	svc := New(testConfig(), &fakeQuotes{}, &memStore{}, notifier, zerolog.Nop())
	if err := svc.RunDailySummary(context.Background()); err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	if len(notifier.sent) != 1 || notifier.sent[0] != "ℹ️ No prices recorded today." {
		t.Fatalf("expected the empty-day message, got %v", notifier.sent)
	}
}

func TestDailySummaryReportsLowest(t *testing.T) {
	now := time.Now().UTC()
	store := &memStore{observations: []storage.Observation{
		{ObservedAt: now, Price: decimal.RequireFromString("420.00"), Currency: "EUR", OutboundDate: "2026-04-28"},
		{ObservedAt: now, Price: decimal.RequireFromString("365.50"), Currency: "EUR", OutboundDate: "2026-04-28"},
	}}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), &fakeQuotes{}, store, notifier, zerolog.Nop())
	if err := svc.RunDailySummary(context.Background()); err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0], "365.50") {
		t.Fatalf("summary must carry the day's lowest price, got %v", notifier.sent)
	}
}

func TestRenderHistoryEmpty(t *testing.T) {
	if got := RenderHistory(nil); got != "No history yet." {
		t.Fatalf("unexpected empty history rendering: %s", got)
	}
}

func TestRenderHistoryNumbersEntries(t *testing.T) {
	ret := "2026-05-05"
	got := RenderHistory([]storage.Observation{
		{Price: decimal.RequireFromString("365.50"), OutboundDate: "2026-04-28", ReturnDate: &ret},
		{Price: decimal.RequireFromString("420.00"), OutboundDate: "2026-04-28"},
	})

	if !strings.Contains(got, "Top 2 Lowest Prices") {
		t.Fatalf("missing header: %s", got)
	}
	if !strings.Contains(got, "1) €365.50 — 2026-04-28 → 2026-05-05") {
		t.Fatalf("missing first entry: %s", got)
	}
	if !strings.Contains(got, "2) €420.00 — 2026-04-28 → ?") {
		t.Fatalf("missing return date must render as ?: %s", got)
	}
}
