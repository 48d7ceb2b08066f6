package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	tokenPath  = "/v1/security/oauth2/token"
	searchPath = "/v2/shopping/flight-offers"

	maxSearchResults = 50
)

// AmadeusOptions parameterise the Amadeus flight-offers client.
type AmadeusOptions struct {
	ClientID      string
	ClientSecret  string
	BaseURL       string
	Timeout       time.Duration
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Adults        int
	Currency      string
}

// Amadeus fetches round-trip quotes from the Amadeus flight-offers API.
// Every fetch performs its own client-credentials token exchange; the test
// environment issues short-lived tokens and a poll cycle is infrequent enough
// that caching buys nothing.
type Amadeus struct {
	opts    AmadeusOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewAmadeus constructs the quote fetcher.
func NewAmadeus(opts AmadeusOptions, logger zerolog.Logger) *Amadeus {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://test.api.amadeus.com"
	}

	return &Amadeus{
		opts:    opts,
		logger:  logger.With().Str("component", "amadeus_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchOffers obtains a bearer token and retrieves the quote batch for the
// configured itinerary.
func (a *Amadeus) FetchOffers(ctx context.Context) ([]Offer, error) {
	if a.opts.ClientID == "" || a.opts.ClientSecret == "" {
		return nil, errors.New("amadeus credentials not configured")
	}

	token, err := a.fetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch amadeus token: %w", err)
	}

	return a.search(ctx, token)
}

func (a *Amadeus) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.opts.ClientID)
	form.Set("client_secret", a.opts.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseAPIError(resp.StatusCode, payload)
	}

	var tokenRes struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(payload, &tokenRes); err != nil {
		return "", err
	}
	if tokenRes.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	return tokenRes.AccessToken, nil
}

func (a *Amadeus) search(ctx context.Context, token string) ([]Offer, error) {
	params := url.Values{}
	params.Set("originLocationCode", a.opts.Origin)
	params.Set("destinationLocationCode", a.opts.Destination)
	params.Set("departureDate", a.opts.DepartureDate)
	if a.opts.ReturnDate != "" {
		params.Set("returnDate", a.opts.ReturnDate)
	}
	params.Set("adults", strconv.Itoa(a.opts.Adults))
	params.Set("currencyCode", a.opts.Currency)
	params.Set("max", strconv.Itoa(maxSearchResults))

	endpoint := a.baseURL + searchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, payload)
	}

	var searchRes searchResponse
	if err := json.Unmarshal(payload, &searchRes); err != nil {
		return nil, err
	}

	offers := make([]Offer, 0, len(searchRes.Data))
	for _, raw := range searchRes.Data {
		offer, ok := a.mapOffer(raw)
		if !ok {
			continue
		}
		offers = append(offers, offer)
	}

	a.logger.Debug().Int("raw", len(searchRes.Data)).Int("mapped", len(offers)).Msg("quote batch fetched")
	return offers, nil
}

// mapOffer flattens the nested itinerary/segment structure. Offers without a
// parseable total price are dropped here; missing timestamps stay empty and
// are left for the selector to judge.
func (a *Amadeus) mapOffer(raw offerPayload) (Offer, bool) {
	total := raw.Price.GrandTotal
	if total == "" {
		total = raw.Price.Total
	}

	price, err := decimal.NewFromString(total)
	if err != nil {
		a.logger.Debug().Str("total", total).Msg("skipping offer with unparseable price")
		return Offer{}, false
	}

	currency := raw.Price.Currency
	if currency == "" {
		currency = a.opts.Currency
	}

	offer := Offer{Price: price, Currency: currency}

	if len(raw.Itineraries) >= 1 && len(raw.Itineraries[0].Segments) > 0 {
		first := raw.Itineraries[0].Segments[0]
		offer.OutboundDeparture = first.Departure.At
		offer.OutboundArrival = first.Arrival.At
	}
	if len(raw.Itineraries) >= 2 && len(raw.Itineraries[1].Segments) > 0 {
		first := raw.Itineraries[1].Segments[0]
		offer.InboundDeparture = first.Departure.At
		offer.InboundArrival = first.Arrival.At
	}

	return offer, true
}

type searchResponse struct {
	Data []offerPayload `json:"data"`
}

type offerPayload struct {
	Itineraries []struct {
		Segments []struct {
			Departure struct {
				At string `json:"at"`
			} `json:"departure"`
			Arrival struct {
				At string `json:"at"`
			} `json:"arrival"`
		} `json:"segments"`
	} `json:"itineraries"`
	Price struct {
		Currency   string `json:"currency"`
		Total      string `json:"total"`
		GrandTotal string `json:"grandTotal"`
	} `json:"price"`
}

type apiErrorResponse struct {
	Errors []struct {
		Status int    `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseAPIError(status int, payload []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if len(apiErr.Errors) > 0 {
			first := apiErr.Errors[0]
			if first.Detail != "" {
				return fmt.Errorf("amadeus api error (%d): %s", status, first.Detail)
			}
			if first.Title != "" {
				return fmt.Errorf("amadeus api error (%d): %s", status, first.Title)
			}
		}
		if apiErr.ErrorDescription != "" {
			return fmt.Errorf("amadeus api error (%d): %s", status, apiErr.ErrorDescription)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("amadeus api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("amadeus api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("amadeus api error (%d)", status)
}

var _ QuoteFetcher = (*Amadeus)(nil)
