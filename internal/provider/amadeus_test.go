package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const tokenJSON = `{"access_token":"fake-token","token_type":"Bearer","expires_in":1799}`

const searchJSON = `{
  "data": [
    {
      "itineraries": [
        {"segments": [{"departure": {"at": "2026-04-28T09:10:00"}, "arrival": {"at": "2026-04-28T11:05:00"}}]},
        {"segments": [{"departure": {"at": "2026-05-05T18:30:00"}, "arrival": {"at": "2026-05-05T22:20:00"}}]}
      ],
      "price": {"currency": "EUR", "total": "380.00", "grandTotal": "384.50"}
    },
    {
      "itineraries": [
        {"segments": [{"departure": {"at": "2026-04-28T23:40:00"}, "arrival": {"at": "2026-04-29T01:30:00"}}]}
      ],
      "price": {"currency": "EUR", "total": "299.00"}
    },
    {
      "itineraries": [],
      "price": {"currency": "EUR", "total": "not-a-number"}
    }
  ]
}`

func testOptions(baseURL string) AmadeusOptions {
	return AmadeusOptions{
		ClientID:      "id",
		ClientSecret:  "secret",
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		Origin:        "ATH",
		Destination:   "BCN",
		DepartureDate: "2026-04-28",
		ReturnDate:    "2026-05-05",
		Adults:        2,
		Currency:      "EUR",
	}
}

func TestFetchOffersSuccess(t *testing.T) {
	var gotGrant, gotAuth string
	var gotQuery map[string]string

	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("解析表单失败: %v", err)
		}
		gotGrant = r.PostFormValue("grant_type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tokenJSON))
	})
	mux.HandleFunc(searchPath, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"origin":      r.URL.Query().Get("originLocationCode"),
			"destination": r.URL.Query().Get("destinationLocationCode"),
			"departure":   r.URL.Query().Get("departureDate"),
			"return":      r.URL.Query().Get("returnDate"),
			"adults":      r.URL.Query().Get("adults"),
			"currency":    r.URL.Query().Get("currencyCode"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchJSON))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewAmadeus(testOptions(server.URL), zerolog.Nop())
	offers, err := fetcher.FetchOffers(context.Background())
	if err != nil {
		t.Fatalf("获取报价失败: %v", err)
	}

	if gotGrant != "client_credentials" {
		t.Errorf("grant_type 不正确: %s", gotGrant)
	}
	if gotAuth != "Bearer fake-token" {
		t.Errorf("Authorization 头不正确: %s", gotAuth)
	}
	if gotQuery["origin"] != "ATH" || gotQuery["destination"] != "BCN" {
		t.Errorf("查询参数不正确: %v", gotQuery)
	}
	if gotQuery["departure"] != "2026-04-28" || gotQuery["return"] != "2026-05-05" {
		t.Errorf("日期参数不正确: %v", gotQuery)
	}
	if gotQuery["adults"] != "2" || gotQuery["currency"] != "EUR" {
		t.Errorf("人数/币种参数不正确: %v", gotQuery)
	}

	// 价格无法解析的报价被丢弃。
	if len(offers) != 2 {
		t.Fatalf("期望 2 条报价, 实际 %d", len(offers))
	}

	first := offers[0]
	if first.Price.String() != "384.5" {
		t.Errorf("grandTotal 应优先于 total, got %s", first.Price)
	}
	if first.OutboundDeparture != "2026-04-28T09:10:00" || first.InboundDeparture != "2026-05-05T18:30:00" {
		t.Errorf("航段时间映射不正确: %+v", first)
	}

	second := offers[1]
	if second.Price.String() != "299" {
		t.Errorf("缺少 grandTotal 时应回退 total, got %s", second.Price)
	}
	if second.InboundDeparture != "" {
		t.Errorf("单程报价不应有回程时间: %+v", second)
	}
}

func TestFetchOffersMissingCredentials(t *testing.T) {
	opts := testOptions("http://127.0.0.1:0")
	opts.ClientID = ""

	fetcher := NewAmadeus(opts, zerolog.Nop())
	if _, err := fetcher.FetchOffers(context.Background()); err == nil {
		t.Fatal("缺少凭证时应返回错误")
	}
}

func TestFetchOffersTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client","error_description":"Client credentials are invalid"}`))
	}))
	defer server.Close()

	fetcher := NewAmadeus(testOptions(server.URL), zerolog.Nop())
	_, err := fetcher.FetchOffers(context.Background())
	if err == nil {
		t.Fatal("token 被拒绝时应返回错误")
	}
	if got := err.Error(); !strings.Contains(got, "Client credentials are invalid") {
		t.Errorf("错误信息应包含 API 描述: %s", got)
	}
}

func TestFetchOffersSearchError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tokenJSON))
	})
	mux.HandleFunc(searchPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"status":400,"title":"INVALID DATE","detail":"Date/Time is in the past"}]}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewAmadeus(testOptions(server.URL), zerolog.Nop())
	_, err := fetcher.FetchOffers(context.Background())
	if err == nil {
		t.Fatal("搜索失败时应返回错误")
	}
	if got := err.Error(); !strings.Contains(got, "Date/Time is in the past") {
		t.Errorf("错误信息应包含 detail: %s", got)
	}
}

func TestOfferDateHelpers(t *testing.T) {
	offer := Offer{
		OutboundDeparture: "2026-04-28T09:10:00",
		InboundDeparture:  "2026-05-05T18:30:00",
	}
	if offer.OutboundDate() != "2026-04-28" {
		t.Errorf("OutboundDate 不正确: %s", offer.OutboundDate())
	}
	if offer.ReturnDate() != "2026-05-05" {
		t.Errorf("ReturnDate 不正确: %s", offer.ReturnDate())
	}

	empty := Offer{}
	if empty.OutboundDate() != "" || empty.ReturnDate() != "" {
		t.Error("缺少时间戳时日期应为空")
	}
}
