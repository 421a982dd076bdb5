package barcodelookup

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"cellar/internal/services"
)

const testEndpoint = "https://api.barcodelookup.test/v3/products"

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func newTestClient(ttl time.Duration) *Client {
	return NewClient(Config{APIKey: "secret", BaseURL: testEndpoint, Timeout: time.Second, CacheTTL: ttl})
}

func TestLookupReturnsFirstProduct(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("barcode") != "0081234567890" || q.Get("key") != "secret" {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"products":[{"brand":" Ridge ","product_name":"Monte Bello 2019"},{"brand":"Other"}]}`), nil
		})

	product, err := newTestClient(0).Lookup(context.Background(), "0081234567890")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if product.Brand != "Ridge" || product.ProductName != "Monte Bello 2019" {
		t.Fatalf("unexpected product: %+v", product)
	}
}

func TestLookupWithoutKeyIsUnavailable(t *testing.T) {
	client := NewClient(Config{BaseURL: testEndpoint})
	_, err := client.Lookup(context.Background(), "123456")
	if !errors.Is(err, services.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestLookupFailures(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		noProduct bool
	}{
		{"server_error", http.StatusInternalServerError, `oops`, false},
		{"forbidden", http.StatusForbidden, `{"message":"bad key"}`, false},
		{"invalid_json", http.StatusOK, `{invalid`, false},
		{"empty_products", http.StatusOK, `{"products":[]}`, true},
		{"not_found", http.StatusNotFound, `{}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setupHTTPMock(t)
			httpmock.RegisterResponder(http.MethodGet, testEndpoint, httpmock.NewStringResponder(tc.status, tc.body))

			_, err := newTestClient(0).Lookup(context.Background(), "123456")
			if !errors.Is(err, services.ErrProviderError) {
				t.Fatalf("expected ErrProviderError, got %v", err)
			}
			if got := errors.Is(err, ErrNoProducts); got != tc.noProduct {
				t.Fatalf("ErrNoProducts = %v, want %v (%v)", got, tc.noProduct, err)
			}
		})
	}
}

func TestLookupCachesHitsAndMisses(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("barcode") == "111111" {
				return httpmock.NewStringResponse(http.StatusOK, `{"products":[{"brand":"Ridge"}]}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"products":[]}`), nil
		})

	client := newTestClient(time.Hour)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.Lookup(ctx, "111111"); err != nil {
			t.Fatalf("Lookup returned error: %v", err)
		}
		if _, err := client.Lookup(ctx, "222222"); !errors.Is(err, ErrNoProducts) {
			t.Fatalf("expected ErrNoProducts, got %v", err)
		}
	}
	if calls := httpmock.GetTotalCallCount(); calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}

func TestLookupDoesNotCacheTransientErrors(t *testing.T) {
	setupHTTPMock(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint, httpmock.NewStringResponder(http.StatusBadGateway, ``))

	client := newTestClient(time.Hour)
	for i := 0; i < 2; i++ {
		if _, err := client.Lookup(context.Background(), "333333"); err == nil {
			t.Fatal("expected error")
		}
	}
	if calls := httpmock.GetTotalCallCount(); calls != 2 {
		t.Fatalf("expected every failure to reach upstream, got %d calls", calls)
	}
}
