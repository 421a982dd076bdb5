package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"cellar/internal/services"
	"cellar/internal/store"
)

func TestFromWineFormatsDatesAndPlaceholder(t *testing.T) {
	upc := "0081234567890"
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 1, 2, 3, 4, 5, 600_000_000, time.UTC)
	dto := FromWine(store.Wine{ID: 3, UPC: &upc, DrinkFrom: &from, CreatedAt: created})

	if !dto.Placeholder {
		t.Fatal("wine with only a upc should be a placeholder")
	}
	if dto.DrinkFrom == nil || *dto.DrinkFrom != "2025-03-01" {
		t.Fatalf("unexpected drinkFrom %v", dto.DrinkFrom)
	}
	if dto.CreatedAt != "2025-01-02T03:04:05.600Z" {
		t.Fatalf("unexpected createdAt %q", dto.CreatedAt)
	}
	if dto.UpdatedAt != "" {
		t.Fatalf("zero updatedAt should be omitted, got %q", dto.UpdatedAt)
	}

	encoded, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	_ = json.Unmarshal(encoded, &raw)
	if _, ok := raw["producer"]; !ok {
		t.Fatal("null descriptive fields should be present as null")
	}
}

func TestFromStatsIncludesEveryStatus(t *testing.T) {
	stats := FromStats(store.Stats{Wines: 2, LabelTasks: map[store.TaskStatus]int{store.TaskDone: 4}})
	if len(stats.LabelTasks) != 4 {
		t.Fatalf("expected 4 statuses, got %v", stats.LabelTasks)
	}
	if stats.LabelTasks["done"] != 4 || stats.LabelTasks["queued"] != 0 {
		t.Fatalf("unexpected counts %v", stats.LabelTasks)
	}
}

func TestToWinePatch(t *testing.T) {
	vintage := 2019
	badVintage := 19
	tests := []struct {
		name    string
		req     WinePatchRequest
		wantErr bool
		check   func(t *testing.T, patch store.WinePatch)
	}{
		{
			name: "normalizes upc",
			req:  WinePatchRequest{UPC: strPtr(" 0081-2345 ")},
			check: func(t *testing.T, patch store.WinePatch) {
				if patch.UPC == nil || *patch.UPC != "00812345" {
					t.Fatalf("unexpected upc %v", patch.UPC)
				}
			},
		},
		{
			name: "clear fields",
			req:  WinePatchRequest{Producer: strPtr("x"), Clear: []string{"producer", "drinkTo"}},
			check: func(t *testing.T, patch store.WinePatch) {
				if patch.Producer == nil || *patch.Producer != "" || !patch.ClearDrinkTo {
					t.Fatalf("unexpected patch %+v", patch)
				}
			},
		},
		{
			name: "vintage",
			req:  WinePatchRequest{Vintage: &vintage},
			check: func(t *testing.T, patch store.WinePatch) {
				if patch.Vintage == nil || *patch.Vintage != 2019 {
					t.Fatalf("unexpected vintage %v", patch.Vintage)
				}
			},
		},
		{name: "empty", req: WinePatchRequest{}, wantErr: true},
		{name: "bad upc", req: WinePatchRequest{UPC: strPtr("abc")}, wantErr: true},
		{name: "bad vintage", req: WinePatchRequest{Vintage: &badVintage}, wantErr: true},
		{name: "bad date", req: WinePatchRequest{DrinkFrom: strPtr("soon")}, wantErr: true},
		{name: "inverted window", req: WinePatchRequest{DrinkFrom: strPtr("2030-01-01"), DrinkTo: strPtr("2029-01-01")}, wantErr: true},
		{name: "bad critic data", req: WinePatchRequest{CriticData: json.RawMessage(`{`)}, wantErr: true},
		{name: "unknown clear", req: WinePatchRequest{Clear: []string{"colour"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, err := ToWinePatch(tt.req)
			if tt.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToWinePatch failed: %v", err)
			}
			tt.check(t, patch)
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{services.Wrap(services.ErrNotFound, "store", "get", "missing", nil), http.StatusNotFound},
		{services.Wrap(services.ErrConflict, "reconcile", "scan", "slot", nil), http.StatusConflict},
		{services.Wrap(services.ErrInvalidTransition, "store", "advance", "terminal", nil), http.StatusConflict},
		{services.Wrap(services.ErrValidation, "reconcile", "scan", "barcode", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrProviderUnavailable, "api", "enrich", "no key", nil), http.StatusServiceUnavailable},
		{services.Wrap(services.ErrProviderError, "barcodelookup", "lookup", "500", nil), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
