package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cellar/internal/api"
	"cellar/internal/services"
)

func TestRecordScanSendsTokenAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/scans" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request id header")
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["barcode"] != "0081234567890" || req["slot"] != "A-03" {
			t.Errorf("unexpected body %v", req)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.ScanResponse{WineID: 1, BottleID: 1, EnrichmentQueued: true})
	}))
	defer server.Close()

	slot := "A-03"
	resp, err := New(server.URL, "tok").RecordScan(context.Background(), api.ScanRequest{Barcode: "0081234567890", Slot: &slot})
	if err != nil {
		t.Fatalf("RecordScan failed: %v", err)
	}
	if !resp.EnrichmentQueued || resp.WineID != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestErrorsUnwrapToServiceMarkers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "slot A-03 is occupied", Kind: "conflict"})
	}))
	defer server.Close()

	_, err := New(server.URL, "").RecordScan(context.Background(), api.ScanRequest{Barcode: "1"})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict || apiErr.Error() != "slot A-03 is occupied" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "404 page not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, "").GetWine(context.Background(), 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "404 page not found" {
		t.Fatalf("unexpected error %v", err)
	}
	if errors.Is(err, services.ErrNotFound) {
		t.Fatal("plain-text errors carry no kind")
	}
}

func TestUploadLabelMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "label.jpg" || string(data) != "jpeg" || r.FormValue("review") != "true" {
			t.Errorf("unexpected upload %q %q %q", header.Filename, data, r.FormValue("review"))
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.LabelTask{ID: 9, Status: "queued"})
	}))
	defer server.Close()

	task, err := New(server.URL, "").UploadLabel(context.Background(), "label.jpg", []byte("jpeg"), true)
	if err != nil {
		t.Fatalf("UploadLabel failed: %v", err)
	}
	if task.ID != 9 || task.Status != "queued" {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestWaitForLabelTask(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "processing"
		if polls.Add(1) >= 3 {
			status = "done"
		}
		_ = json.NewEncoder(w).Encode(api.LabelTask{ID: 4, Status: status, Payload: json.RawMessage(`{"producer":"Ridge"}`)})
	}))
	defer server.Close()

	task, err := New(server.URL, "").WaitForLabelTask(context.Background(), 4, time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForLabelTask failed: %v", err)
	}
	if task.Status != "done" || polls.Load() != 3 {
		t.Fatalf("unexpected result %+v after %d polls", task, polls.Load())
	}
}

func TestNewAddsScheme(t *testing.T) {
	if got := New("127.0.0.1:7488/", "").BaseURL(); got != "http://127.0.0.1:7488" {
		t.Fatalf("unexpected base url %q", got)
	}
}
