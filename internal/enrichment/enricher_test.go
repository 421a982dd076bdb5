package enrichment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cellar/internal/services"
	"cellar/internal/services/barcodelookup"
	"cellar/internal/store"
	"cellar/internal/testsupport"
	"cellar/internal/workqueue"
)

type stubCatalog struct {
	configured bool
	product    barcodelookup.Product
	err        error
	calls      int
}

func (s *stubCatalog) Configured() bool { return s.configured }

func (s *stubCatalog) Lookup(ctx context.Context, barcode string) (barcodelookup.Product, error) {
	s.calls++
	return s.product, s.err
}

func setup(t *testing.T, catalog Catalog) (*Enricher, *store.Store, int64) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	wineID := testsupport.InsertWine(t, st, "0081234567890")
	return New(st, catalog, time.Second, nil), st, wineID
}

func TestRunPatchesProducerAndLabel(t *testing.T) {
	catalog := &stubCatalog{configured: true, product: barcodelookup.Product{Brand: "RIDGE VINEYARDS", ProductName: "Monte Bello"}}
	enricher, st, wineID := setup(t, catalog)

	res, err := enricher.Run(context.Background(), wineID, "0081234567890")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !res.Changed {
		t.Fatal("expected wine to change")
	}
	wine, err := st.GetWine(context.Background(), wineID)
	if err != nil {
		t.Fatalf("GetWine failed: %v", err)
	}
	if wine.Producer == nil || *wine.Producer != "Ridge Vineyards" {
		t.Fatalf("unexpected producer %v", wine.Producer)
	}
	if wine.Label == nil || *wine.Label != "Monte Bello" {
		t.Fatalf("unexpected label %v", wine.Label)
	}
	if wine.Region != nil || wine.Vintage != nil {
		t.Fatalf("enrichment must only touch producer and label: %+v", wine)
	}
}

func TestRunEmptyBrandKeepsExistingProducer(t *testing.T) {
	catalog := &stubCatalog{configured: true, product: barcodelookup.Product{Brand: "", ProductName: "Estate Cabernet"}}
	enricher, st, wineID := setup(t, catalog)
	producer := "Heitz"
	if _, err := st.UpdateWine(context.Background(), wineID, store.WinePatch{Producer: &producer}); err != nil {
		t.Fatalf("UpdateWine failed: %v", err)
	}

	if _, err := enricher.Run(context.Background(), wineID, "0081234567890"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	wine, _ := st.GetWine(context.Background(), wineID)
	if wine.Producer == nil || *wine.Producer != "Heitz" {
		t.Fatalf("empty brand overwrote producer: %v", wine.Producer)
	}
	if wine.Label == nil || *wine.Label != "Estate Cabernet" {
		t.Fatalf("expected label patched, got %v", wine.Label)
	}
}

func TestRunWithoutCredentialIsNoop(t *testing.T) {
	catalog := &stubCatalog{configured: false}
	enricher, st, wineID := setup(t, catalog)

	_, err := enricher.Run(context.Background(), wineID, "0081234567890")
	if !errors.Is(err, services.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if catalog.calls != 0 {
		t.Fatal("catalog must not be called without a credential")
	}
	if err := enricher.Job(wineID, "0081234567890").Run(context.Background()); err != nil {
		t.Fatalf("job should treat a missing credential as a skip, got %v", err)
	}
	wine, _ := st.GetWine(context.Background(), wineID)
	if !wine.IsPlaceholder() {
		t.Fatalf("wine should remain a placeholder: %+v", wine)
	}
}

func TestRunProviderFailureLeavesPlaceholder(t *testing.T) {
	catalog := &stubCatalog{configured: true, err: services.Wrap(services.ErrProviderError, "barcodelookup", "lookup", "boom", nil)}
	enricher, st, wineID := setup(t, catalog)

	if _, err := enricher.Run(context.Background(), wineID, "0081234567890"); !errors.Is(err, services.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	wine, err := st.GetWine(context.Background(), wineID)
	if err != nil {
		t.Fatalf("wine must never be deleted by a failed enrichment: %v", err)
	}
	if !wine.IsPlaceholder() {
		t.Fatalf("wine should remain a placeholder: %+v", wine)
	}
}

func TestRunDeletedWineIsQuiet(t *testing.T) {
	catalog := &stubCatalog{configured: true, product: barcodelookup.Product{Brand: "Ridge"}}
	enricher, st, wineID := setup(t, catalog)
	if _, err := st.DeleteWine(context.Background(), wineID); err != nil {
		t.Fatalf("DeleteWine failed: %v", err)
	}
	if _, err := enricher.Run(context.Background(), wineID, "0081234567890"); err != nil {
		t.Fatalf("deleted wine should end the run quietly, got %v", err)
	}
}

func TestRunAgainstCatalogServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("barcode") != "0081234567890" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"products":[{"brand":"Ridge","product_name":"Lytton Springs"}]}`))
	}))
	defer server.Close()

	catalog := barcodelookup.NewClient(barcodelookup.Config{APIKey: "k", BaseURL: server.URL})
	enricher, st, wineID := setup(t, catalog)
	if _, err := enricher.Run(context.Background(), wineID, "0081234567890"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	wine, _ := st.GetWine(context.Background(), wineID)
	if wine.Label == nil || *wine.Label != "Lytton Springs" {
		t.Fatalf("unexpected label %v", wine.Label)
	}
}

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []workqueue.Job
	err  error
}

func (r *recordingSubmitter) Submit(job workqueue.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func TestSchedulerCarriesRequestID(t *testing.T) {
	catalog := &stubCatalog{configured: true, product: barcodelookup.Product{Brand: "Ridge"}}
	enricher, _, wineID := setup(t, catalog)
	submitter := &recordingSubmitter{}
	scheduler := NewScheduler(enricher, submitter)

	ctx := services.WithRequestID(context.Background(), "req-1")
	if err := scheduler.ScheduleEnrichment(ctx, wineID, "0081234567890"); err != nil {
		t.Fatalf("ScheduleEnrichment failed: %v", err)
	}
	if len(submitter.jobs) != 1 || submitter.jobs[0].Kind != JobKind {
		t.Fatalf("unexpected jobs: %+v", submitter.jobs)
	}
	if err := submitter.jobs[0].Run(context.Background()); err != nil {
		t.Fatalf("job failed: %v", err)
	}
	if catalog.calls != 1 {
		t.Fatalf("expected one lookup, got %d", catalog.calls)
	}

	submitter.err = workqueue.ErrQueueFull
	if err := scheduler.ScheduleEnrichment(ctx, wineID, "0081234567890"); !errors.Is(err, workqueue.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"RIDGE VINEYARDS":    "Ridge Vineyards",
		"Château Margaux":    "Château Margaux",
		"  DOMAINE   LEROY ": "Domaine Leroy",
		"1855":               "1855",
		"":                   "",
	}
	for in, want := range cases {
		if got := displayName(in); got != want {
			t.Errorf("displayName(%q) = %q, want %q", in, got, want)
		}
	}
}
