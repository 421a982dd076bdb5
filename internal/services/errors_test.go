package services_test

import (
	"errors"
	"strings"
	"testing"

	"cellar/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProviderError, "barcodelookup", "lookup", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProviderError) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"barcodelookup", "lookup", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrProviderError) {
		t.Fatalf("expected provider error marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrNotFound, "store", "get wine", "", nil), "not_found"},
		{services.Wrap(services.ErrConflict, "reconcile", "scan", "slot taken", nil), "conflict"},
		{services.Wrap(services.ErrInvalidTransition, "store", "advance", "", nil), "invalid_transition"},
		{services.Wrap(services.ErrProviderUnavailable, "enrichment", "", "", nil), "provider_unavailable"},
		{services.Wrap(services.ErrValidation, "reconcile", "barcode", "", nil), "validation"},
		{errors.New("disk full"), "internal"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
