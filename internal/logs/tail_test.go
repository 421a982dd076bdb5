package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cellar/internal/logs"
)

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellar.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	lines, _, err = logs.Last(path, 10)
	if err != nil || len(lines) != 3 || lines[0] != "a" {
		t.Fatalf("Last(10) = %#v, %v", lines, err)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", lines, offset, err)
	}
}

func TestReadFromLeavesPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellar.log")
	if err := os.WriteFile(path, []byte("one\ntw"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	lines, offset, err := logs.ReadFrom(path, 0)
	if err != nil || len(lines) != 1 || lines[0] != "one" || offset != 4 {
		t.Fatalf("ReadFrom = %#v %d %v", lines, offset, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("o\n")
	f.Close()

	lines, offset, err = logs.ReadFrom(path, offset)
	if err != nil || len(lines) != 1 || lines[0] != "two" || offset != 8 {
		t.Fatalf("ReadFrom after append = %#v %d %v", lines, offset, err)
	}

	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, _, err = logs.ReadFrom(path, offset)
	if err != nil || len(lines) != 1 || lines[0] != "new" {
		t.Fatalf("expected restart after truncation, got %#v %v", lines, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellar.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 20*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("next\n")
	f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("follow did not emit appended line")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "next" {
		t.Fatalf("unexpected lines %#v", got)
	}
}

func TestFilterMatch(t *testing.T) {
	jsonLine := `{"ts":"2026-01-01T00:00:00Z","level":"warn","msg":"lookup failed","component":"enrichment","wine_id":7}`
	cases := []struct {
		name   string
		filter logs.Filter
		line   string
		want   bool
	}{
		{"empty filter", logs.Filter{}, "anything", true},
		{"level passes", logs.Filter{MinLevel: "info"}, jsonLine, true},
		{"level blocks", logs.Filter{MinLevel: "error"}, jsonLine, false},
		{"component", logs.Filter{Component: "enrichment"}, jsonLine, true},
		{"other component", logs.Filter{Component: "labelreader"}, jsonLine, false},
		{"wine id", logs.Filter{WineID: 7}, jsonLine, true},
		{"other wine", logs.Filter{WineID: 8}, jsonLine, false},
		{"contains", logs.Filter{Contains: "lookup"}, jsonLine, true},
		{"console line with structured filter", logs.Filter{Component: "enrichment"}, "INFO enrichment lookup", false},
		{"console line contains", logs.Filter{Contains: "lookup"}, "INFO enrichment lookup", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Match(tc.line); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}
