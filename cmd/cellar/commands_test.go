package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cellar/internal/api"
	"cellar/internal/services"
	"cellar/internal/testsupport"
)

func TestScanEditAndDeleteThroughCLI(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "scan", "0123456", "--slot", "A1", "--price", "12.5")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "Recorded bottle 1 for wine 1")

	if _, _, err := env.run(t, "scan", "0123456", "--slot", "A1"); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for occupied slot, got %v", err)
	}

	out, _, err = env.run(t, "wines", "list")
	if err != nil {
		t.Fatalf("wines list: %v", err)
	}
	requireContains(t, out, "(pending lookup)")
	requireContains(t, out, "0123456")

	out, _, err = env.run(t, "--json", "wines", "list", "--placeholders")
	if err != nil {
		t.Fatalf("wines list --json: %v", err)
	}
	var listed api.WineListResponse
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(listed.Wines) != 1 || listed.Wines[0].BottleCount != 1 || !listed.Wines[0].Placeholder {
		t.Fatalf("unexpected listing %+v", listed.Wines)
	}

	out, _, err = env.run(t, "wines", "show", "1")
	if err != nil {
		t.Fatalf("wines show: %v", err)
	}
	requireContains(t, out, "A1")
	requireContains(t, out, "12.50")

	out, _, err = env.run(t, "wines", "edit", "1", "--producer", "Ridge", "--vintage", "2019", "--drink-from", "2024-01-01")
	if err != nil {
		t.Fatalf("wines edit: %v", err)
	}
	requireContains(t, out, "Ridge")
	requireContains(t, out, "2019")
	requireContains(t, out, "2024-01-01")

	out, _, err = env.run(t, "--json", "wines", "edit", "1", "--clear", "drinkFrom")
	if err != nil {
		t.Fatalf("wines edit --clear: %v", err)
	}
	var edited api.Wine
	if err := json.Unmarshal([]byte(out), &edited); err != nil {
		t.Fatalf("decode edit: %v", err)
	}
	if edited.DrinkFrom != nil || edited.Producer == nil || *edited.Producer != "Ridge" {
		t.Fatalf("unexpected wine after clear %+v", edited)
	}

	if _, _, err := env.run(t, "wines", "edit", "1", "--vintage", "1200"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	out, _, err = env.run(t, "bottles", "delete", "1")
	if err != nil {
		t.Fatalf("bottles delete: %v", err)
	}
	requireContains(t, out, "Removed bottle 1")

	out, _, err = env.run(t, "wines", "delete", "1")
	if err != nil {
		t.Fatalf("wines delete: %v", err)
	}
	requireContains(t, out, "Deleted wine 1 and 0 bottle(s)")

	if _, _, err := env.run(t, "wines", "show", "1"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestWinesShowRejectsBadID(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := env.run(t, "wines", "show", "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid wine id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestLabelUploadWaitReportsFailureWithoutProvider(t *testing.T) {
	env := setupCLITestEnv(t)

	imagePath := filepath.Join(env.baseDir, "label.png")
	if err := os.WriteFile(imagePath, []byte("\x89PNG\r\n\x1a\nfake"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	out, _, err := env.run(t, "--json", "labels", "upload", imagePath, "--wait", "--timeout", "10s")
	if err != nil {
		t.Fatalf("labels upload: %v", err)
	}
	var task api.LabelTask
	if err := json.Unmarshal([]byte(out), &task); err != nil {
		t.Fatalf("decode task: %v\n%s", err, out)
	}
	if task.Status != "failed" || !strings.Contains(task.Error, "not configured") {
		t.Fatalf("expected failed task without provider, got %+v", task)
	}

	out, _, err = env.run(t, "labels", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("labels list: %v", err)
	}
	requireContains(t, out, "failed")

	out, _, err = env.run(t, "labels", "list", "--status", "done")
	if err != nil {
		t.Fatalf("labels list done: %v", err)
	}
	requireContains(t, out, "No label tasks")

	if _, _, err := env.run(t, "scan", "99887766"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, _, err := env.run(t, "labels", "apply", "1", "--wine", "1"); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition applying a failed task, got %v", err)
	}
	if _, _, err := env.run(t, "labels", "apply", "1"); err == nil {
		t.Fatal("expected error without --wine")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("cli-secret"))

	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running")
	requireContains(t, out, "barcode_lookup")

	out, _, err = env.run(t, "--json", "status")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.PID != os.Getpid() {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatusWithoutTokenIsRejected(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("cli-secret"))
	writeTestConfig(t, env.configPath, testsupport.NewConfig(t), env.apiAddress)

	_, _, err := env.run(t, "status")
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestConnectionRefusedHint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg, "127.0.0.1:1")

	_, _, err := runCLI(t, []string{"status"}, configPath)
	if err == nil || !strings.Contains(err.Error(), "cellar daemon") {
		t.Fatalf("expected start hint, got %v", err)
	}
}

func TestStopReportsNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg, "127.0.0.1:1")

	out, _, err := runCLI(t, []string{"stop"}, configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestLogsCommandFiltersLines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg, "127.0.0.1:1")

	logDir := filepath.Join(base, "cli-logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{"level":"info","msg":"scan recorded","component":"reconcile","wine_id":1}` + "\n" +
		`{"level":"warn","msg":"lookup failed","component":"enrichment","wine_id":2}` + "\n"
	if err := os.WriteFile(filepath.Join(logDir, "cellar.log"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "--component", "enrichment"}, configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "lookup failed")
	if strings.Contains(out, "scan recorded") {
		t.Fatalf("filter leaked other component:\n%s", out)
	}
}
