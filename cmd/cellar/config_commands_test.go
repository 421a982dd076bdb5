package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSampleOnce(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, target)
}

func TestConfigShowMasksSecrets(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CELLAR_API_TOKEN", "")
	t.Setenv("BARCODELOOKUP_KEY", "")
	path := filepath.Join(home, "config.toml")
	content := "[paths]\n" +
		"data_dir = \"" + filepath.Join(home, "data") + "\"\n" +
		"api_token = \"supersecret-token\"\n" +
		"[barcode_lookup]\napi_key = \"abcdef123456\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := runCLI(t, []string{"config", "show"}, path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "supersecret") || strings.Contains(out, "abcdef") {
		t.Fatalf("secrets leaked in output:\n%s", out)
	}
	requireContains(t, out, "****oken")
	requireContains(t, out, "****3456")
	requireContains(t, out, "api_bind")
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"abc":       "****",
		"abcdefghi": "****fghi",
	}
	for in, want := range cases {
		if got := maskSecret(in); got != want {
			t.Fatalf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
