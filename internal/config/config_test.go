package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCCHAT_SERVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "http://localhost:5000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Theme != "dark" {
		t.Errorf("Theme = %q", cfg.Theme)
	}
}

func TestEnvOverridesServerURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCCHAT_SERVER", "https://chat.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://chat.example.com" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
}

func TestSaveRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCCHAT_SERVER", "")

	want := Config{
		ServerURL:      "http://backend:8080",
		Theme:          "light",
		TimeoutSeconds: 30,
		DebugLogging:   true,
	}
	if err := Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestMalformedFileFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DOCCHAT_SERVER", "")

	dir := filepath.Join(home, ".docchat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err == nil {
		t.Error("expected an error for a malformed file")
	}
	if cfg.ServerURL != "http://localhost:5000" {
		t.Errorf("ServerURL = %q, want the default", cfg.ServerURL)
	}
}
