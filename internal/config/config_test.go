package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_session = \"work\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultSession != "work" {
		t.Errorf("default_session = %q", cfg.DefaultSession)
	}
	if cfg.LookbackDays != DefaultLookbackDays {
		t.Errorf("lookback_days = %d, want default %d", cfg.LookbackDays, DefaultLookbackDays)
	}
	if cfg.Ollama.Model != DefaultOllamaModel {
		t.Errorf("ollama.model = %q", cfg.Ollama.Model)
	}
	if cfg.ChatDBPath == "" {
		t.Error("chat_db_path default not applied")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("lookback_days = -3\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for negative lookback")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	in := Default()
	in.DefaultSession = "personal"
	in.LookbackDays = 7

	if err := Save(path, in); err != nil {
		t.Fatal(err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.DefaultSession != "personal" || out.LookbackDays != 7 {
		t.Errorf("round trip lost fields: %+v", out)
	}
}
