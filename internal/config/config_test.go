package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ParsesAndDefaults(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("LOG_DIR", "./_testlogs")
	t.Setenv("STORAGE", "memory")
	t.Setenv("ADMIN_SECRET", "open sesame")
	t.Setenv("PROBE_TIMEOUT", "1234ms")
	t.Setenv("NOTIFY_ATTEMPTS", "5")
	t.Setenv("MAX_CONCURRENT_CHECKS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.LogDir != "./_testlogs" {
		t.Fatalf("addr/logdir wrong: %+v", cfg)
	}
	if cfg.Storage != StorageMemory || cfg.AdminSecret != "open sesame" {
		t.Fatalf("storage/secret wrong: %+v", cfg)
	}
	if cfg.ProbeTimeout != 1234*time.Millisecond {
		t.Fatalf("probe timeout wrong: %v", cfg.ProbeTimeout)
	}
	if cfg.NotifyAttempts != 5 || cfg.MaxConcurrent != 7 {
		t.Fatalf("ints wrong: %+v", cfg)
	}
	if cfg.TelegramAPIURL != "https://api.telegram.org" || cfg.NotifyQueue != 64 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if !cfg.ProbeDNSDiagnose || cfg.TrustProxy {
		t.Fatalf("bool defaults wrong: dns=%v proxy=%v", cfg.ProbeDNSDiagnose, cfg.TrustProxy)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("TELEGRAM_BOT_TOKEN=123:abc\nSTORAGE=memory\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("TELEGRAM_BOT_TOKEN")
		os.Unsetenv("STORAGE")
	})

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelegramToken != "123:abc" {
		t.Fatalf("token from env file not loaded: %q", cfg.TelegramToken)
	}
}

func TestLoad_RejectsBadStorage(t *testing.T) {
	t.Setenv("STORAGE", "mongo")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for unknown storage")
	}

	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for postgres without DATABASE_URL")
	}
}
