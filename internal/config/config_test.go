package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LINKSCOUT_HOST", "LINKSCOUT_PORT", "LINKSCOUT_DATA_DIR",
		"LINKSCOUT_REFRESH_SCHEDULE", "LINKSCOUT_DISPATCH_WORKERS",
		"LINKSCOUT_RESOLVER_HEADLESS", "LINKSCOUT_TELEGRAM_API_BASE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Host != "127.0.0.1" {
		t.Fatalf("expected default host, got %q", cfg.Host)
	}
	if cfg.Port != "8000" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.DataDir != ".data" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	wantSchedule := []string{"0 0 * * *", "30 1 * * *", "0 3 * * *"}
	if !reflect.DeepEqual(cfg.RefreshSchedule, wantSchedule) {
		t.Fatalf("expected default schedule %v, got %v", wantSchedule, cfg.RefreshSchedule)
	}
	if !cfg.ResolverHeadless {
		t.Fatalf("expected resolver headless by default")
	}
	if cfg.TelegramAPIBase != "https://api.telegram.org" {
		t.Fatalf("unexpected telegram api base: %q", cfg.TelegramAPIBase)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LINKSCOUT_PORT", "9100")
	t.Setenv("LINKSCOUT_REFRESH_SCHEDULE", "15 2 * * * , 45 4 * * *")
	t.Setenv("LINKSCOUT_DISPATCH_WORKERS", "2")
	t.Setenv("LINKSCOUT_RESOLVER_HEADLESS", "false")
	t.Setenv("LINKSCOUT_RESOLVER_MAX_ATTEMPTS", "5")

	cfg := Load()
	if cfg.Port != "9100" {
		t.Fatalf("expected port override, got %q", cfg.Port)
	}
	wantSchedule := []string{"15 2 * * *", "45 4 * * *"}
	if !reflect.DeepEqual(cfg.RefreshSchedule, wantSchedule) {
		t.Fatalf("expected schedule %v, got %v", wantSchedule, cfg.RefreshSchedule)
	}
	if cfg.DispatchWorkers != 2 {
		t.Fatalf("expected 2 dispatch workers, got %d", cfg.DispatchWorkers)
	}
	if cfg.ResolverHeadless {
		t.Fatalf("expected headless disabled")
	}
	if cfg.ResolverMaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.ResolverMaxAttempts)
	}
}

func TestParseEnvIntRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not-a-number": "abc",
		"zero":         "0",
		"negative":     "-3",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LINKSCOUT_SEARCH_WORKERS", raw)
			cfg := Load()
			if cfg.SearchWorkers != 8 {
				t.Fatalf("expected fallback 8, got %d", cfg.SearchWorkers)
			}
		})
	}
}
