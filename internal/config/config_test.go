package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.test/webhook")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AppEnv != EnvDev {
		t.Fatalf("AppEnv = %q, want %q", cfg.AppEnv, EnvDev)
	}
	if cfg.SleepFloor != time.Minute {
		t.Fatalf("SleepFloor = %s, want 1m", cfg.SleepFloor)
	}
	if cfg.SleepCeiling != time.Hour {
		t.Fatalf("SleepCeiling = %s, want 1h", cfg.SleepCeiling)
	}
	if cfg.BonusNotifyCap != 10 {
		t.Fatalf("BonusNotifyCap = %d, want 10", cfg.BonusNotifyCap)
	}
	if len(cfg.Categories) != 4 {
		t.Fatalf("expected 4 monitoring categories, got %d", len(cfg.Categories))
	}

	byName := make(map[string]CategoryConfig, len(cfg.Categories))
	for _, category := range cfg.Categories {
		byName[category.Name] = category
	}

	live := byName[CategoryLivePerformance]
	if !live.FixtureDependent {
		t.Fatal("live_performance must be fixture dependent")
	}
	if live.Interval != time.Minute {
		t.Fatalf("live interval = %s, want 1m", live.Interval)
	}

	price := byName[CategoryPriceChanges]
	if len(price.States) != 1 || price.States[0] != "price_window" {
		t.Fatalf("price_changes states = %v, want [price_window]", price.States)
	}
}

func TestLoadRequiresWebhook(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DISCORD_WEBHOOK_URL") {
		t.Fatalf("expected missing webhook error, got %v", err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.test/webhook")
	t.Setenv("LIVE_PERFORMANCE_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error for LIVE_PERFORMANCE_INTERVAL")
	}
}

func TestLoadRejectsBadPriceWindow(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.test/webhook")
	t.Setenv("PRICE_WINDOW_START", "25:99")

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error for PRICE_WINDOW_START")
	}
}

func TestParseHintMap(t *testing.T) {
	routes, err := parseHintMap("prices=https://a.test/1, live=https://a.test/2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if routes["prices"] != "https://a.test/1" || routes["live"] != "https://a.test/2" {
		t.Fatalf("unexpected routes: %v", routes)
	}

	if _, err := parseHintMap("broken"); err == nil {
		t.Fatal("expected error for pair without '='")
	}
}
