package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RedditBotUser != "osu-bot" {
		t.Errorf("RedditBotUser = %q, want osu-bot", cfg.RedditBotUser)
	}
	if cfg.RedditLimit != 25 {
		t.Errorf("RedditLimit = %d, want 25", cfg.RedditLimit)
	}
	if cfg.OsuRecentLimit != 50 {
		t.Errorf("OsuRecentLimit = %d, want 50", cfg.OsuRecentLimit)
	}
	if cfg.RateLimitDelay != 500*time.Millisecond {
		t.Errorf("RateLimitDelay = %v, want 500ms", cfg.RateLimitDelay)
	}
	if cfg.RecencyWindow != 14*24*time.Hour {
		t.Errorf("RecencyWindow = %v, want 336h", cfg.RecencyWindow)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDDIT_LIMIT", "100")
	t.Setenv("VOD_TIME_OFFSET", "-8")
	t.Setenv("RATE_LIMIT_DELAY", "2s")
	t.Setenv("VOD_TRACK_EXPIRATION", "24h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RedditLimit != 100 {
		t.Errorf("RedditLimit = %d, want 100", cfg.RedditLimit)
	}
	if cfg.VODTimeOffset != -8 {
		t.Errorf("VODTimeOffset = %d, want -8", cfg.VODTimeOffset)
	}
	if cfg.RateLimitDelay != 2*time.Second {
		t.Errorf("RateLimitDelay = %v, want 2s", cfg.RateLimitDelay)
	}
	if cfg.TrackExpiration != 24*time.Hour {
		t.Errorf("TrackExpiration = %v, want 24h", cfg.TrackExpiration)
	}
}

func TestValidatePipelineReady(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidatePipelineReady(); err == nil {
		t.Error("expected error with empty config")
	}

	cfg = &Config{
		RedditAppID: "a", RedditAppSecret: "b", RedditUsername: "c", RedditPassword: "d",
		OsuClientID: "e", OsuClientSecret: "f",
		TwitchClientID: "g", TwitchClientSecret: "h",
	}
	if err := cfg.ValidatePipelineReady(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
