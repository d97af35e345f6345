package pipeline

import (
	"testing"
	"time"

	"github.com/onnwee/playmark/twitchapi"
)

func video(id, createdAt, dur string) twitchapi.Video {
	return twitchapi.Video{
		ID:        id,
		URL:       "https://www.twitch.tv/videos/" + id,
		Duration:  dur,
		CreatedAt: createdAt,
	}
}

func TestMatchVideoContainmentBoundaries(t *testing.T) {
	// Broadcast: starts 12:00:00, runs 1h, pad 30s -> window (12:00:00, 13:00:30).
	videos := []twitchapi.Video{video("100", "2026-08-01T12:00:00Z", "1h")}
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		playStart time.Time
		want      bool
	}{
		{"exactly at start", start, false},
		{"one second in", start.Add(time.Second), true},
		{"exactly at padded end", start.Add(time.Hour + 30*time.Second), false},
		{"one second before padded end", start.Add(time.Hour + 29*time.Second), true},
		{"before start", start.Add(-time.Minute), false},
		{"after padded end", start.Add(2 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := matchVideo(videos, tc.playStart, 0)
			if ok != tc.want {
				t.Errorf("matchVideo at %s = %v, want %v", tc.playStart, ok, tc.want)
			}
		})
	}
}

func TestMatchVideoFirstHitWins(t *testing.T) {
	// Both broadcasts contain the play; the listing order decides.
	videos := []twitchapi.Video{
		video("201", "2026-08-01T12:00:00Z", "2h"),
		video("200", "2026-08-01T11:00:00Z", "4h"),
	}
	m, ok := matchVideo(videos, time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC), 0)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.VideoID != "201" {
		t.Errorf("VideoID = %s, want 201", m.VideoID)
	}
	if m.OffsetSeconds != 1800 {
		t.Errorf("OffsetSeconds = %d, want 1800", m.OffsetSeconds)
	}
	if m.URL != "https://www.twitch.tv/videos/201?t=0h30m0s" {
		t.Errorf("URL = %s", m.URL)
	}
}

func TestMatchVideoSkipsToContainingBroadcast(t *testing.T) {
	// Most recent broadcast started after the play; the second one contains it.
	videos := []twitchapi.Video{
		video("301", "2026-08-01T15:00:00Z", "1h"),
		video("300", "2026-08-01T11:00:00Z", "3h"),
	}
	m, ok := matchVideo(videos, time.Date(2026, 8, 1, 13, 10, 5, 0, time.UTC), 0)
	if !ok {
		t.Fatal("expected a match on the second broadcast")
	}
	if m.VideoID != "300" {
		t.Errorf("VideoID = %s, want 300", m.VideoID)
	}
	if m.Timestamp != "2h10m5s" {
		t.Errorf("Timestamp = %s, want 2h10m5s", m.Timestamp)
	}
}

func TestMatchVideoOffsetCorrection(t *testing.T) {
	videos := []twitchapi.Video{video("400", "2026-08-01T12:00:00Z", "1h")}
	playStart := time.Date(2026, 8, 1, 12, 10, 0, 0, time.UTC)

	m, _ := matchVideo(videos, playStart, -90)
	if m.OffsetSeconds != 510 {
		t.Errorf("OffsetSeconds with -90 correction = %d, want 510", m.OffsetSeconds)
	}

	// A correction larger than the raw offset clamps at the video start.
	m, _ = matchVideo(videos, playStart, -700)
	if m.OffsetSeconds != 0 {
		t.Errorf("OffsetSeconds clamped = %d, want 0", m.OffsetSeconds)
	}
}

func TestMatchVideoIgnoresUnparsableStart(t *testing.T) {
	videos := []twitchapi.Video{
		video("500", "not-a-timestamp", "1h"),
		video("501", "2026-08-01T12:00:00Z", "1h"),
	}
	m, ok := matchVideo(videos, time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC), 0)
	if !ok || m.VideoID != "501" {
		t.Errorf("match = %+v ok=%v, want video 501", m, ok)
	}
}
