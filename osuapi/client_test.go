package osuapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/playmark/testutil"
)

func TestGetRecentScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/124493/scores/recent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer osu-token" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":         991, // most recent first
				"accuracy":   0.9934,
				"mods":       []string{"HD", "DT"},
				"created_at": "2024-03-02T19:04:05Z",
				"user":       map[string]string{"username": "cookiezi"},
				"beatmap":    map[string]any{"id": 129891, "beatmapset_id": 39804, "version": "Extra", "hit_length": 142},
			},
		})
	}))
	defer srv.Close()

	c := &Client{TokenSource: testutil.StaticToken("osu-token"), BaseURL: srv.URL}
	scores, err := c.GetRecentScores(context.Background(), "124493", 0)
	if err != nil {
		t.Fatalf("GetRecentScores: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("len = %d, want 1", len(scores))
	}
	s := scores[0]
	if s.ID != 991 || s.Beatmap.ID != 129891 || s.User.Username != "cookiezi" {
		t.Errorf("score = %+v", s)
	}
	if s.Accuracy != 0.9934 {
		t.Errorf("accuracy = %v", s.Accuracy)
	}
	if s.SubmittedAt().IsZero() {
		t.Error("SubmittedAt not parsed")
	}
}

func TestGetUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/124493" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"username": "cookiezi"})
	}))
	defer srv.Close()

	c := &Client{TokenSource: testutil.StaticToken("t"), BaseURL: srv.URL}
	name, err := c.GetUsername(context.Background(), "124493")
	if err != nil {
		t.Fatalf("GetUsername: %v", err)
	}
	if name != "cookiezi" {
		t.Errorf("name = %q", name)
	}
	if _, err := c.GetUsername(context.Background(), "0"); err == nil {
		t.Error("expected error for missing user")
	}
}
