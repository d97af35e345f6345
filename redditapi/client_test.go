package redditapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/onnwee/playmark/testutil"
)

func TestFetchComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/osu-bot/comments" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "25" {
			t.Errorf("limit = %q, want 25", got)
		}
		if got := r.Header.Get("User-Agent"); got != "playmark-test/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"children": []map[string]any{
					{"data": map[string]string{
						"id":             "abc123",
						"body":           "some score breakdown",
						"link_author":    "someuser",
						"link_title":     "player | song [Diff] 99.21%",
						"link_id":        "t3_link1",
						"link_permalink": "https://reddit.com/r/osugame/comments/link1/",
					}},
				},
			},
		})
	}))
	defer srv.Close()

	c := &Client{TokenSource: testutil.StaticToken("tok"), UserAgent: "playmark-test/1.0", BaseURL: srv.URL}
	comments, err := c.FetchComments(context.Background(), "osu-bot", 25)
	if err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("len = %d, want 1", len(comments))
	}
	if comments[0].ID != "abc123" || comments[0].LinkID != "t3_link1" {
		t.Errorf("comment = %+v", comments[0])
	}
}

func TestPostComment(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/comment" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Client{TokenSource: testutil.StaticToken("tok"), UserAgent: "ua", BaseURL: srv.URL}
	if err := c.PostComment(context.Background(), "t3_link1", "[Stream VOD link](u) at ~1h2m10s"); err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	if gotForm.Get("thing_id") != "t3_link1" {
		t.Errorf("thing_id = %q", gotForm.Get("thing_id"))
	}
	if gotForm.Get("text") == "" {
		t.Error("text missing")
	}
}

func TestPostCommentErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := &Client{TokenSource: testutil.StaticToken("tok"), UserAgent: "ua", BaseURL: srv.URL}
	if err := c.PostComment(context.Background(), "t3_x", "text"); err == nil {
		t.Error("expected error on 403")
	}
}
