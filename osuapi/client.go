// Package osuapi wraps the osu! v2 API calls the pipeline needs: recent plays
// for a player and user lookup. Auth is an app token (client-credentials,
// public scope).
package osuapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/onnwee/playmark/oauth"
)

const (
	DefaultBaseURL  = "https://osu.ppy.sh/api/v2"
	DefaultTokenURL = "https://osu.ppy.sh/oauth/token" //nolint:gosec // G101: endpoint URL, not a credential
)

// NewTokenSource builds a DB-backed app-token source for the osu API.
func NewTokenSource(dbx *sql.DB, clientID, clientSecret, tokenURL string) *oauth.Source {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"public"},
	}
	return &oauth.Source{
		DB:       dbx,
		Provider: "osu",
		Fetch: func(ctx context.Context) (string, string, time.Time, string, error) {
			tok, err := cc.Token(ctx)
			if err != nil {
				return "", "", time.Time{}, "", err
			}
			return tok.AccessToken, tok.RefreshToken, tok.Expiry, "public", nil
		},
	}
}

// TokenProvider yields a bearer token for API calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client is a thin osu v2 API client.
type Client struct {
	TokenSource TokenProvider
	BaseURL     string
	HTTPClient  *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	tok, err := c.TokenSource.Token(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("osu api %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Beatmap is the per-play beatmap summary inside a score.
type Beatmap struct {
	ID           int64  `json:"id"`
	BeatmapsetID int64  `json:"beatmapset_id"`
	Version      string `json:"version"`
	// HitLength is the platform-reported length in seconds. It includes the
	// skippable intro, so it overestimates how long the player actually played.
	HitLength int `json:"hit_length"`
}

// Score is one recent play.
type Score struct {
	ID        int64    `json:"id"`
	Accuracy  float64  `json:"accuracy"` // fraction in [0,1]
	Mods      []string `json:"mods"`
	CreatedAt string   `json:"created_at"`
	User      struct {
		Username string `json:"username"`
	} `json:"user"`
	Beatmap Beatmap `json:"beatmap"`
}

// SubmittedAt parses the score submission timestamp.
func (s Score) SubmittedAt() time.Time {
	t, _ := time.Parse(time.RFC3339, s.CreatedAt)
	return t
}

// GetRecentScores returns a player's recent plays, most recent first.
func (c *Client) GetRecentScores(ctx context.Context, osuID string, limit int) ([]Score, error) {
	if limit <= 0 {
		limit = 50
	}
	var scores []Score
	path := fmt.Sprintf("/users/%s/scores/recent?mode=osu&limit=%d", osuID, limit)
	if err := c.get(ctx, path, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// GetUsername resolves an osu user id to its current display name.
func (c *Client) GetUsername(ctx context.Context, osuID string) (string, error) {
	var user struct {
		Username string `json:"username"`
	}
	if err := c.get(ctx, "/users/"+osuID, &user); err != nil {
		return "", err
	}
	if user.Username == "" {
		return "", fmt.Errorf("user %s not found", osuID)
	}
	return user.Username, nil
}
