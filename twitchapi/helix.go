// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for user resolution, archived-video listing, and live-stream probing, using
// an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Helix endpoint; tests point BaseURL at a mock.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// TokenProvider yields a bearer token for Helix calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// HelixClient provides the methods needed for VOD correlation.
type HelixClient struct {
	TokenSource TokenProvider
	ClientID    string
	BaseURL     string
	HTTPClient  *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return DefaultBaseURL
}

func (hc *HelixClient) get(ctx context.Context, path string, params map[string]string, out any) error {
	tok, err := hc.TokenSource.Token(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+path, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("helix %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// User is a Helix user record.
type User struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

// GetUserByLogin resolves a login name to its user record.
func (hc *HelixClient) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.get(ctx, "/users", map[string]string{"login": login}, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("user not found")
	}
	return &body.Data[0], nil
}

// Video is an archived broadcast as reported by Helix.
type Video struct {
	ID        string `json:"id"`
	UserLogin string `json:"user_login"`
	URL       string `json:"url"`
	Duration  string `json:"duration"` // compound "XhYmZs"
	CreatedAt string `json:"created_at"`
}

// StartTime parses the broadcast start timestamp.
func (v Video) StartTime() time.Time {
	t, _ := time.Parse(time.RFC3339, v.CreatedAt)
	return t
}

// ListArchiveVideos lists archive-type videos for a user, most recent first.
func (hc *HelixClient) ListArchiveVideos(ctx context.Context, userID string) ([]Video, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID empty")
	}
	var body struct {
		Data []Video `json:"data"`
	}
	if err := hc.get(ctx, "/videos", map[string]string{"user_id": userID, "type": "archive"}, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// IsLive reports whether the user has a live stream right now.
func (hc *HelixClient) IsLive(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID empty")
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/streams", map[string]string{"user_id": userID}, &body); err != nil {
		return false, err
	}
	return len(body.Data) > 0, nil
}
