package twitchapi

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/onnwee/playmark/oauth"
)

// DefaultTokenURL is the Twitch client-credentials token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token" //nolint:gosec // G101: endpoint URL, not a credential

// NewTokenSource builds a DB-backed app-token source using the client-credentials
// grant. The app token works for Helix reads (videos, streams, users); it cannot
// be used for user-scoped operations.
func NewTokenSource(dbx *sql.DB, clientID, clientSecret, tokenURL string) *oauth.Source {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &oauth.Source{
		DB:       dbx,
		Provider: "twitch",
		Fetch: func(ctx context.Context) (string, string, time.Time, string, error) {
			tok, err := cc.Token(ctx)
			if err != nil {
				return "", "", time.Time{}, "", err
			}
			return tok.AccessToken, tok.RefreshToken, tok.Expiry, strings.Join(cc.Scopes, " "), nil
		},
	}
}
