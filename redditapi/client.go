// Package redditapi reads the score-post bot's comment feed and posts replies.
// Reddit requires a distinctive User-Agent on every request, including the
// token exchange, and uses the resource-owner password grant for script apps.
package redditapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	localoauth "github.com/onnwee/playmark/oauth"
)

const (
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token" //nolint:gosec // G101: endpoint URL, not a credential
)

// userAgentTransport stamps the configured User-Agent on every request.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	rt := t.base
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(req)
}

// Credentials holds the script-app credentials for the password grant.
type Credentials struct {
	AppID     string
	AppSecret string
	Username  string
	Password  string
	UserAgent string
	TokenURL  string
}

// NewTokenSource builds a DB-backed token source using the password grant.
func NewTokenSource(dbx *sql.DB, creds Credentials) *localoauth.Source {
	tokenURL := creds.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	conf := &oauth2.Config{
		ClientID:     creds.AppID,
		ClientSecret: creds.AppSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return &localoauth.Source{
		DB:       dbx,
		Provider: "reddit",
		Fetch: func(ctx context.Context) (string, string, time.Time, string, error) {
			hc := &http.Client{Transport: &userAgentTransport{agent: creds.UserAgent}, Timeout: 15 * time.Second}
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
			tok, err := conf.PasswordCredentialsToken(ctx, creds.Username, creds.Password)
			if err != nil {
				return "", "", time.Time{}, "", err
			}
			return tok.AccessToken, tok.RefreshToken, tok.Expiry, "", nil
		},
	}
}

// TokenProvider yields a bearer token for API calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client is a thin reddit API client scoped to the comment feed and replies.
type Client struct {
	TokenSource TokenProvider
	UserAgent   string
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

func (c *Client) do(ctx context.Context, method, path string, body string, out any) error {
	tok, err := c.TokenSource.Token(ctx)
	if err != nil {
		return err
	}
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", c.UserAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
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
		return fmt.Errorf("reddit %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Comment is one entry from the bot's comment feed. Link* fields describe the
// score post the comment was left on.
type Comment struct {
	ID            string `json:"id"`
	Body          string `json:"body"`
	LinkAuthor    string `json:"link_author"`
	LinkTitle     string `json:"link_title"`
	LinkID        string `json:"link_id"`
	LinkPermalink string `json:"link_permalink"`
}

// FetchComments returns the most recent comments authored by the given user.
func (c *Client) FetchComments(ctx context.Context, user string, limit int) ([]Comment, error) {
	var body struct {
		Data struct {
			Children []struct {
				Data Comment `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/user/%s/comments?limit=%d", user, limit)
	if err := c.do(ctx, http.MethodGet, path, "", &body); err != nil {
		return nil, err
	}
	out := make([]Comment, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		out = append(out, child.Data)
	}
	return out, nil
}

// PostComment replies to the given thing (thread or comment) with markdown text.
func (c *Client) PostComment(ctx context.Context, thingID, text string) error {
	form := url.Values{}
	form.Set("thing_id", thingID)
	form.Set("text", text)
	return c.do(ctx, http.MethodPost, "/api/comment", form.Encode(), nil)
}
