package oauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSourceCachesToken(t *testing.T) {
	calls := 0
	s := &Source{
		Provider: "test",
		Fetch: func(ctx context.Context) (string, string, time.Time, string, error) {
			calls++
			return "tok-1", "", time.Now().Add(time.Hour), "", nil
		},
	}
	ctx := context.Background()

	tok, err := s.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "tok-1" {
		t.Errorf("token = %q, want tok-1", tok)
	}
	if _, err := s.Token(ctx); err != nil {
		t.Fatalf("second Token: %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (cached)", calls)
	}
}

func TestSourceRefreshesExpired(t *testing.T) {
	calls := 0
	s := &Source{
		Provider: "test",
		Fetch: func(ctx context.Context) (string, string, time.Time, string, error) {
			calls++
			// Expires within the buffer, so every call refetches.
			return "tok", "", time.Now().Add(10 * time.Second), "", nil
		},
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Token(ctx); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if calls != 3 {
		t.Errorf("fetch calls = %d, want 3 (always stale)", calls)
	}
}

func TestSourcePropagatesFetchError(t *testing.T) {
	wantErr := errors.New("upstream down")
	s := &Source{
		Provider: "test",
		Fetch: func(ctx context.Context) (string, string, time.Time, string, error) {
			return "", "", time.Time{}, "", wantErr
		},
	}
	if _, err := s.Token(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Token error = %v, want %v", err, wantErr)
	}
}
