package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestLogRingEvictsOldestFirst(t *testing.T) {
	r := NewLogRing(3)
	if got := r.Lines(); len(got) != 0 {
		t.Fatalf("empty ring Lines() = %v", got)
	}
	r.Append("a")
	r.Append("b")
	if got := r.Lines(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Lines() = %v", got)
	}
	r.Append("c")
	r.Append("d") // evicts a
	r.Append("e") // evicts b
	got := r.Lines()
	want := []string{"c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("Lines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Lines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLogRingCapacityDefault(t *testing.T) {
	r := NewLogRing(0)
	for i := 0; i < 100; i++ {
		r.Append(fmt.Sprintf("line-%d", i))
	}
	got := r.Lines()
	if len(got) != 20 {
		t.Fatalf("len = %d, want default capacity 20", len(got))
	}
	if got[0] != "line-80" || got[19] != "line-99" {
		t.Errorf("window = %q..%q", got[0], got[19])
	}
}

func TestRingHandlerCaptures(t *testing.T) {
	ring := NewLogRing(5)
	logger := slog.New(NewRingHandler(slog.NewTextHandler(io.Discard, nil), ring))
	logger.Info("score resolved", slog.String("comment_id", "abc123"))

	lines := ring.Lines()
	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	if want := "score resolved"; !contains(lines[0], want) {
		t.Errorf("line %q missing %q", lines[0], want)
	}
	if want := "comment_id=abc123"; !contains(lines[0], want) {
		t.Errorf("line %q missing %q", lines[0], want)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
