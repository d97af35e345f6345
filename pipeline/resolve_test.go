package pipeline

import (
	"testing"

	"github.com/onnwee/playmark/db"
)

func TestAccuracyMatchesTolerance(t *testing.T) {
	cases := []struct {
		actual, claimed float64
		want            bool
	}{
		{99, 99, true},
		{98.01, 99, true},  // exactly on the lower bound: 99*0.99 and 98.01 are the same float64
		{97.99, 99, false}, // just outside
		{99.98, 99, true},
		{99.99, 99, true}, // exactly on the upper bound
		{100.0, 99, false},
		{95, 99, false},
		{99.5, 99.4, true},
	}
	for _, tc := range cases {
		if got := accuracyMatches(tc.actual, tc.claimed); got != tc.want {
			t.Errorf("accuracyMatches(%v, %v) = %v, want %v", tc.actual, tc.claimed, got, tc.want)
		}
	}
}

func TestDuplicateOf(t *testing.T) {
	player := &db.Player{ID: 1, OsuID: "7562902"}
	other := &db.Player{ID: 2, OsuID: "124493"}
	resolved := []ResolvedPlay{{
		Candidate: Candidate{Player: player, BeatmapID: 129891, ClaimedAccuracy: 99, CommentID: "c1"},
		ScoreID:   42,
	}}

	cases := []struct {
		name string
		cand Candidate
		want bool
	}{
		{"close accuracy same map", Candidate{Player: player, BeatmapID: 129891, ClaimedAccuracy: 99.4, CommentID: "c2"}, true},
		{"accuracy out of tolerance", Candidate{Player: player, BeatmapID: 129891, ClaimedAccuracy: 95, CommentID: "c2"}, false},
		{"candidate claims no accuracy", Candidate{Player: player, BeatmapID: 129891, CommentID: "c2"}, true},
		{"different beatmap", Candidate{Player: player, BeatmapID: 53, ClaimedAccuracy: 99, CommentID: "c2"}, false},
		{"different player", Candidate{Player: other, BeatmapID: 129891, ClaimedAccuracy: 99, CommentID: "c2"}, false},
		{"same comment is not a duplicate", Candidate{Player: player, BeatmapID: 129891, ClaimedAccuracy: 99, CommentID: "c1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := duplicateOf(tc.cand, resolved)
			if (got != nil) != tc.want {
				t.Errorf("duplicateOf = %v, want match=%v", got, tc.want)
			}
			if got != nil && got.ScoreID != 42 {
				t.Errorf("ScoreID = %d, want 42", got.ScoreID)
			}
		})
	}
}

func TestDuplicateOfAbsentAccuracyOnPrior(t *testing.T) {
	player := &db.Player{ID: 1, OsuID: "7562902"}
	resolved := []ResolvedPlay{{
		Candidate: Candidate{Player: player, BeatmapID: 129891, CommentID: "c1"},
		ScoreID:   7,
	}}
	cand := Candidate{Player: player, BeatmapID: 129891, ClaimedAccuracy: 91.2, CommentID: "c2"}
	if duplicateOf(cand, resolved) == nil {
		t.Error("prior without claimed accuracy should match any accuracy")
	}
}
