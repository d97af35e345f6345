package pipeline

import "testing"

const sampleCommentBody = "[mrekk](https://osu.ppy.sh/u/7562902) | " +
	"[xi - Blue Zenith [FOUR DIMENSIONS]](https://osu.ppy.sh/b/658127?m=0) " +
	"+HDDT 99.13% | 1059pp"

func TestPlayerRef(t *testing.T) {
	cases := []struct {
		name, body string
		want       string
		ok         bool
	}{
		{"markdown link", sampleCommentBody, "7562902", true},
		{"bare link", "check https://osu.ppy.sh/u/124493 out", "124493", true},
		{"takes the last profile link",
			"[a](https://osu.ppy.sh/u/1) versus [b](https://osu.ppy.sh/u/2)", "2", true},
		{"link at end of body", "https://osu.ppy.sh/u/999", "999", true},
		{"no link", "nothing here", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := playerRef(tc.body)
			if got != tc.want || ok != tc.ok {
				t.Errorf("playerRef = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestBeatmapRef(t *testing.T) {
	cases := []struct {
		name, body string
		want       int64
		ok         bool
	}{
		{"with mode query", sampleCommentBody, 658127, true},
		{"no query string", "[map](https://osu.ppy.sh/b/129891)", 129891, true},
		{"no link", "https://osu.ppy.sh/u/2", 0, false},
		{"garbage id", "https://osu.ppy.sh/b/abc?m=0", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := beatmapRef(tc.body)
			if got != tc.want || ok != tc.ok {
				t.Errorf("beatmapRef = (%d, %v), want (%d, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestClaimedAccuracy(t *testing.T) {
	cases := []struct {
		name, title string
		want        float64
	}{
		{"plain", "mrekk | Blue Zenith [FOUR DIMENSIONS] +HDDT 99.13% 1059pp", 99.13},
		{"parenthesized", "player | Some Map [Insane] HD (97.5%) if FC", 97.5},
		{"integer accuracy", "player | Map [Extra] 100% SS", 100},
		{"no percent sign", "player | Map [Hard] 300pp", 0},
		{"percent not an accuracy", "player | Map [Hard] top50% placement", 0},
		{"out of range", "player | Map [Hard] 250% speed", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := claimedAccuracy(tc.title); got != tc.want {
				t.Errorf("claimedAccuracy(%q) = %v, want %v", tc.title, got, tc.want)
			}
		})
	}
}
