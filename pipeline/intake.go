package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/onnwee/playmark/db"
	"github.com/onnwee/playmark/redditapi"
	"github.com/onnwee/playmark/telemetry"
)

const (
	osuUserPrefix    = "https://osu.ppy.sh/u/"
	osuBeatmapPrefix = "https://osu.ppy.sh/b/"
)

// Intake fetches the latest bot comments and turns the unseen ones into
// candidates. Each comment is marked processed before any candidate work
// happens, so transient failures downstream never replay a comment.
func (p *Pipeline) Intake(ctx context.Context) ([]Candidate, error) {
	comments, err := p.Reddit.FetchComments(ctx, p.Cfg.RedditBotUser, p.Cfg.RedditLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	p.pause(ctx)
	telemetry.CommentsSeen.Add(float64(len(comments)))

	var out []Candidate
	for _, c := range comments {
		if c.LinkAuthor == "[deleted]" {
			continue
		}
		seen, err := db.IsCommentProcessed(ctx, p.DB, c.ID)
		if err != nil {
			return nil, fmt.Errorf("processed lookup %s: %w", c.ID, err)
		}
		if seen {
			continue
		}
		if err := db.MarkCommentProcessed(ctx, p.DB, c.ID); err != nil {
			return nil, fmt.Errorf("mark processed %s: %w", c.ID, err)
		}

		cand, reason, err := p.extract(ctx, c)
		if err != nil {
			return nil, err
		}
		if cand == nil {
			p.logEvent(ctx, reason, c.ID, threadID(c), "", "")
			continue
		}
		telemetry.CandidatesExtracted.Inc()
		out = append(out, *cand)
	}
	return out, nil
}

// extract parses one bot comment into a candidate. A nil candidate with a
// reason string is a terminal, expected drop; only store errors propagate.
func (p *Pipeline) extract(ctx context.Context, c redditapi.Comment) (*Candidate, string, error) {
	osuID, ok := playerRef(c.Body)
	if !ok {
		return nil, "comment carries no osu profile link", nil
	}
	beatmapID, ok := beatmapRef(c.Body)
	if !ok {
		return nil, "comment carries no beatmap link", nil
	}
	player, err := db.GetPlayerByOsuID(ctx, p.DB, osuID)
	if err != nil {
		return nil, "", fmt.Errorf("player lookup %s: %w", osuID, err)
	}
	if player == nil {
		return nil, "player is not tracked", nil
	}
	return &Candidate{
		Player:          player,
		BeatmapID:       beatmapID,
		ClaimedAccuracy: claimedAccuracy(c.LinkTitle),
		CommentID:       c.ID,
		ThreadID:        threadID(c),
		ThreadURL:       c.LinkPermalink,
	}, "", nil
}

// threadID strips the listing-kind prefix from the comment's parent link id;
// the publisher re-adds it when addressing a reply.
func threadID(c redditapi.Comment) string {
	return strings.TrimPrefix(c.LinkID, "t3_")
}

// playerRef pulls the osu user id out of the last profile link in the body.
// The id runs up to a close-paren (markdown link) or, failing that, a space.
func playerRef(body string) (string, bool) {
	parts := strings.Split(body, osuUserPrefix)
	if len(parts) < 2 {
		return "", false
	}
	tail := parts[len(parts)-1]
	if i := strings.IndexByte(tail, ')'); i >= 0 {
		tail = tail[:i]
	} else if i := strings.IndexByte(tail, ' '); i >= 0 {
		tail = tail[:i]
	}
	tail = strings.TrimSpace(tail)
	if tail == "" {
		return "", false
	}
	return tail, true
}

// beatmapRef pulls the numeric beatmap id out of the first beatmap link.
func beatmapRef(body string) (int64, bool) {
	_, tail, found := strings.Cut(body, osuBeatmapPrefix)
	if !found {
		return 0, false
	}
	if i := strings.IndexByte(tail, '?'); i >= 0 {
		tail = tail[:i]
	}
	if i := strings.IndexByte(tail, ')'); i >= 0 {
		tail = tail[:i]
	}
	id, err := strconv.ParseInt(strings.TrimSpace(tail), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// claimedAccuracy reads the accuracy percentage from a post title, taken as
// the space-delimited token immediately preceding the first '%'. Returns 0
// when the title claims none or the value is outside (0, 100].
func claimedAccuracy(title string) float64 {
	head, _, found := strings.Cut(title, "%")
	if !found {
		return 0
	}
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(fields[len(fields)-1], "("), 64)
	if err != nil || v <= 0 || v > 100 {
		return 0
	}
	return v
}
