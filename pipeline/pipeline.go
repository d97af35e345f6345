// Package pipeline implements the score-to-broadcast correlation flow: comment
// intake and dedup, score resolution, VOD correlation, deferred tracking, and
// reply publishing. The flow is strictly sequential; every network-bound step
// is followed by a configurable pause to respect third-party rate limits.
package pipeline

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/onnwee/playmark/config"
	"github.com/onnwee/playmark/db"
	"github.com/onnwee/playmark/osuapi"
	"github.com/onnwee/playmark/redditapi"
	"github.com/onnwee/playmark/telemetry"
	"github.com/onnwee/playmark/twitchapi"
)

// CommentSource is the slice of the reddit client the pipeline consumes.
type CommentSource interface {
	FetchComments(ctx context.Context, user string, limit int) ([]redditapi.Comment, error)
	PostComment(ctx context.Context, thingID, text string) error
}

// ScoreSource is the slice of the osu client the pipeline consumes.
type ScoreSource interface {
	GetRecentScores(ctx context.Context, osuID string, limit int) ([]osuapi.Score, error)
}

// BroadcastSource is the slice of the Helix client the pipeline consumes.
type BroadcastSource interface {
	ListArchiveVideos(ctx context.Context, userID string) ([]twitchapi.Video, error)
	IsLive(ctx context.Context, userID string) (bool, error)
}

// LengthResolver resolves intro-trimmed beatmap lengths.
type LengthResolver interface {
	ResolveLength(ctx context.Context, beatmapID, setID int64, version string, reportedLen int) int
}

// Candidate is a claim, extracted from a comment, that a tracked player set a
// score on a beatmap. ClaimedAccuracy is 0 when the post title carried none.
type Candidate struct {
	Player          *db.Player
	BeatmapID       int64
	ClaimedAccuracy float64
	CommentID       string
	ThreadID        string
	ThreadURL       string
	// DuplicateOf names the earlier comment whose resolution this candidate
	// copied, when the batch dedup short-circuit fired.
	DuplicateOf string
}

// ResolvedPlay is a candidate bound to a concrete recent score.
type ResolvedPlay struct {
	Candidate
	ScoreID int64
	Mods    []string
	// EffectiveLength is the modifier-adjusted playable length in seconds.
	EffectiveLength int
	// StartTime = score submission time - EffectiveLength.
	StartTime time.Time
}

// Match locates a play inside an archived broadcast.
type Match struct {
	VideoID       string `json:"video_id"`
	URL           string `json:"url"`
	Timestamp     string `json:"timestamp"`
	OffsetSeconds int    `json:"offset_seconds"`
}

// PublishItem is a resolved link ready for the publisher.
type PublishItem struct {
	CommentID string
	ThreadID  string
	ThreadURL string
	OsuID     string
	ScoreID   int64
	Match     Match
}

// trackerPayload is the typed snapshot persisted with a deferred correlation.
// Reconciliation overlays a fresh Match onto these fields.
type trackerPayload struct {
	CommentID string    `json:"comment_id"`
	ThreadID  string    `json:"thread_id"`
	ThreadURL string    `json:"thread_url"`
	OsuID     string    `json:"osu_id"`
	TwitchID  string    `json:"twitch_id"`
	ScoreID   int64     `json:"score_id"`
	BeatmapID int64     `json:"beatmap_id"`
	StartTime time.Time `json:"start_time"`
}

// Pipeline wires the correlation flow. All state lives in the database; the
// struct itself holds only clients and configuration. Access to the store is
// unsynchronized: correctness relies on a single RunCycle at a time.
type Pipeline struct {
	DB      *sql.DB
	Cfg     *config.Config
	Reddit  CommentSource
	Osu     ScoreSource
	Helix   BroadcastSource
	Lengths LengthResolver
}

// New builds a pipeline from its collaborators.
func New(dbx *sql.DB, cfg *config.Config, reddit CommentSource, osu ScoreSource, helix BroadcastSource, lengths LengthResolver) *Pipeline {
	telemetry.Init()
	return &Pipeline{DB: dbx, Cfg: cfg, Reddit: reddit, Osu: osu, Helix: helix, Lengths: lengths}
}

// RunCycle executes one full poll cycle: intake, resolve, correlate, publish,
// then tracker reconciliation. Failures inside a cycle are logged and dropped;
// the next cycle re-derives everything except tracker state from upstream.
func (p *Pipeline) RunCycle(ctx context.Context) {
	telemetry.Init()
	telemetry.Cycles.Inc()
	ctx, span := telemetry.StartSpan(ctx, "pipeline", "cycle")
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx)

	telemetry.TimeFunc(telemetry.CycleDuration, func() {
		candidates, err := p.Intake(ctx)
		if err != nil {
			logger.Warn("comment intake failed", slog.Any("err", err))
		} else if len(candidates) > 0 {
			plays := p.Resolve(ctx, candidates)
			if len(plays) > 0 {
				items := p.Correlate(ctx, plays)
				p.Publish(ctx, items)
			}
		}

		delayed, err := p.Reconcile(ctx)
		if err != nil {
			logger.Warn("tracker reconciliation failed", slog.Any("err", err))
		} else if len(delayed) > 0 {
			p.Publish(ctx, delayed)
		}
	})
}

// pause sleeps for the configured minimum inter-call spacing. This is a
// deliberate backpressure mechanism, not an incidental delay.
func (p *Pipeline) pause(ctx context.Context) {
	p.pauseFor(ctx, p.Cfg.RateLimitDelay)
}

func secondsDur(s int) time.Duration { return time.Duration(s) * time.Second }

func (p *Pipeline) pauseFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// logEvent writes the diagnostic trail row and mirrors it to the logger.
func (p *Pipeline) logEvent(ctx context.Context, message, commentID, threadID, playerID, scoreID string) {
	telemetry.LoggerWithCorr(ctx).Info(message,
		slog.String("comment_id", commentID),
		slog.String("thread_id", threadID),
		slog.String("player_id", playerID),
		slog.String("score_id", scoreID),
		slog.String("component", "pipeline"))
	if err := db.InsertEventLog(ctx, p.DB, message, commentID, threadID, playerID, scoreID); err != nil {
		slog.Warn("event log insert failed", slog.Any("err", err))
	}
}
