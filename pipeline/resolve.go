package pipeline

import (
	"context"
	"log/slog"

	"github.com/onnwee/playmark/db"
	"github.com/onnwee/playmark/duration"
	"github.com/onnwee/playmark/telemetry"
)

// Resolve binds each candidate to a concrete score from the player's recent
// history. Candidates that duplicate an already-resolved play in the same
// batch copy its resolution instead of hitting the API again. Misses are
// logged to the event trail and dropped.
func (p *Pipeline) Resolve(ctx context.Context, candidates []Candidate) []ResolvedPlay {
	logger := telemetry.LoggerWithCorr(ctx)
	var out []ResolvedPlay
	for _, cand := range candidates {
		if prior := duplicateOf(cand, out); prior != nil {
			telemetry.DuplicatesShorted.Inc()
			dup := *prior
			dup.Candidate = cand
			dup.DuplicateOf = prior.CommentID
			out = append(out, dup)
			continue
		}

		play, err := p.resolveOne(ctx, cand)
		p.pause(ctx)
		if err != nil {
			logger.Warn("score lookup failed",
				slog.String("osu_id", cand.Player.OsuID), slog.Any("err", err))
			continue
		}
		if play == nil {
			p.logEvent(ctx, "osu score not found in recent history",
				cand.CommentID, cand.ThreadID, cand.Player.OsuID, "")
			continue
		}
		telemetry.ScoresResolved.Inc()
		out = append(out, *play)
	}
	return out
}

func (p *Pipeline) resolveOne(ctx context.Context, cand Candidate) (*ResolvedPlay, error) {
	scores, err := p.Osu.GetRecentScores(ctx, cand.Player.OsuID, p.Cfg.OsuRecentLimit)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}
	p.auditOsuName(ctx, cand.Player, scores[0].User.Username)

	for _, s := range scores {
		if s.Beatmap.ID != cand.BeatmapID {
			continue
		}
		if cand.ClaimedAccuracy > 0 && !accuracyMatches(s.Accuracy*100, cand.ClaimedAccuracy) {
			continue
		}
		length := p.Lengths.ResolveLength(ctx, s.Beatmap.ID, s.Beatmap.BeatmapsetID, s.Beatmap.Version, s.Beatmap.HitLength)
		effective := duration.Effective(length, s.Mods)
		return &ResolvedPlay{
			Candidate:       cand,
			ScoreID:         s.ID,
			Mods:            s.Mods,
			EffectiveLength: effective,
			StartTime:       s.SubmittedAt().Add(-secondsDur(effective)),
		}, nil
	}
	return nil, nil
}

// auditOsuName reconciles the stored osu display name against the name the
// API reports, so future duplicate checks keep working across renames.
func (p *Pipeline) auditOsuName(ctx context.Context, player *db.Player, current string) {
	if current == "" || current == player.OsuName {
		return
	}
	telemetry.LoggerWithCorr(ctx).Info("osu display name changed",
		slog.String("osu_id", player.OsuID),
		slog.String("old", player.OsuName), slog.String("new", current))
	if err := db.UpdatePlayerOsuName(ctx, p.DB, player.ID, current); err != nil {
		slog.Warn("osu name update failed", slog.Any("err", err))
		return
	}
	player.OsuName = current
}

// duplicateOf returns the earlier resolved play this candidate repeats, if
// any: same player, same beatmap, different comment, and either accuracy
// matching or one side claiming no accuracy at all.
func duplicateOf(cand Candidate, resolved []ResolvedPlay) *ResolvedPlay {
	for i := range resolved {
		r := &resolved[i]
		if r.CommentID == cand.CommentID {
			continue
		}
		if r.Player.OsuID != cand.Player.OsuID || r.BeatmapID != cand.BeatmapID {
			continue
		}
		if cand.ClaimedAccuracy == 0 || r.ClaimedAccuracy == 0 ||
			accuracyMatches(r.ClaimedAccuracy, cand.ClaimedAccuracy) {
			return r
		}
	}
	return nil
}

// accuracyTolEps absorbs float64 representation error at the tolerance
// bounds: 99*0.99 and 98.01 are the same float64, and a bare strict
// comparison would reject a value sitting exactly on the band edge.
const accuracyTolEps = 1e-9

// accuracyMatches reports whether two accuracy percentages agree within a
// ±1% relative band. Values on the band edge count as inside.
func accuracyMatches(actual, claimed float64) bool {
	return actual > claimed*0.99-accuracyTolEps && actual < claimed*1.01+accuracyTolEps
}
