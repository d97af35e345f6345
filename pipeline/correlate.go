package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/playmark/db"
	"github.com/onnwee/playmark/duration"
	"github.com/onnwee/playmark/telemetry"
	"github.com/onnwee/playmark/twitchapi"
)

// archivePad extends each broadcast's containment window to absorb the lag
// between stream end and archive duration finalization.
const archivePad = 30 * time.Second

// Correlate locates each resolved play inside the player's archived
// broadcasts. Plays that copied a duplicate's resolution also copy its match.
// Plays without a containing archive are either enqueued for later
// reconciliation (streamer live or broadcast recent) or logged and dropped.
func (p *Pipeline) Correlate(ctx context.Context, plays []ResolvedPlay) []PublishItem {
	logger := telemetry.LoggerWithCorr(ctx)
	var out []PublishItem
	matched := make(map[string]Match) // comment id -> match, for duplicate copies
	for _, play := range plays {
		if play.DuplicateOf != "" {
			if m, ok := matched[play.DuplicateOf]; ok {
				matched[play.CommentID] = m
				out = append(out, publishItem(play, m))
			}
			continue
		}

		videos, err := p.Helix.ListArchiveVideos(ctx, play.Player.TwitchID)
		p.pause(ctx)
		if err != nil {
			logger.Warn("archive listing failed",
				slog.String("twitch_id", play.Player.TwitchID), slog.Any("err", err))
			continue
		}
		p.auditTwitchName(ctx, play.Player, videos)

		if m, ok := matchVideo(videos, play.StartTime, p.Cfg.VODTimeOffset); ok {
			telemetry.VodsMatched.Inc()
			matched[play.CommentID] = m
			out = append(out, publishItem(play, m))
			continue
		}

		if p.shouldTrack(ctx, play, videos) {
			if err := p.enqueueTracker(ctx, play); err != nil {
				logger.Warn("tracker enqueue failed", slog.Any("err", err))
				continue
			}
			telemetry.TrackersEnqueued.Inc()
			p.logEvent(ctx, "broadcast not archived yet, tracking",
				play.CommentID, play.ThreadID, play.Player.OsuID, scoreIDString(play.ScoreID))
			continue
		}

		p.logEvent(ctx, "no containing broadcast found",
			play.CommentID, play.ThreadID, play.Player.OsuID, scoreIDString(play.ScoreID))
	}
	return out
}

// matchVideo returns the first broadcast that strictly contains the play
// start, with the deep-link offset adjusted by the configured clock-skew
// correction. Videos are assumed most recent first; the first hit wins.
func matchVideo(videos []twitchapi.Video, playStart time.Time, offsetCorrection int) (Match, bool) {
	for _, v := range videos {
		start := v.StartTime()
		if start.IsZero() {
			continue
		}
		end := start.Add(secondsDur(duration.ParseCompound(v.Duration))).Add(archivePad)
		if !playStart.After(start) || !playStart.Before(end) {
			continue
		}
		offset := int(playStart.Sub(start).Seconds()) + offsetCorrection
		if offset < 0 {
			offset = 0
		}
		stamp := duration.FormatCompound(offset)
		return Match{
			VideoID:       v.ID,
			URL:           v.URL + "?t=" + stamp,
			Timestamp:     stamp,
			OffsetSeconds: offset,
		}, true
	}
	return Match{}, false
}

// shouldTrack decides whether an unmatched play deserves a deferred retry:
// the streamer is live, or their latest broadcast is recent enough that a
// new archive may still appear. Liveness is first inferred from pending
// trackers before spending a network probe.
func (p *Pipeline) shouldTrack(ctx context.Context, play ResolvedPlay, videos []twitchapi.Video) bool {
	if len(videos) > 0 && time.Since(videos[0].StartTime()) < p.Cfg.RecencyWindow {
		return true
	}
	tracked, err := db.HasTrackerForStreamer(ctx, p.DB, play.Player.TwitchID)
	if err != nil {
		slog.Warn("tracker lookup failed", slog.Any("err", err))
	} else if tracked {
		return true
	}
	live, err := p.Helix.IsLive(ctx, play.Player.TwitchID)
	p.pause(ctx)
	if err != nil {
		slog.Warn("liveness probe failed", slog.Any("err", err))
		return false
	}
	return live
}

func (p *Pipeline) enqueueTracker(ctx context.Context, play ResolvedPlay) error {
	payload, err := json.Marshal(trackerPayload{
		CommentID: play.CommentID,
		ThreadID:  play.ThreadID,
		ThreadURL: play.ThreadURL,
		OsuID:     play.Player.OsuID,
		TwitchID:  play.Player.TwitchID,
		ScoreID:   play.ScoreID,
		BeatmapID: play.BeatmapID,
		StartTime: play.StartTime,
	})
	if err != nil {
		return err
	}
	return db.InsertTracker(ctx, p.DB, &db.Tracker{
		ThreadID:  play.ThreadID,
		TwitchID:  play.Player.TwitchID,
		PlayStart: play.StartTime,
		ExpiresAt: time.Now().Add(p.Cfg.TrackExpiration),
		Payload:   payload,
	})
}

// auditTwitchName reconciles the stored Twitch login against the owner login
// reported on the archive listing.
func (p *Pipeline) auditTwitchName(ctx context.Context, player *db.Player, videos []twitchapi.Video) {
	if len(videos) == 0 {
		return
	}
	current := videos[0].UserLogin
	if current == "" || current == player.TwitchName {
		return
	}
	telemetry.LoggerWithCorr(ctx).Info("twitch login changed",
		slog.String("twitch_id", player.TwitchID),
		slog.String("old", player.TwitchName), slog.String("new", current))
	if err := db.UpdatePlayerTwitchName(ctx, p.DB, player.ID, current); err != nil {
		slog.Warn("twitch name update failed", slog.Any("err", err))
		return
	}
	player.TwitchName = current
}

func publishItem(play ResolvedPlay, m Match) PublishItem {
	return PublishItem{
		CommentID: play.CommentID,
		ThreadID:  play.ThreadID,
		ThreadURL: play.ThreadURL,
		OsuID:     play.Player.OsuID,
		ScoreID:   play.ScoreID,
		Match:     m,
	}
}

func scoreIDString(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("%d", id)
}
