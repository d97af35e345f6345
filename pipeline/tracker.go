package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/playmark/db"
	"github.com/onnwee/playmark/telemetry"
)

// Reconcile sweeps expired trackers and retries the containment test for the
// rest against freshly-listed archives, one listing per broadcast owner. It
// runs at most once per QueueInterval no matter how often the poll loop
// invokes it. Resolved entries are deleted and returned as publishable items
// carrying their original payload fields.
func (p *Pipeline) Reconcile(ctx context.Context) ([]PublishItem, error) {
	now := time.Now()
	if !p.reconcileDue(ctx, now) {
		return nil, nil
	}
	logger := telemetry.LoggerWithCorr(ctx)

	expired, err := db.DeleteExpiredTrackers(ctx, p.DB, now)
	if err != nil {
		return nil, fmt.Errorf("expiry sweep: %w", err)
	}
	if expired > 0 {
		telemetry.TrackersExpired.Add(float64(expired))
		logger.Info("expired trackers swept", slog.Int64("count", expired))
	}

	trackers, err := db.ListTrackers(ctx, p.DB)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	telemetry.SetTrackerQueueDepth(len(trackers))
	if len(trackers) == 0 {
		return nil, nil
	}

	byOwner := make(map[string][]db.Tracker)
	var owners []string
	for _, tr := range trackers {
		if _, ok := byOwner[tr.TwitchID]; !ok {
			owners = append(owners, tr.TwitchID)
		}
		byOwner[tr.TwitchID] = append(byOwner[tr.TwitchID], tr)
	}

	var out []PublishItem
	for _, owner := range owners {
		videos, err := p.Helix.ListArchiveVideos(ctx, owner)
		p.pause(ctx)
		if err != nil {
			logger.Warn("archive listing failed during reconciliation",
				slog.String("twitch_id", owner), slog.Any("err", err))
			continue
		}
		for _, tr := range byOwner[owner] {
			m, ok := matchVideo(videos, tr.PlayStart, p.Cfg.VODTimeOffset)
			if !ok {
				continue
			}
			var payload trackerPayload
			if err := json.Unmarshal(tr.Payload, &payload); err != nil {
				logger.Warn("tracker payload unreadable, dropping",
					slog.Int64("tracker_id", tr.ID), slog.Any("err", err))
				if _, err := db.DeleteTrackersByThread(ctx, p.DB, tr.ThreadID); err != nil {
					logger.Warn("tracker delete failed", slog.Any("err", err))
				}
				continue
			}
			if _, err := db.DeleteTrackersByThread(ctx, p.DB, tr.ThreadID); err != nil {
				logger.Warn("tracker delete failed", slog.Any("err", err))
				continue
			}
			telemetry.TrackersResolved.Inc()
			p.logEvent(ctx, "tracked broadcast archived, resolving",
				payload.CommentID, payload.ThreadID, payload.OsuID, scoreIDString(payload.ScoreID))
			out = append(out, PublishItem{
				CommentID: payload.CommentID,
				ThreadID:  payload.ThreadID,
				ThreadURL: payload.ThreadURL,
				OsuID:     payload.OsuID,
				ScoreID:   payload.ScoreID,
				Match:     m,
			})
		}
	}
	return out, nil
}

const nextReconcileKey = "next_reconcile_at"

// reconcileDue enforces the reconciliation cadence across restarts: the next
// eligible run time is persisted, not held in memory, so a crash-loop cannot
// hammer the archive API.
func (p *Pipeline) reconcileDue(ctx context.Context, now time.Time) bool {
	raw, err := db.GetKV(ctx, p.DB, nextReconcileKey)
	if err != nil {
		slog.Warn("reconcile gate read failed", slog.Any("err", err))
	} else if raw != "" {
		next, err := time.Parse(time.RFC3339, raw)
		if err == nil && now.Before(next) {
			return false
		}
	}
	if err := db.SetKV(ctx, p.DB, nextReconcileKey, now.Add(p.Cfg.QueueInterval).Format(time.RFC3339)); err != nil {
		slog.Warn("reconcile gate write failed", slog.Any("err", err))
	}
	return true
}
