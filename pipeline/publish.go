package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/playmark/telemetry"
)

// publishSpacing is the minimum gap between posted replies. Reddit throttles
// fast repeat posting well below its general API limit.
const publishSpacing = 5 * time.Second

// Publish posts one reply per resolved item, each linking the play's position
// inside the archived broadcast. When a debug thread is configured, replies
// are redirected there with a pointer back to the original thread instead of
// posting publicly. Failures are logged and skipped; the processed marker
// already guards against re-posting on a later cycle.
func (p *Pipeline) Publish(ctx context.Context, items []PublishItem) {
	logger := telemetry.LoggerWithCorr(ctx)
	for i, item := range items {
		if i > 0 {
			p.pauseFor(ctx, publishSpacing)
		}
		p.logEvent(ctx, "publishing broadcast link "+item.Match.URL,
			item.CommentID, item.ThreadID, item.OsuID, scoreIDString(item.ScoreID))

		target := "t3_" + item.ThreadID
		text := fmt.Sprintf("[Stream VOD link](%s) at ~%s", item.Match.URL, item.Match.Timestamp)
		if p.Cfg.RedditDebugThread != "" {
			target = "t3_" + p.Cfg.RedditDebugThread
			text = fmt.Sprintf("for [%s](%s):\n\n%s", item.ThreadID, item.ThreadURL, text)
		}
		if p.Cfg.SourceCodeURL != "" {
			text += fmt.Sprintf("\n\n---\n^[source](%s)", p.Cfg.SourceCodeURL)
		}

		if err := p.Reddit.PostComment(ctx, target, text); err != nil {
			telemetry.PublishesFailed.Inc()
			logger.Warn("reply post failed",
				slog.String("thread_id", item.ThreadID), slog.Any("err", err))
			continue
		}
		telemetry.PublishesSucceeded.Inc()
		logger.Info("reply posted",
			slog.String("thread_id", item.ThreadID),
			slog.String("timestamp", item.Match.Timestamp))
	}
}
