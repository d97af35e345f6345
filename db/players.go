package db

import (
	"context"
	"database/sql"
	"time"
)

// Player links an osu! account to the Twitch channel it streams on.
type Player struct {
	ID         int64
	OsuID      string
	OsuName    string
	TwitchID   string
	TwitchName string
}

// GetPlayerByOsuID returns the tracked player with the given osu id, or nil.
func GetPlayerByOsuID(ctx context.Context, dbx *sql.DB, osuID string) (*Player, error) {
	return scanPlayer(dbx.QueryRowContext(ctx,
		`SELECT id, osu_id, osu_name, twitch_id, twitch_name FROM players WHERE osu_id=$1`, osuID))
}

// GetPlayerByTwitchName returns the tracked player with the given Twitch login, or nil.
func GetPlayerByTwitchName(ctx context.Context, dbx *sql.DB, login string) (*Player, error) {
	return scanPlayer(dbx.QueryRowContext(ctx,
		`SELECT id, osu_id, osu_name, twitch_id, twitch_name FROM players WHERE twitch_name=$1`, login))
}

func scanPlayer(row *sql.Row) (*Player, error) {
	var p Player
	var osuName, twitchID, twitchName sql.NullString
	err := row.Scan(&p.ID, &p.OsuID, &osuName, &twitchID, &twitchName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.OsuName = osuName.String
	p.TwitchID = twitchID.String
	p.TwitchName = twitchName.String
	return &p, nil
}

// InsertPlayer registers a new tracked player.
func InsertPlayer(ctx context.Context, dbx *sql.DB, p *Player) error {
	return dbx.QueryRowContext(ctx,
		`INSERT INTO players (osu_id, osu_name, twitch_id, twitch_name, created_at) VALUES ($1,$2,$3,$4,NOW()) RETURNING id`,
		p.OsuID, p.OsuName, p.TwitchID, p.TwitchName).Scan(&p.ID)
}

// UpdatePlayerOsuName persists a detected osu display-name change.
func UpdatePlayerOsuName(ctx context.Context, dbx *sql.DB, id int64, name string) error {
	_, err := dbx.ExecContext(ctx, `UPDATE players SET osu_name=$1, updated_at=NOW() WHERE id=$2`, name, id)
	return err
}

// UpdatePlayerTwitchName persists a detected Twitch login change.
func UpdatePlayerTwitchName(ctx context.Context, dbx *sql.DB, id int64, name string) error {
	_, err := dbx.ExecContext(ctx, `UPDATE players SET twitch_name=$1, updated_at=NOW() WHERE id=$2`, name, id)
	return err
}

// MarkCommentProcessed records a comment id before any side effect of handling it,
// so a crash mid-processing never causes a permanent skip. Idempotent.
func MarkCommentProcessed(ctx context.Context, dbx *sql.DB, commentID string) error {
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO processed_comments (comment_id, created_at) VALUES ($1,NOW()) ON CONFLICT (comment_id) DO NOTHING`, commentID)
	return err
}

// IsCommentProcessed reports whether a processed marker exists for the comment.
func IsCommentProcessed(ctx context.Context, dbx *sql.DB, commentID string) (bool, error) {
	return ExistsBy(ctx, dbx, "processed_comments", "comment_id", commentID)
}

// InsertEventLog writes a diagnostic trail row with full correlating context.
// Expected-miss outcomes (score not found, VOD not found, player untracked) all land here.
func InsertEventLog(ctx context.Context, dbx *sql.DB, message, commentID, threadID, playerID, scoreID string) error {
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO event_logs (comment_id, thread_id, player_id, score_id, message, created_at) VALUES ($1,$2,$3,$4,$5,NOW())`,
		commentID, threadID, nullIfEmpty(playerID), nullIfEmpty(scoreID), message)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// BeatmapLength is the cached intro-trimmed playable length of a single beatmap.
// Rows are immutable once written; first correct value wins.
type BeatmapLength struct {
	BeatmapID     int64
	BeatmapSetID  int64
	StartOffsetMs int
	EndOffsetMs   int
	LengthSeconds int
}

// GetBeatmapLength returns the cached length record for a beatmap, or nil.
func GetBeatmapLength(ctx context.Context, dbx *sql.DB, beatmapID int64) (*BeatmapLength, error) {
	var bl BeatmapLength
	err := dbx.QueryRowContext(ctx,
		`SELECT beatmap_id, beatmap_set_id, start_offset_ms, end_offset_ms, length_seconds FROM beatmap_lengths WHERE beatmap_id=$1`,
		beatmapID).Scan(&bl.BeatmapID, &bl.BeatmapSetID, &bl.StartOffsetMs, &bl.EndOffsetMs, &bl.LengthSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bl, nil
}

// InsertBeatmapLength stores a parsed length record. Conflicts are ignored: the
// first parse wins and records are never invalidated.
func InsertBeatmapLength(ctx context.Context, dbx *sql.DB, bl *BeatmapLength) error {
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO beatmap_lengths (beatmap_id, beatmap_set_id, start_offset_ms, end_offset_ms, length_seconds, created_at)
		 VALUES ($1,$2,$3,$4,$5,NOW()) ON CONFLICT (beatmap_id) DO NOTHING`,
		bl.BeatmapID, bl.BeatmapSetID, bl.StartOffsetMs, bl.EndOffsetMs, bl.LengthSeconds)
	return err
}

// Tracker is a suspended correlation awaiting a broadcast archive.
type Tracker struct {
	ID        int64
	ThreadID  string
	TwitchID  string
	PlayStart time.Time
	ExpiresAt time.Time
	Payload   []byte
}

// InsertTracker enqueues a pending correlation.
func InsertTracker(ctx context.Context, dbx *sql.DB, tr *Tracker) error {
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO vod_trackers (thread_id, twitch_id, play_start, expires_at, payload, created_at) VALUES ($1,$2,$3,$4,$5,NOW())`,
		tr.ThreadID, tr.TwitchID, tr.PlayStart, tr.ExpiresAt, tr.Payload)
	return err
}

// ListTrackers returns all pending trackers.
func ListTrackers(ctx context.Context, dbx *sql.DB) ([]Tracker, error) {
	rows, err := dbx.QueryContext(ctx,
		`SELECT id, thread_id, twitch_id, play_start, expires_at, payload FROM vod_trackers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tracker
	for rows.Next() {
		var tr Tracker
		if err := rows.Scan(&tr.ID, &tr.ThreadID, &tr.TwitchID, &tr.PlayStart, &tr.ExpiresAt, &tr.Payload); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// DeleteExpiredTrackers sweeps entries past their expiry and returns the count.
func DeleteExpiredTrackers(ctx context.Context, dbx *sql.DB, now time.Time) (int64, error) {
	res, err := dbx.ExecContext(ctx, `DELETE FROM vod_trackers WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteTrackersByThread removes all trackers for a resolved thread.
func DeleteTrackersByThread(ctx context.Context, dbx *sql.DB, threadID string) (int64, error) {
	return DeleteBy(ctx, dbx, "vod_trackers", "thread_id", threadID)
}

// HasTrackerForStreamer reports whether any pending tracker references the
// given Twitch user. Used as a cheap liveness hint before probing the API.
func HasTrackerForStreamer(ctx context.Context, dbx *sql.DB, twitchID string) (bool, error) {
	return ExistsBy(ctx, dbx, "vod_trackers", "twitch_id", twitchID)
}
