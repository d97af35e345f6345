package beatmap

import (
	"archive/zip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/onnwee/playmark/db"
	"github.com/onnwee/playmark/telemetry"
)

// Service resolves intro-trimmed beatmap lengths through a persisted cache,
// downloading and parsing the mapset archive on a miss.
type Service struct {
	DB         *sql.DB
	MirrorURL  string // mapset download endpoint; the set id is appended as a path segment
	DataDir    string
	HTTPClient *http.Client
}

// NewService builds a length cache backed by the given store and mirror.
func NewService(dbx *sql.DB, mirrorURL, dataDir string) *Service {
	telemetry.Init()
	return &Service{DB: dbx, MirrorURL: mirrorURL, DataDir: dataDir}
}

func (s *Service) http() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}

// ResolveLength returns the playable length in seconds for the beatmap.
// Cache hit wins; otherwise the mapset archive is fetched and parsed. Any
// download or parse failure degrades to the platform-reported length rather
// than blocking the pipeline.
func (s *Service) ResolveLength(ctx context.Context, beatmapID, setID int64, version string, reportedLen int) int {
	if cached, err := db.GetBeatmapLength(ctx, s.DB, beatmapID); err != nil {
		slog.Warn("beatmap cache read failed", slog.Int64("beatmap_id", beatmapID), slog.Any("err", err))
	} else if cached != nil {
		slog.Debug("beatmap length from cache", slog.Int64("beatmap_id", beatmapID),
			slog.Int("cached", cached.LengthSeconds), slog.Int("reported", reportedLen))
		return cached.LengthSeconds
	}

	telemetry.LengthCacheMisses.Inc()
	if err := s.downloadAndParse(ctx, beatmapID, setID, version); err != nil {
		slog.Warn("mapset download failed, using reported length",
			slog.Int64("beatmap_set_id", setID), slog.Int64("beatmap_id", beatmapID), slog.Any("err", err))
		return reportedLen
	}

	cached, err := db.GetBeatmapLength(ctx, s.DB, beatmapID)
	if err != nil || cached == nil {
		slog.Warn("beatmap absent after mapset parse, using reported length", slog.Int64("beatmap_id", beatmapID))
		return reportedLen
	}
	slog.Info("beatmap length resolved", slog.Int64("beatmap_id", beatmapID),
		slog.Int("parsed", cached.LengthSeconds), slog.Int("reported", reportedLen))
	return cached.LengthSeconds
}

// downloadAndParse fetches the mapset archive, parses every .osu entry it can,
// and persists a length record per entry. The archive file is removed
// afterward regardless of outcome.
func (s *Service) downloadAndParse(ctx context.Context, beatmapID, setID int64, version string) error {
	path, err := s.fetchArchive(ctx, setID)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to remove mapset archive", slog.String("path", path), slog.Any("err", err))
		}
	}()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	parsed := 0
	for _, entry := range zr.File {
		if !strings.HasSuffix(entry.Name, ".osu") {
			continue
		}
		data, err := readZipEntry(entry)
		if err != nil {
			slog.Warn("failed to read mapset entry", slog.String("entry", entry.Name), slog.Any("err", err))
			continue
		}
		info, err := parseMapInfo(data, beatmapID, setID, version)
		if err != nil {
			slog.Debug("skipping mapset entry", slog.String("entry", entry.Name), slog.Any("err", err))
			continue
		}
		rec := &db.BeatmapLength{
			BeatmapID:     info.BeatmapID,
			BeatmapSetID:  info.BeatmapSetID,
			StartOffsetMs: info.StartMs,
			EndOffsetMs:   info.EndMs,
			LengthSeconds: int(math.Round(float64(info.EndMs-info.StartMs) / 1000)),
		}
		if err := db.InsertBeatmapLength(ctx, s.DB, rec); err != nil {
			slog.Warn("failed to insert beatmap length", slog.Int64("beatmap_id", info.BeatmapID), slog.Any("err", err))
			continue
		}
		parsed++
	}
	if parsed == 0 {
		return fmt.Errorf("no parseable .osu entries in set %d", setID)
	}
	return nil
}

// fetchArchive downloads the .osz for a set into DataDir and returns its path.
func (s *Service) fetchArchive(ctx context.Context, setID int64) (string, error) {
	url := fmt.Sprintf("%s/%d", strings.TrimRight(s.MirrorURL, "/"), setID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mirror %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(s.DataDir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(s.DataDir, fmt.Sprintf("%d.osz", setID))
	f, err := os.Create(path) //nolint:gosec // G304: path is built from a numeric set id under DataDir
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func readZipEntry(entry *zip.File) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	// .osu files are small text files; a hard cap guards against zip bombs.
	data, err := io.ReadAll(io.LimitReader(rc, 8<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
