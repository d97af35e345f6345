// Package beatmap resolves the true playable length of a beatmap. The platform
// API reports a length that includes the skippable intro, which players almost
// always skip, so computed play start times drift by the intro length. The fix
// is to download the mapset archive and read the first/last hit-object times
// out of the .osu file itself.
package beatmap

import (
	"fmt"
	"strconv"
	"strings"
)

// mapInfo is the parsed identity and timing of one .osu entry.
type mapInfo struct {
	BeatmapID    int64
	BeatmapSetID int64
	StartMs      int
	EndMs        int
}

// headerValue extracts a "Key:value" header field from .osu file text, or "".
func headerValue(data, key string) string {
	marker := key + ":"
	idx := strings.Index(data, marker)
	if idx < 0 {
		return ""
	}
	rest := data[idx+len(marker):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(strings.ReplaceAll(rest, "\r", ""))
}

// parseMapInfo extracts ids and hit-object timing from a single .osu file.
// When the embedded BeatmapID/BeatmapSetID headers are missing or implausible
// (older map format versions store 0 or -1), the entry is matched by its
// Version header against the caller-known difficulty name and the caller's ids
// are substituted; on mismatch the entry is rejected.
func parseMapInfo(data string, mainBeatmapID, mainSetID int64, mainVersion string) (*mapInfo, error) {
	beatmapID, _ := strconv.ParseInt(headerValue(data, "BeatmapID"), 10, 64)
	setID, _ := strconv.ParseInt(headerValue(data, "BeatmapSetID"), 10, 64)

	if beatmapID < 2 || setID < 2 {
		if headerValue(data, "Version") != mainVersion {
			return nil, fmt.Errorf("entry ids implausible and version mismatch")
		}
		beatmapID = mainBeatmapID
		setID = mainSetID
	}

	start, end, err := hitObjectSpan(data)
	if err != nil {
		return nil, err
	}
	return &mapInfo{BeatmapID: beatmapID, BeatmapSetID: setID, StartMs: start, EndMs: end}, nil
}

// hitObjectSpan returns the time of the first playable hit object and the end
// time of the last one, in milliseconds. The line right after the [HitObjects]
// header is a sentinel (the remainder of the header line), so the first object
// is at index 1; the file's trailing newline puts the last object at len-2.
// Spinners store their end time in the field after the usual position.
func hitObjectSpan(data string) (start, end int, err error) {
	_, section, found := strings.Cut(data, "[HitObjects]")
	if !found {
		return 0, 0, fmt.Errorf("no [HitObjects] section")
	}
	lines := strings.Split(section, "\n")
	if len(lines) < 3 {
		return 0, 0, fmt.Errorf("hit object section too short")
	}

	first := strings.Split(strings.TrimRight(lines[1], "\r"), ",")
	if len(first) < 3 {
		return 0, 0, fmt.Errorf("malformed first hit object")
	}
	start, err = strconv.Atoi(first[2])
	if err != nil {
		return 0, 0, fmt.Errorf("first hit object time: %w", err)
	}

	last := strings.Split(strings.TrimRight(lines[len(lines)-2], "\r"), ",")
	endField := 2
	if len(last) > 3 && last[3] == "3" {
		endField = 4
	}
	if len(last) <= endField {
		return 0, 0, fmt.Errorf("malformed last hit object")
	}
	end, err = strconv.Atoi(last[endField])
	if err != nil {
		return 0, 0, fmt.Errorf("last hit object time: %w", err)
	}
	return start, end, nil
}
