package identity

import (
	"fmt"
	"time"

	"stemfetch/internal/services/craig"
	"stemfetch/internal/textutil"
)

// Source carries the metadata fields that feed base-name derivation.
type Source struct {
	ID              string
	StartTime       string
	GuildName       string
	ChannelName     string
	DurationSeconds int
	UserCount       int
}

// SourceFromMetadata extracts naming inputs from a recording metadata document.
func SourceFromMetadata(meta *craig.Metadata) Source {
	return Source{
		ID:              meta.Recording.ID,
		StartTime:       meta.Recording.StartTime,
		GuildName:       meta.GuildName(),
		ChannelName:     meta.ChannelName(),
		DurationSeconds: meta.Duration,
		UserCount:       len(meta.Users),
	}
}

// BaseName derives the deterministic recording directory name:
// timestamp, guild slug, channel slug, recording id, user count, and a
// compact duration. The result is a pure function of the source metadata
// except when the start time is unparseable, in which case the supplied
// clock substitutes a wall-clock timestamp (second granularity only; the
// collision suffix in CreateDirs is the fallback for same-second runs).
func BaseName(src Source, now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	id := src.ID
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s_%s_%du_%s",
		startStamp(src.StartTime, now),
		textutil.Slug(src.GuildName),
		textutil.Slug(src.ChannelName),
		id,
		src.UserCount,
		CompactDuration(src.DurationSeconds),
	)
}

func startStamp(iso string, now func() time.Time) string {
	if iso != "" {
		if dt, err := time.Parse(time.RFC3339, iso); err == nil {
			return dt.UTC().Format("20060102T150405Z")
		}
	}
	return now().UTC().Format("20060102_150405")
}

// CompactDuration renders seconds as a short human-readable duration,
// e.g. 3723 -> "1h02m03s", 123 -> "2m03s", 5 -> "5s".
func CompactDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
