package identity

import (
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
}

func TestBaseNameDeterministic(t *testing.T) {
	src := Source{
		ID:              "abc123DEF456",
		StartTime:       "2026-01-02T03:04:05Z",
		GuildName:       "Game Night",
		ChannelName:     "voice chat",
		DurationSeconds: 3723,
		UserCount:       3,
	}

	first := BaseName(src, fixedClock)
	second := BaseName(src, fixedClock)
	if first != second {
		t.Fatalf("base name not deterministic: %q vs %q", first, second)
	}
	want := "20260102T030405Z_Game_Night_voice_chat_abc123DEF456_3u_1h02m03s"
	if first != want {
		t.Fatalf("base name = %q, want %q", first, want)
	}
}

func TestBaseNameUnparseableStartUsesClock(t *testing.T) {
	src := Source{ID: "abc123DEF456", StartTime: "not a timestamp", UserCount: 1}

	got := BaseName(src, fixedClock)
	want := "20260304_050607_unknown_unknown_abc123DEF456_1u_0s"
	if got != want {
		t.Fatalf("base name = %q, want %q", got, want)
	}

	// Second-granularity fallback: two resolutions inside the same second
	// intentionally produce the same name; directory creation handles the
	// collision with a random suffix.
	if again := BaseName(src, fixedClock); again != got {
		t.Fatalf("fallback timestamp changed within the same second: %q vs %q", again, got)
	}
}

func TestCompactDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0s"},
		{5, "5s"},
		{65, "1m05s"},
		{123, "2m03s"},
		{3600, "1h00m00s"},
		{3723, "1h02m03s"},
		{-4, "0s"},
	}
	for _, tt := range tests {
		if got := CompactDuration(tt.seconds); got != tt.want {
			t.Errorf("CompactDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
