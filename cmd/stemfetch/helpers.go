package main

import (
	"fmt"
	"strings"

	"stemfetch/internal/services/craig"
)

// resolveRecording accepts either a share URL or a bare recording id as the
// positional argument. A key embedded in the URL is used unless the --key
// flag overrides it.
func resolveRecording(arg, keyFlag string) (id, key string, err error) {
	id, key, ok := craig.ParseInput(arg)
	if !ok {
		return "", "", fmt.Errorf("unrecognized recording reference %q (expected a share URL or a 12-character id)", arg)
	}
	if trimmed := strings.TrimSpace(keyFlag); trimmed != "" {
		key = trimmed
	}
	if key == "" {
		return "", "", fmt.Errorf("recording %s requires an access key (pass --key or a share URL that includes one)", id)
	}
	return id, key, nil
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
