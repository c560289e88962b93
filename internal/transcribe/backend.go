package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"stemfetch/internal/fileutil"
)

// Segment is one recognized utterance with timing in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Options select the recognition model and constraints for one invocation.
type Options struct {
	Model            string
	Device           string
	Language         string
	ClipLimitSeconds int
}

// Backend produces ordered segments for one audio file.
type Backend interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) ([]Segment, error)
}

// OutputValid reports whether prior transcript output for a track counts as
// done: a non-empty plain-text file, or a caption file with content beyond
// the bare header.
func OutputValid(txtPath, vttPath string) bool {
	if fileutil.FileNonEmpty(txtPath) {
		return true
	}
	return vttHasContent(vttPath)
}

func vttHasContent(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	body := strings.TrimSpace(string(data))
	body = strings.TrimPrefix(body, "WEBVTT")
	return strings.TrimSpace(body) != ""
}

// WriteOutputs persists a track's segments as a caption file and a
// plain-text file side by side.
func WriteOutputs(segments []Segment, txtPath, vttPath string) error {
	var txt strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&txt, "[%s] %s\n", FormatClock(seg.Start), text)
	}
	if err := fileutil.WriteFileAtomic(txtPath, []byte(txt.String()), 0o644); err != nil {
		return err
	}

	var vtt strings.Builder
	vtt.WriteString("WEBVTT\n")
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&vtt, "\n%s --> %s\n%s\n", formatCue(seg.Start), formatCue(seg.End), text)
	}
	return fileutil.WriteFileAtomic(vttPath, []byte(vtt.String()), 0o644)
}

// FormatClock renders whole seconds as h:mm:ss, the bracketed-time form used
// in plain-text transcripts.
func FormatClock(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}

func formatCue(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	millis := int((seconds - float64(total)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", total/3600, total/60%60, total%60, millis)
}
