// Package transcript merges per-track transcript files into one time-ordered,
// deduplicated transcript.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"stemfetch/internal/fileutil"
	"stemfetch/internal/logging"
	"stemfetch/internal/services"
	"stemfetch/internal/textutil"
	"stemfetch/internal/transcribe"
)

// Output file names under the transcripts directory.
const (
	MergedTxtName  = "merged.txt"
	MergedJSONName = "merged.json"
)

// DefaultSimilarityThreshold is the dedupe cutoff: adjacent segments whose
// similarity exceeds it collapse into the first.
const DefaultSimilarityThreshold = 0.9

// Segment is one transcript line attributed to a speaker.
type Segment struct {
	Start   float64 `json:"start"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Options control the merge pass.
type Options struct {
	Dedupe    bool
	Threshold float64
}

var lineRe = regexp.MustCompile(`^\[(\d+):(\d{2}):(\d{2}(?:\.\d+)?)\]\s*(.*)$`)

// ParseLine reads one bracketed-time transcript line. Lines without a
// parseable time default to start 0 with the whole line as text.
func ParseLine(line, speaker string) (Segment, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Segment{}, false
	}
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Segment{Speaker: speaker, Text: line}, true
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.ParseFloat(m[3], 64)
	return Segment{
		Start:   float64(hours*3600+minutes*60) + seconds,
		Speaker: speaker,
		Text:    strings.TrimSpace(m[4]),
	}, true
}

// ReadTrackFile parses every line of a per-track transcript, attributing
// segments to the speaker named by the file.
func ReadTrackFile(path string) ([]Segment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	speaker := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var segments []Segment
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if seg, ok := ParseLine(scanner.Text(), speaker); ok {
			segments = append(segments, seg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

// Merge sorts segments by start time (stable, ties keep input order) and
// optionally drops near-duplicate adjacent entries. Each survivor is only
// ever compared against the last retained segment.
func Merge(segments []Segment, opts Options) []Segment {
	merged := make([]Segment, len(segments))
	copy(merged, segments)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})
	if !opts.Dedupe || len(merged) == 0 {
		return merged
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	retained := merged[:1]
	for _, seg := range merged[1:] {
		last := retained[len(retained)-1]
		if textutil.LineSimilarity(last.Text, seg.Text) > threshold {
			continue
		}
		retained = append(retained, seg)
	}
	return retained
}

// Engine recomputes the merged transcript from all per-track outputs.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{logger: logger}
}

// Result reports the merged artifact locations.
type Result struct {
	TxtPath  string
	JSONPath string
	Segments int
}

// Run reads every .txt transcript under tracksDir, merges them, and writes
// merged.txt and merged.json into transcriptsDir. Both outputs are rebuilt
// from scratch on every invocation.
func (e *Engine) Run(tracksDir, transcriptsDir string, opts Options) (Result, error) {
	paths, err := filepath.Glob(filepath.Join(tracksDir, "*.txt"))
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "merge", "list track transcripts", "", err)
	}
	sort.Strings(paths)

	var all []Segment
	for _, path := range paths {
		segments, err := ReadTrackFile(path)
		if err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "merge", "read track transcript", path, err)
		}
		all = append(all, segments...)
	}
	if len(all) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "merge", "collect segments",
			"no parseable transcript lines found under "+tracksDir, nil)
	}

	merged := Merge(all, opts)
	e.logger.Info("merged transcripts",
		logging.Int("tracks", len(paths)),
		logging.Int("segments", len(merged)),
		logging.Bool("dedupe", opts.Dedupe))

	txtPath := filepath.Join(transcriptsDir, MergedTxtName)
	jsonPath := filepath.Join(transcriptsDir, MergedJSONName)

	var txt strings.Builder
	for _, seg := range merged {
		fmt.Fprintf(&txt, "[%s] %s: %s\n", transcribe.FormatClock(seg.Start), seg.Speaker, seg.Text)
	}
	if err := fileutil.WriteFileAtomic(txtPath, []byte(txt.String()), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "merge", "write merged text", "", err)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "merge", "encode merged json", "", err)
	}
	if err := fileutil.WriteFileAtomic(jsonPath, append(data, '\n'), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "merge", "write merged json", "", err)
	}

	return Result{TxtPath: txtPath, JSONPath: jsonPath, Segments: len(merged)}, nil
}
