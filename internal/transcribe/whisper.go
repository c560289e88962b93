package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"stemfetch/internal/services"
)

const whisperCommand = "whisper"

// WhisperCLI invokes the whisper command-line tool and reads its JSON output.
type WhisperCLI struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisperCLI constructs a whisper-backed recognizer. An empty binary name
// falls back to "whisper" on PATH.
func NewWhisperCLI(binary string) *WhisperCLI {
	if binary == "" {
		binary = whisperCommand
	}
	return &WhisperCLI{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperCLI) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	w.commandRunner = runner
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string, opts Options) ([]Segment, error) {
	outputDir, err := os.MkdirTemp("", "stemfetch-whisper-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transcribe", "create output dir", "", err)
	}
	defer os.RemoveAll(outputDir)

	args := buildWhisperArgs(audioPath, outputDir, opts)
	if err := w.run(ctx, args...); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return loadWhisperSegments(filepath.Join(outputDir, base+".json"))
}

func buildWhisperArgs(audioPath, outputDir string, opts Options) []string {
	model := opts.Model
	if model == "" {
		model = "medium"
	}
	device := opts.Device
	if device == "" {
		device = "cpu"
	}
	args := []string{
		audioPath,
		"--model", model,
		"--device", device,
		"--output_format", "json",
		"--output_dir", outputDir,
	}
	if lang := strings.ToLower(strings.TrimSpace(opts.Language)); lang != "" && lang != "auto" {
		args = append(args, "--language", lang)
	}
	if opts.ClipLimitSeconds > 0 {
		args = append(args, "--clip_timestamps", fmt.Sprintf("0,%d", opts.ClipLimitSeconds))
	}
	return args
}

func (w *WhisperCLI) run(ctx context.Context, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, w.binary, args...)
	}
	cmd := exec.CommandContext(ctx, w.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		msg := fmt.Sprintf("%s not found on PATH (pip install openai-whisper, or set transcription.backend)", w.binary)
		return services.Wrap(services.ErrConfiguration, "transcribe", "locate backend", msg, err)
	}
	detail := strings.TrimSpace(string(output))
	if detail != "" {
		err = fmt.Errorf("%w: %s", err, detail)
	}
	return services.Wrap(services.ErrExternalTool, "transcribe", "run backend", "", err)
}

type whisperPayload struct {
	Segments []Segment `json:"segments"`
}

func loadWhisperSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "read backend output", "", err)
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "parse backend output", "", err)
	}
	return payload.Segments, nil
}
