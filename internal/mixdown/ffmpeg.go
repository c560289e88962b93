package mixdown

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"stemfetch/internal/services"
)

// Transcoder downmixes or transcodes audio into a target format.
type Transcoder interface {
	// Mix combines multiple input stems into one output file.
	Mix(ctx context.Context, inputs []string, output, format, bitrate string) error
	// Transcode converts a single input file into the output format.
	Transcode(ctx context.Context, input, output, format, bitrate string) error
}

// FFmpeg runs the ffmpeg binary to implement Transcoder.
type FFmpeg struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewFFmpeg constructs an ffmpeg-backed transcoder. An empty binary name
// falls back to "ffmpeg" on PATH.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (f *FFmpeg) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	f.commandRunner = runner
}

func (f *FFmpeg) Mix(ctx context.Context, inputs []string, output, format, bitrate string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "mixdown", "mix", "no input stems", nil)
	}
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	filter := fmt.Sprintf("amix=inputs=%d:dropout_transition=0:normalize=0, aformat=channel_layouts=mono, aresample=48000", len(inputs))
	args = append(args, "-filter_complex", filter)
	args = append(args, codecArgs(format, bitrate)...)
	args = append(args, output)
	return f.run(ctx, args...)
}

func (f *FFmpeg) Transcode(ctx context.Context, input, output, format, bitrate string) error {
	args := []string{"-y", "-i", input}
	args = append(args, codecArgs(format, bitrate)...)
	args = append(args, output)
	return f.run(ctx, args...)
}

// codecArgs returns the encoder flags for the target format. Output is
// always mono voice audio at 48kHz.
func codecArgs(format, bitrate string) []string {
	switch format {
	case FormatMP3:
		return []string{"-c:a", "libmp3lame", "-b:a", bitrate, "-ac", "1", "-ar", "48000"}
	default:
		return []string{"-c:a", "libopus", "-b:a", bitrate, "-vbr", "on", "-application", "voip", "-ac", "1", "-ar", "48000"}
	}
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	if f.commandRunner != nil {
		return f.commandRunner(ctx, f.binary, args...)
	}
	cmd := exec.CommandContext(ctx, f.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		msg := fmt.Sprintf("%s not found on PATH (install ffmpeg)", f.binary)
		return services.Wrap(services.ErrExternalTool, "mixdown", "locate ffmpeg", msg, err)
	}
	detail := strings.TrimSpace(string(output))
	if detail != "" {
		err = fmt.Errorf("%w: %s", err, detail)
	}
	return services.Wrap(services.ErrExternalTool, "mixdown", "run ffmpeg", "", err)
}
