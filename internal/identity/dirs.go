package identity

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

const collisionRetries = 50

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Dirs is the fixed on-disk layout of one recording directory.
type Dirs struct {
	Root        string
	Downloads   string
	Work        string
	Final       string
	Meta        string
	Logs        string
	Transcripts string
}

// Layout maps a recording root to its fixed subdirectory paths.
func Layout(root string) Dirs {
	return Dirs{
		Root:        root,
		Downloads:   filepath.Join(root, "downloads"),
		Work:        filepath.Join(root, "work"),
		Final:       filepath.Join(root, "final"),
		Meta:        filepath.Join(root, "meta"),
		Logs:        filepath.Join(root, "logs"),
		Transcripts: filepath.Join(root, "transcripts"),
	}
}

// CreateDirs creates the recording directory under outputRoot and its fixed
// subdirectories. When the target exists and overwrite is false, a
// distinguishing suffix (timestamp plus four random alphanumerics) is
// appended and creation retried; existing directories are never silently
// merged. With overwrite, the existing directory is reused in place.
// transcripts/ is created lazily by the transcription stage.
func CreateDirs(outputRoot, baseName string, overwrite bool) (Dirs, error) {
	root, err := ensureUniqueDir(filepath.Join(outputRoot, baseName), overwrite)
	if err != nil {
		return Dirs{}, err
	}
	dirs := Layout(root)
	for _, dir := range []string{dirs.Downloads, dirs.Work, dirs.Final, dirs.Meta, dirs.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Dirs{}, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return dirs, nil
}

// Resume maps an existing recording directory into the fixed layout,
// creating any missing subdirectories.
func Resume(root string) (Dirs, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Dirs{}, fmt.Errorf("resume directory: %w", err)
	}
	if !info.IsDir() {
		return Dirs{}, fmt.Errorf("resume directory %q is not a directory", root)
	}
	dirs := Layout(root)
	for _, dir := range []string{dirs.Downloads, dirs.Work, dirs.Final, dirs.Meta, dirs.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Dirs{}, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return dirs, nil
}

// EnsureTranscripts creates the lazily-made transcripts directory tree.
func (d Dirs) EnsureTranscripts() error {
	return os.MkdirAll(filepath.Join(d.Transcripts, "tracks"), 0o755)
}

// TrackDir returns the per-track transcript output directory.
func (d Dirs) TrackDir() string {
	return filepath.Join(d.Transcripts, "tracks")
}

// FindExisting returns the most recently modified directory under outputRoot
// whose name starts with baseName, for resuming without an explicit path.
func FindExisting(outputRoot, baseName string) (string, bool) {
	entries, err := os.ReadDir(outputRoot)
	if err != nil {
		return "", false
	}
	var (
		newest     string
		newestTime time.Time
	)
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) < len(baseName) || entry.Name()[:len(baseName)] != baseName {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(outputRoot, entry.Name())
			newestTime = info.ModTime()
		}
	}
	return newest, newest != ""
}

func ensureUniqueDir(path string, overwrite bool) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", fmt.Errorf("create directory %q: %w", path, err)
		}
		return path, nil
	}
	if overwrite {
		return path, nil
	}
	for i := 0; i < collisionRetries; i++ {
		candidate := fmt.Sprintf("%s_%s_%s", path, time.Now().UTC().Format("20060102_150405"), randSuffix())
		if _, err := os.Stat(candidate); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.MkdirAll(candidate, 0o755); err != nil {
			return "", fmt.Errorf("create directory %q: %w", candidate, err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("too many conflicting directories for %q", path)
}

func randSuffix() string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}
