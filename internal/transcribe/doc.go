// Package transcribe drives per-track and mixed-mode speech recognition,
// writing caption and plain-text outputs side by side and skipping tracks
// whose outputs already exist.
package transcribe
