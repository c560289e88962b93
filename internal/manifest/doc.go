// Package manifest persists per-recording pipeline state as a JSON document
// at the recording directory root. Updates are read-merge-write with atomic
// replacement; a corrupt manifest reads as empty state. Stage progress is an
// explicit status field per stage, which doubles as crash detection for
// interrupted runs.
package manifest
