// Package identity derives the stable on-disk identity of a recording:
// a deterministic, human-legible base name from recording metadata and the
// fixed directory layout used for idempotent resume.
package identity
