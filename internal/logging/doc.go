// Package logging wires log/slog with the console and JSON handlers used by
// the stemfetch CLI, plus attr helpers and context-derived field extraction.
package logging
