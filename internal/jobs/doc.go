// Package jobs manages the server-side conversion job lifecycle: status
// normalization, reuse of finished jobs, forced recreation, and blocking
// poll-to-completion with a wall-clock budget.
package jobs
