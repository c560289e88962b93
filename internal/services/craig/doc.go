// Package craig implements the HTTP client for the remote recording service:
// metadata and duration lookups, conversion job lifecycle calls, and artifact
// downloads. The client is deliberately thin; job state-machine logic lives
// in the jobs package.
package craig
