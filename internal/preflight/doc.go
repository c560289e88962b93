// Package preflight validates directories, disk space, external binaries,
// and remote reachability before expensive pipeline work begins.
package preflight
