// Package config loads, normalizes, and validates stemfetch configuration
// from TOML files. Configuration is resolved once at startup; components
// receive the values they need at construction time.
package config
