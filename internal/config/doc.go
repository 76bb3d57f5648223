// Package config loads and validates the TOML configuration.
//
// Load applies repository defaults, decodes the user's file over them,
// normalizes path values, and fails fast on invalid settings so the daemon
// never starts half-configured.
package config
