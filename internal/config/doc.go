// Package config loads, normalizes, and validates tsencode configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TSENCODE_API_TOKEN and the AWS credential variables. The Config type
// centralizes every knob the daemon and CLI need, so data directories,
// encoder selection, and external service credentials are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
