// Package config loads, normalizes, and validates intake configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TRACKING_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, from delivery/work directories and tracking credentials to manifest
// vocabulary, work path templates, and item type definitions.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, compiled-checked templates, and
// clear validation errors.
package config
