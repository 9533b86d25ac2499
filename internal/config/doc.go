// Package config loads, normalizes, and validates camerasync configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CAMERASYNC_SOURCE_DIR. The Config type centralizes every knob the archiver,
// the conversion pipeline and the CLI need: directory layout, supported file
// types, external tool binaries and their extra arguments, tonemap operators,
// and output flags.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, lower-cased extensions, and clear validation errors. No
// package reads configuration from global state; a *Config is passed to every
// constructor.
package config
