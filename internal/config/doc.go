// Package config loads, normalizes, and validates vidsqueeze configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, loads optional .env files, and honours environment fallbacks such
// as VIDSQUEEZE_FFMPEG and NTFY_TOPIC. Always obtain settings through this
// package so downstream code receives sanitized paths and clear validation
// errors.
package config
