// Package config loads, normalizes, and validates animelink configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ANIMELINK_TOKEN. The Config type centralizes every knob the CLI needs: the
// catalog endpoint, limiter budgets, cache persistence, and resolver tuning.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
