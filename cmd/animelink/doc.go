// Package main hosts the animelink CLI entrypoint and command graph.
//
// The Cobra command tree parses release file names, resolves them against
// the catalog, and prints the matched entry with a season-relative episode.
// It also exposes free-text search, cache inspection, and configuration
// scaffolding. Wiring of the limiter, gateway, cache, and resolver lives in
// app.go so subcommands only deal with presentation.
package main
