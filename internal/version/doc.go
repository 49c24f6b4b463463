// Package version exposes build metadata for the labkit binaries.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. The bootstrap
// launcher parses the Full output of an installed binary to decide whether a
// newer release must be fetched.
package version
