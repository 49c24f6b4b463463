// Package packager builds the release manifest for distribution. It hashes
// every platform installer artifact with SHA-512 and writes the manifest the
// bootstrap fetches from the update folder.
package packager
