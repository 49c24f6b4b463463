// Package bootstrap keeps the installer binary current. It fetches the
// release manifest from the configured update folder, compares the local
// installer by version and checksum, applies a fresh binary atomically and
// hands control over to it. A marker file with stale-marker recovery guards
// against concurrent runs.
package bootstrap
