// Package download fetches remote lab artifacts and verifies them.
//
// Fetch routes on the URL scheme: plain HTTP(S) requests for web hosts and
// the AWS SDK for s3:// mirrors. Payloads land atomically via a temp file
// rename. Checksum helpers cover the base64 SHA-512 convention shared by
// dataset entries and release manifests, and ExtractZip unpacks dataset
// bundles with traversal protection.
package download
