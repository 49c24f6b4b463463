package download

import (
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Ensure SHA512 is available for checksum calculation.
	_ "crypto/sha512"
)

// DefaultChecksumFunction is used to calculate artifact hashes.
const DefaultChecksumFunction crypto.Hash = crypto.SHA512

var errHashUnavailable = errors.New("hash function unavailable")

// FileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// EncodeChecksum renders checksum bytes in the base64 form used by manifests
// and dataset entries.
func EncodeChecksum(sum []byte) string {
	return base64.StdEncoding.EncodeToString(sum)
}

// VerifyFile reports whether the file at path matches the base64-encoded
// expected checksum.
func VerifyFile(path, expectedBase64 string) (bool, error) {
	expected, err := base64.StdEncoding.DecodeString(expectedBase64)
	if err != nil {
		return false, fmt.Errorf("decode checksum: %w", err)
	}

	actual, err := FileChecksum(path)
	if err != nil {
		return false, err
	}

	if len(expected) != len(actual) {
		return false, nil
	}

	for i := range expected {
		if expected[i] != actual[i] {
			return false, nil
		}
	}

	return true, nil
}
