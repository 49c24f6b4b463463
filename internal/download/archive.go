package download

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeArchivePath is returned when an archive entry would escape the
// destination directory.
var ErrUnsafeArchivePath = errors.New("archive entry escapes destination")

// extractedFileMode is the permission applied to extracted dataset files.
const extractedFileMode os.FileMode = 0o644

// ExtractZip unpacks a zip archive into destDir. Entry paths are validated
// against directory traversal before anything is written.
func ExtractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	destDir = filepath.Clean(destDir)

	for _, entry := range reader.File {
		if err = extractZipEntry(entry, destDir); err != nil {
			return err
		}
	}

	return nil
}

// extractZipEntry writes a single archive entry below destDir.
func extractZipEntry(entry *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.Clean(entry.Name))
	if !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return fmt.Errorf("%s: %w", entry.Name, ErrUnsafeArchivePath)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	source, err := entry.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	output, err := os.OpenFile(filepath.Clean(target), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, extractedFileMode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, source); err != nil {
		_ = output.Close()

		return err
	}

	return output.Close()
}
