package util

import (
	"path/filepath"
	"strings"
)

// SafeFilePath cleans a relative path and rejects anything that is empty,
// absolute, or still escapes the working directory after cleaning.
func SafeFilePath(p string) (string, bool) {
	cleaned, ok := cleanPath(p)
	if !ok || filepath.IsAbs(cleaned) {
		return "", false
	}
	return cleaned, true
}

// SafeFilePathAllowAbsolute is like SafeFilePath but accepts absolute paths.
// Relative paths must still not escape the working directory.
func SafeFilePathAllowAbsolute(p string) (string, bool) {
	return cleanPath(p)
}

func cleanPath(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	// Backslashes are treated as separators so Windows-style traversal is caught.
	cleaned := filepath.Clean(strings.ReplaceAll(p, `\`, "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}
