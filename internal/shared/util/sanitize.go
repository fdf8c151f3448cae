package util

import (
	"errors"
	"strings"
	"unicode"
)

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"' || r == ':':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// DownloadName builds a Content-Disposition safe file name from a display name and
// extension, falling back to fallback when the display name cannot be used.
func DownloadName(display, fallback, ext string) string {
	name, err := SanitizeFileName(strings.ReplaceAll(display, "..", "."))
	name = strings.Join(strings.Fields(name), "_")
	if err != nil || strings.Trim(name, ".") == "" {
		name = fallback
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
