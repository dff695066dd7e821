package util

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidFileName is returned when nothing usable remains of a file name.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName reduces an uploaded file name to a single safe path element.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "\\", "/")
	s = path.Base(s)
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == "/" {
		return "", ErrInvalidFileName
	}
	return s, nil
}

// HasExtension reports whether name ends with ext, ignoring case.
func HasExtension(name, ext string) bool {
	return strings.EqualFold(path.Ext(strings.TrimSpace(name)), ext)
}

// CleanText drops NUL bytes and invalid UTF-8, neither of which Postgres
// text columns accept.
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}
