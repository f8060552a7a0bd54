package memory

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	defaultFileName  = "file"
	maxKeyNameLength = 120
)

// NewObjectKey derives a storage key for an uploaded file:
// <unix-millis>-<8 hex chars>-<sanitized base name>. The random segment keeps
// keys unique when two files with the same name land in the same millisecond.
func NewObjectKey(fileName string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), suffix, SanitizeFileName(fileName))
}

// SanitizeFileName strips directories and replaces anything outside a
// conservative character set so the name is safe inside an object key.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == ".." {
		return defaultFileName
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return defaultFileName
	}
	if len(out) > maxKeyNameLength {
		out = out[len(out)-maxKeyNameLength:]
	}
	return out
}
