package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidChapterID is returned when a URL or uploaded record yields an unusable identifier.
var ErrInvalidChapterID = errors.New("invalid chapter id")

const idSegments = 3

// DeriveChapterID turns a chapter URL into a filesystem-safe identifier built from
// the last three path segments, e.g. /wiki/Book/Chapter%201 -> wiki_Book_Chapter_1.
func DeriveChapterID(rawURL string) (string, error) {
	parsed, err := url.Parse(escapeStrayPercents(strings.TrimSpace(rawURL)))
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %v", ErrInvalidChapterID, err)
	}

	var parts []string
	for _, part := range strings.Split(parsed.EscapedPath(), "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > idSegments {
		parts = parts[len(parts)-idSegments:]
	}

	joined, err := url.PathUnescape(strings.Join(parts, "_"))
	if err != nil {
		return "", fmt.Errorf("%w: decode path: %v", ErrInvalidChapterID, err)
	}

	id := strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(joined)
	if err := ValidateChapterID(id); err != nil {
		return "", fmt.Errorf("%w (url %s)", err, rawURL)
	}
	return id, nil
}

// escapeStrayPercents turns every '%' that does not start a valid escape into
// "%25", so a malformed escape decodes back to a literal '%'.
func escapeStrayPercents(raw string) string {
	if !strings.Contains(raw, "%") {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw) + 8)
	for i := 0; i < len(raw); i++ {
		if raw[i] == '%' && !(i+2 < len(raw) && isHex(raw[i+1]) && isHex(raw[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

// ValidateChapterID rejects identifiers that cannot safely key artifact paths.
func ValidateChapterID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidChapterID)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidChapterID, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidChapterID, id)
	}
	return nil
}
