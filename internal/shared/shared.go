// package shared defines shared helpers
package shared

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	sanitizePattern   = regexp.MustCompile(`[\x00-\x1f\x7f<>@$*{}\\|"` + "`" + `]`)
	playlistPattern   = regexp.MustCompile(`[^\p{L}\p{N} _\-']`)
	dashRunPattern    = regexp.MustCompile(`-+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] that appends to path, creating parent directories as
// needed. Used where stderr belongs to something else, like a terminal UI.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return NewLogger(f), nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
//
// A nil parent falls back to [log.Default].
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	if l == nil {
		l = log.Default()
	}
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// NewCorrelationID returns 10 random bytes as hex, used to pair acquisition requests with their results.
func NewCorrelationID() string {
	return RandomHex(10)
}

// RandomHex returns n random bytes hex-encoded.
func RandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Sanitize strips control characters and markup-ish punctuation from user input.
func Sanitize(s string) string {
	return strings.TrimSpace(sanitizePattern.ReplaceAllString(s, ""))
}

// SanitizePlaylist reduces a playlist name to letters, digits, spaces, dashes, underscores and apostrophes.
//
// Names are used as document field keys, so dots and dollar signs never survive.
func SanitizePlaylist(name string) string {
	return strings.TrimSpace(playlistPattern.ReplaceAllString(name, ""))
}

// SearchQuery builds a provider search string from a track and artist name, collapsing dash runs.
func SearchQuery(name, artist string) string {
	q := Sanitize(strings.TrimSpace(name + " " + artist))
	q = dashRunPattern.ReplaceAllString(q, " ")
	return whitespacePattern.ReplaceAllString(strings.TrimSpace(q), " ")
}

// NormalizeKey case-folds and NFKC-normalizes a search string so equivalent queries share one key.
func NormalizeKey(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return whitespacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
}

// PageSize is the number of tracks shown per page of a queue or workspace listing.
const PageSize = 10

// Paginate clamps page into [1, pages] for n items and returns the bounds of that page.
// page <= 0 is treated as 1; an empty list has one empty page.
func Paginate(n, page, size int) (start, end, clamped, pages int) {
	if size <= 0 {
		size = PageSize
	}
	pages = (n + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	clamped = min(max(page, 1), pages)
	start = min((clamped-1)*size, n)
	end = min(start+size, n)
	return start, end, clamped, pages
}
