package utils

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/kumaplayer/internal/media"
)

const (
	MinVolume = 0
	MaxVolume = 200
)

func ValidateVolume(v int) bool {
	return v >= MinVolume && v <= MaxVolume
}

// FormatDuration renders seconds as MM:SS, or HH:MM:SS once an hour is reached.
// Hours are not capped at two digits.
func FormatDuration(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func EscapeMd(s string) string {
	repl := []string{"*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "[", "\\[", "]", "\\]"}
	return strings.NewReplacer(repl...).Replace(s)
}

// URLToMarkdown builds a masked link. With escape set the url is wrapped in
// angle brackets so Discord does not unfurl it.
func URLToMarkdown(title, url string, escape bool) string {
	if escape {
		url = "<" + url + ">"
	}
	return fmt.Sprintf("[%s](%s)", EscapeMd(title), url)
}

func TrackToMarkdown(t media.Track, escape bool) string {
	out := fmt.Sprintf("%s (%s)", URLToMarkdown(t.Title, t.URL, escape), FormatDuration(t.Duration))
	if t.Artist != "" {
		out += ", " + EscapeMd(t.Artist)
	}
	return out
}

// IsSubPath reports whether sub resolves to a location strictly below root.
// Both paths are resolved against the working directory.
func IsSubPath(root, sub string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(sub)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, target)
	if err != nil {
		return false
	}
	if rel == "" || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Shuffle is an in-place Fisher-Yates permutation.
func Shuffle[T any](a []T) {
	for i := len(a) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		a[i], a[j] = a[j], a[i]
	}
}

var reDur = regexp.MustCompile(`(?i)^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDurationString accepts plain seconds, "1h2m3s" style, or colon
// separated "HH:MM:SS" / "MM:SS". Unparseable input yields -1.
func ParseDurationString(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if strings.Contains(s, ":") {
		total := 0
		for _, part := range strings.Split(s, ":") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return -1
			}
			total = total*60 + n
		}
		return total
	}
	m := reDur.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	return atoi(m[1])*3600 + atoi(m[2])*60 + atoi(m[3])
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, _ := strconv.Atoi(s)
	return v
}
