package media

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var captionStripper = strings.NewReplacer(
	"\n", "", "\r", "",
	"'", "", "\"", "",
	"(", "", ")", "",
	"[", "", "]", "",
	"#", "", "*", "",
	":", "", ".", "",
)

// Sanitize prepares model output for burning into a video: NFC normalised,
// quoting and markdown punctuation removed, outer space trimmed.
func Sanitize(text string) string {
	return strings.TrimSpace(captionStripper.Replace(norm.NFC.String(text)))
}

// FillDefaults returns one caption per variant, substituting def for any
// variant that is missing or empty. The degraded variants are returned in
// order.
func FillDefaults(captions map[string]string, variants []string, def string) (map[string]string, []string) {
	out := make(map[string]string, len(variants))
	var degraded []string
	for _, v := range variants {
		c := Sanitize(captions[v])
		if c == "" {
			c = def
			degraded = append(degraded, v)
		}
		out[v] = c
	}
	return out, degraded
}
