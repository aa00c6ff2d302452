package storage

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxNameLen = 100

// SanitizeFilename turns a user-supplied file name into a safe key segment.
//
// Steps: decompose (NFKD) and drop the combining marks, so "Mésange.JPG"
// becomes "Mesange.JPG"; lower-case; collapse every run of characters outside
// [a-z0-9] into a single "-". The extension is kept separately so the dot
// survives. An empty result becomes "image".
func SanitizeFilename(name string) string {
	// Browsers may send a full client path; keep only the last element.
	name = name[strings.LastIndexAny(name, `/\`)+1:]

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	ext := path.Ext(folded)
	base := strings.TrimSuffix(folded, ext)

	base = collapse(base)
	ext = collapse(strings.TrimPrefix(ext, "."))

	if base == "" {
		base = "image"
	}
	if len(base) > maxNameLen {
		base = strings.TrimRight(base[:maxNameLen], "-")
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// collapse replaces each run of non [a-z0-9] bytes with one "-" and trims
// leading and trailing separators.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
