// Package language maps language codes to the display names used in
// translation prompts.
package language

import (
	"errors"
	"fmt"
	"strings"
)

var names = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"ar": "Arabic",
	"ru": "Russian",
	"zh": "Mandarin Chinese",
	"vi": "Vietnamese",
	"tl": "Tagalog",
	"pt": "Portuguese",
	"ht": "Haitian Creole",
}

// DefaultCodes is the supported set used when none is configured.
var DefaultCodes = []string{"en", "es", "ht", "fr", "pt", "ru", "zh", "ar", "vi", "tl"}

// Directory is an immutable set of supported language codes.
type Directory struct {
	codes     []string
	supported map[string]struct{}
}

// NewDirectory builds a Directory from the given codes. Codes are trimmed and
// lower-cased; duplicates are dropped while keeping first-seen order.
func NewDirectory(codes []string) (*Directory, error) {
	d := &Directory{supported: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		c = normalize(c)
		if c == "" {
			continue
		}
		if _, ok := d.supported[c]; ok {
			continue
		}
		d.supported[c] = struct{}{}
		d.codes = append(d.codes, c)
	}
	if len(d.codes) == 0 {
		return nil, errors.New("language: at least one supported code is required")
	}
	return d, nil
}

// ParseCodes splits a comma-separated list such as "en,es,ht".
func ParseCodes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := normalize(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Name returns the display name for code, or the raw code if it is unknown.
func Name(code string) string {
	if n, ok := names[normalize(code)]; ok {
		return n
	}
	return code
}

// Supported reports whether code is in the directory.
func (d *Directory) Supported(code string) bool {
	_, ok := d.supported[normalize(code)]
	return ok
}

// Validate returns an error naming the first unsupported code.
func (d *Directory) Validate(codes ...string) error {
	for _, c := range codes {
		if !d.Supported(c) {
			return fmt.Errorf("language: unsupported code %q", c)
		}
	}
	return nil
}

// Codes returns the supported codes in configuration order.
func (d *Directory) Codes() []string {
	out := make([]string, len(d.codes))
	copy(out, d.codes)
	return out
}

// Pairs returns every "src-dst" pair with src != dst.
func (d *Directory) Pairs() []string {
	pairs := make([]string, 0, len(d.codes)*(len(d.codes)-1))
	for _, src := range d.codes {
		for _, dst := range d.codes {
			if src != dst {
				pairs = append(pairs, src+"-"+dst)
			}
		}
	}
	return pairs
}

// ParsePair splits a "src-dst" pair such as "en-es".
func ParsePair(pair string) (from, to string, err error) {
	from, to, ok := strings.Cut(strings.TrimSpace(pair), "-")
	from, to = normalize(from), normalize(to)
	if !ok || from == "" || to == "" {
		return "", "", fmt.Errorf("language: malformed pair %q", pair)
	}
	return from, to, nil
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
