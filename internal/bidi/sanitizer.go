// Package bidi sanitizes bidirectional-text control characters from field
// values and filenames. Hebrew and Arabic text is inherently right-to-left
// and must pass through untouched; only the invisible control code points
// that can visually reorder surrounding text are targeted.
package bidi

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/unicode/rangetable"
)

// The nine Unicode bidirectional controls: embeddings, overrides, pops and
// isolates. Any of these can disguise malicious filenames or content.
var bidiControls = rangetable.New(
	'\u202A', // LEFT-TO-RIGHT EMBEDDING
	'\u202B', // RIGHT-TO-LEFT EMBEDDING
	'\u202C', // POP DIRECTIONAL FORMATTING
	'\u202D', // LEFT-TO-RIGHT OVERRIDE
	'\u202E', // RIGHT-TO-LEFT OVERRIDE
	'\u2066', // LEFT-TO-RIGHT ISOLATE
	'\u2067', // RIGHT-TO-LEFT ISOLATE
	'\u2068', // FIRST STRONG ISOLATE
	'\u2069', // POP DIRECTIONAL ISOLATE
)

// Zero-width characters used to pad or split words invisibly.
var zeroWidth = rangetable.New(
	'\u200B', // ZERO WIDTH SPACE
	'\u200C', // ZERO WIDTH NON-JOINER
	'\u200D', // ZERO WIDTH JOINER
	'\u2060', // WORD JOINER
	'\uFEFF', // ZERO WIDTH NO-BREAK SPACE / BOM
)

// Config mirrors the hebrew section of the configuration surface.
type Config struct {
	RemoveBiDiOverrides bool
	RemoveZeroWidth     bool
	DetectHomographs    bool
}

// Report describes what Inspect found in a text.
type Report struct {
	HasBiDiControls bool
	HasZeroWidth    bool
	// HomographTokens lists tokens mixing confusable scripts, present only
	// when homograph detection is enabled.
	HomographTokens []string
}

// Suspicious reports whether anything in the report warrants logging.
func (r Report) Suspicious() bool {
	return r.HasBiDiControls || r.HasZeroWidth || len(r.HomographTokens) > 0
}

// Sanitizer strips BiDi and zero-width controls and flags homographs.
type Sanitizer struct {
	cfg     Config
	remover transform.Transformer
}

// New creates a Sanitizer for the given configuration.
func New(cfg Config) *Sanitizer {
	var sets []*unicode.RangeTable
	if cfg.RemoveBiDiOverrides {
		sets = append(sets, bidiControls)
	}
	if cfg.RemoveZeroWidth {
		sets = append(sets, zeroWidth)
	}

	s := &Sanitizer{cfg: cfg}
	if len(sets) > 0 {
		s.remover = runes.Remove(runes.In(rangetable.Merge(sets...)))
	}

	return s
}

// Sanitize strips the configured control characters. Text containing none of
// them is returned unchanged, byte for byte.
func (s *Sanitizer) Sanitize(text string) string {
	if s.remover == nil || !s.containsControls(text) {
		return text
	}

	out, _, err := transform.String(s.remover, text)
	if err != nil {
		// runes.Remove cannot fail on valid UTF-8; fall back to the original
		// rather than returning partially transformed text.
		return text
	}

	return out
}

// Inspect reports which control characters are present without modifying the
// text, plus homograph findings when enabled.
func (s *Sanitizer) Inspect(text string) Report {
	var report Report

	for _, r := range text {
		if unicode.Is(bidiControls, r) {
			report.HasBiDiControls = true
		}
		if unicode.Is(zeroWidth, r) {
			report.HasZeroWidth = true
		}
	}

	if s.cfg.DetectHomographs {
		report.HomographTokens = findHomographTokens(text)
	}

	return report
}

func (s *Sanitizer) containsControls(text string) bool {
	for _, r := range text {
		if s.cfg.RemoveBiDiOverrides && unicode.Is(bidiControls, r) {
			return true
		}
		if s.cfg.RemoveZeroWidth && unicode.Is(zeroWidth, r) {
			return true
		}
	}

	return false
}

// findHomographTokens flags whitespace-separated tokens that mix Latin with
// Cyrillic or Greek letters. Such mixtures are the classic spoofing vector
// ("pаypal" with a Cyrillic а); legitimate Hebrew/Latin mixtures are common
// in Israeli documents and are not flagged.
func findHomographTokens(text string) []string {
	var flagged []string

	for _, token := range strings.Fields(text) {
		// NFKC folds fullwidth and compatibility forms to their canonical
		// counterparts before script classification.
		folded := norm.NFKC.String(token)

		var hasLatin, hasConfusable bool
		for _, r := range folded {
			switch {
			case unicode.Is(unicode.Latin, r):
				hasLatin = true
			case unicode.Is(unicode.Cyrillic, r), unicode.Is(unicode.Greek, r):
				hasConfusable = true
			}
		}

		if hasLatin && hasConfusable {
			flagged = append(flagged, token)
		}
	}

	return flagged
}
