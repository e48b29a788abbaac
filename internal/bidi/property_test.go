package bidi

import (
	"testing"
	"unicode"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Sanitize must be the identity on text free of control characters, and
// idempotent everywhere.
func TestSanitizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	s := New(allOn())

	cleanText := gen.AnyString().SuchThat(func(text string) bool {
		for _, r := range text {
			if unicode.Is(bidiControls, r) || unicode.Is(zeroWidth, r) {
				return false
			}
		}
		return true
	})

	properties.Property("identity on clean text", prop.ForAll(
		func(text string) bool {
			return s.Sanitize(text) == text
		},
		cleanText,
	))

	properties.Property("idempotent on any text", prop.ForAll(
		func(text string) bool {
			once := s.Sanitize(text)
			return s.Sanitize(once) == once
		},
		gen.AnyString(),
	))

	properties.Property("output never contains controls", prop.ForAll(
		func(text string) bool {
			for _, r := range s.Sanitize(text) {
				if unicode.Is(bidiControls, r) || unicode.Is(zeroWidth, r) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
