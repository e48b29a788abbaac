package pii

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestHashProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	h, err := New(Config{HashAlgorithm: "sha256", HashEncoding: "hex"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	properties.Property("deterministic", prop.ForAll(
		func(value string) bool {
			return h.Hash(value) == h.Hash(value)
		},
		gen.AnyString(),
	))

	properties.Property("distinct inputs yield distinct digests", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			return h.Hash(a) != h.Hash(b)
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestLuhnProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	h, err := New(Config{HashAlgorithm: "sha256", HashEncoding: "hex"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Appending the Luhn check digit to 15 random digits always yields a
	// valid card; any other final digit never does.
	digits15 := gen.SliceOfN(15, gen.IntRange(0, 9))

	properties.Property("completed numbers validate, corrupted ones do not", prop.ForAll(
		func(digits []int) bool {
			var sb strings.Builder
			for _, d := range digits {
				sb.WriteByte(byte('0' + d))
			}
			body := sb.String()

			check := luhnCheckDigit(body)
			valid := body + string(byte('0'+check))
			corrupt := body + string(byte('0'+(check+1)%10))

			return validLuhn(valid) && !validLuhn(corrupt)
		},
		digits15,
	))

	properties.Property("card detection never fires on Luhn failures", prop.ForAll(
		func(digits []int) bool {
			var sb strings.Builder
			for _, d := range digits {
				sb.WriteByte(byte('0' + d))
			}
			body := sb.String()
			corrupt := body + string(byte('0'+(luhnCheckDigit(body)+1)%10))

			for _, c := range h.Detect("card: " + corrupt).Types {
				if c == CategoryCreditCard {
					return false
				}
			}
			return true
		},
		digits15,
	))

	properties.TestingRun(t)
}

// luhnCheckDigit computes the digit that makes body+digit Luhn-valid.
func luhnCheckDigit(body string) int {
	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return (10 - sum%10) % 10
}
