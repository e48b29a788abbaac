package pii

import (
	"regexp"
	"strings"
)

// Category names the kinds of identity data the handler recognizes. The
// string values are part of the external contract (they appear in redaction
// tokens and audit metadata).
type Category string

const (
	CategoryNationalID Category = "NATIONAL_ID"
	CategoryCreditCard Category = "CREDIT_CARD"
	CategoryEmail      Category = "EMAIL"
	CategoryPhone      Category = "PHONE"
)

// Candidate patterns. Numeric categories are over-matched here and narrowed
// by their checksum validators so that ID-shaped but invalid strings are
// never flagged.
var (
	// Nine consecutive digits, not embedded in a longer run.
	nationalIDPattern = regexp.MustCompile(`(^|[^\d])(\d{9})([^\d]|$)`)

	// 13-19 digits with optional single space/dash separators.
	creditCardPattern = regexp.MustCompile(`(^|[^\d])(\d(?:[ -]?\d){12,18})([^\d]|$)`)

	// Email addresses, permitting internationalized local parts and domains.
	emailPattern = regexp.MustCompile(`[\p{L}\p{N}._%+\-]+@[\p{L}\p{N}](?:[\p{L}\p{N}.\-]*[\p{L}\p{N}])?\.\p{L}{2,}`)

	// Israeli phone numbers: mobile 05X/07X and regional landlines, with or
	// without the +972 international prefix.
	phonePattern = regexp.MustCompile(`(?:\+972[- ]?|0)(?:[23489]|5\d|7\d)(?:[- ]?\d){7}`)
)

// validIsraeliID applies the teudat zehut weighted checksum: digits are
// weighted 1,2,1,2..., two-digit products fold by subtracting 9, and the sum
// must divide by 10.
func validIsraeliID(digits string) bool {
	if len(digits) != 9 {
		return false
	}

	sum := 0
	for i, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}

	return sum%10 == 0
}

// validLuhn applies the standard Luhn check over the digits of a candidate
// card number, ignoring space and dash separators.
func validLuhn(candidate string) bool {
	var digits []int
	for _, r := range candidate {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '-':
		default:
			return false
		}
	}

	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

// span is a half-open [start, end) index range into the scanned text.
type span struct {
	start, end int
}

// findSpans returns the digit-group spans (capture group 2) of every
// pattern match whose digits pass valid. The boundary groups around the
// digits simulate lookaround, so each search resumes at the end of the
// digit group rather than the full match: a single separator character can
// close one span and open the next, and adjacent values are all found.
func findSpans(pattern *regexp.Regexp, text string, valid func(string) bool) []span {
	var spans []span

	offset := 0
	for offset < len(text) {
		idx := pattern.FindStringSubmatchIndex(text[offset:])
		if idx == nil {
			break
		}

		start, end := offset+idx[4], offset+idx[5]
		if valid(text[start:end]) {
			spans = append(spans, span{start, end})
		}
		offset = end
	}

	return spans
}

// findNationalIDs returns the valid ID spans in text.
func findNationalIDs(text string) []string {
	var found []string
	for _, s := range findSpans(nationalIDPattern, text, validIsraeliID) {
		found = append(found, text[s.start:s.end])
	}

	return found
}

// findCreditCards returns the Luhn-valid card spans in text.
func findCreditCards(text string) []string {
	var found []string
	for _, s := range findSpans(creditCardPattern, text, validLuhn) {
		found = append(found, text[s.start:s.end])
	}

	return found
}

// Field-name tokens that suggest the field holds identity data, in English
// and Hebrew. Matched against normalized (lowercased, tokenized) names.
var piiFieldTokens = map[string]bool{
	"id":       true,
	"idnumber": true,
	"teudat":   true,
	"zehut":    true,
	"passport": true,
	"phone":    true,
	"mobile":   true,
	"cell":     true,
	"email":    true,
	"mail":     true,
	"card":     true,
	"credit":   true,
	"cvv":      true,
	"iban":     true,
	"account":  true,
	"address":  true,
	"birthday": true,
	"dob":      true,
	"ssn":      true,
}

var piiFieldHebrew = []string{
	"תעודת",
	"זהות",
	"ת.ז",
	"תז",
	"טלפון",
	"נייד",
	"דואר",
	"מייל",
	"כתובת",
	"אשראי",
	"חשבון",
	"דרכון",
}

// splitFieldName breaks camelCase and snake_case names into lowercase tokens.
func splitFieldName(name string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case r >= 'A' && r <= 'Z':
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}
