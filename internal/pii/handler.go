// Package pii detects, hashes, and redacts personally identifiable
// information before it can reach logs, error messages, or audit trails.
// Detection validates checksums (teudat zehut weights, Luhn) so that
// ID-shaped but invalid numbers are not flagged.
package pii

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"reflect"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/right-flow/docguard/internal/errors"
	"github.com/right-flow/docguard/internal/logging"
)

// Detection is the result of scanning a text for PII.
type Detection struct {
	Detected bool
	Types    []Category
}

// Config mirrors the pii section of the configuration surface.
type Config struct {
	HashAlgorithm string // "sha256", "sha512" or "blake2b"
	HashEncoding  string // "hex" or "base64"
	SecureErase   bool
	EnableLogging bool
	Replacement   string // When set, replaces PII verbatim instead of [TYPE:hash]
}

// Handler performs PII detection and redaction. Stateless apart from
// configuration; safe for concurrent use.
type Handler struct {
	cfg    Config
	logger logging.Logger
}

// New creates a Handler. A nil logger disables operational logging.
func New(cfg Config, logger logging.Logger) (*Handler, error) {
	switch cfg.HashAlgorithm {
	case "sha256", "sha512", "blake2b":
	default:
		return nil, errors.NewConfigError("INVALID_CONFIG", "pii hash algorithm must be sha256, sha512 or blake2b")
	}
	switch cfg.HashEncoding {
	case "hex", "base64":
	default:
		return nil, errors.NewConfigError("INVALID_CONFIG", "pii hash encoding must be hex or base64")
	}

	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Handler{cfg: cfg, logger: logger.WithComponent("pii")}, nil
}

// Detect reports which PII categories appear in text. Categories are listed
// once each, in a stable order.
func (h *Handler) Detect(text string) Detection {
	var types []Category

	if len(findNationalIDs(text)) > 0 {
		types = append(types, CategoryNationalID)
	}
	if len(findCreditCards(text)) > 0 {
		types = append(types, CategoryCreditCard)
	}
	if emailPattern.MatchString(text) {
		types = append(types, CategoryEmail)
	}
	if phonePattern.MatchString(text) {
		types = append(types, CategoryPhone)
	}

	if len(types) > 0 && h.cfg.EnableLogging {
		h.logger.Info(context.Background(), "pii detected", "categories", len(types))
	}

	return Detection{Detected: len(types) > 0, Types: types}
}

// Hash produces a deterministic digest of value so duplicate detections can
// be correlated without ever storing the raw value.
func (h *Handler) Hash(value string) string {
	hasher := h.newHash()
	hasher.Write([]byte(value))

	return h.encode(hasher.Sum(nil))
}

// Sanitize replaces every detected PII span with a bracketed [TYPE:hash]
// token, or the configured replacement string. Non-PII text is untouched.
func (h *Handler) Sanitize(text string) string {
	// Emails first: their local parts can contain digit runs that the
	// numeric categories would otherwise carve up.
	out := emailPattern.ReplaceAllStringFunc(text, func(m string) string {
		return h.token(CategoryEmail, m)
	})

	// Cards before IDs: a 16-digit card contains 9-digit windows.
	out = h.redactSpans(out, CategoryCreditCard, findSpans(creditCardPattern, out, validLuhn))

	out = phonePattern.ReplaceAllStringFunc(out, func(m string) string {
		return h.token(CategoryPhone, m)
	})

	out = h.redactSpans(out, CategoryNationalID, findSpans(nationalIDPattern, out, validIsraeliID))

	return out
}

// redactSpans rebuilds text with each span replaced by its redaction token.
// Spans must be sorted and non-overlapping, as findSpans produces them.
func (h *Handler) redactSpans(text string, cat Category, spans []span) string {
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.start])
		b.WriteString(h.token(cat, text[s.start:s.end]))
		last = s.end
	}
	b.WriteString(text[last:])

	return b.String()
}

// SanitizeError returns an error whose message has been through Sanitize.
// The original error chain is dropped so no wrapped value can leak PII.
func (h *Handler) SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s", h.Sanitize(err.Error()))
}

// SanitizeObject walks maps, slices, pointers, and structs, sanitizing every
// string value. Cyclic structures are tolerated: revisited containers are
// replaced with a marker instead of recursing forever. The input is not
// mutated; a sanitized copy is returned.
func (h *Handler) SanitizeObject(value interface{}) interface{} {
	return h.sanitizeValue(reflect.ValueOf(value), make(map[uintptr]bool))
}

const cycleMarker = "[CYCLE]"

func (h *Handler) sanitizeValue(v reflect.Value, visited map[uintptr]bool) interface{} {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return h.sanitizeValue(v.Elem(), visited)

	case reflect.String:
		return h.Sanitize(v.String())

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return cycleMarker
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			out[key] = h.sanitizeValue(iter.Value(), visited)
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return cycleMarker
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = h.sanitizeValue(v.Index(i), visited)
		}
		return out

	case reflect.Array:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = h.sanitizeValue(v.Index(i), visited)
		}
		return out

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return cycleMarker
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		return h.sanitizeValue(v.Elem(), visited)

	case reflect.Struct:
		out := make(map[string]interface{}, v.NumField())
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			out[t.Field(i).Name] = h.sanitizeValue(v.Field(i), visited)
		}
		return out

	default:
		return v.Interface()
	}
}

// DetectBatch scans each text independently.
func (h *Handler) DetectBatch(texts []string) []Detection {
	results := make([]Detection, len(texts))
	for i, text := range texts {
		results[i] = h.Detect(text)
	}

	return results
}

// SanitizeBatch sanitizes each text independently.
func (h *Handler) SanitizeBatch(texts []string) []string {
	results := make([]string, len(texts))
	for i, text := range texts {
		results[i] = h.Sanitize(text)
	}

	return results
}

// SecureErase zero-fills buf in place when the SecureErase option is on.
// Best effort only: the runtime may already have copied the data during
// garbage collection or growth, so this shrinks the exposure window rather
// than guaranteeing removal.
func (h *Handler) SecureErase(buf []byte) {
	if !h.cfg.SecureErase {
		return
	}

	for i := range buf {
		buf[i] = 0
	}
}

// IsPIIField classifies a form-field *name* as likely holding identity data,
// independent of its current value. Covers English and Hebrew, camelCase and
// snake_case.
func (h *Handler) IsPIIField(fieldName string) bool {
	for _, token := range splitFieldName(fieldName) {
		if piiFieldTokens[token] {
			return true
		}
	}

	for _, heb := range piiFieldHebrew {
		if strings.Contains(fieldName, heb) {
			return true
		}
	}

	return false
}

// token builds the redaction token for a detected span.
func (h *Handler) token(cat Category, value string) string {
	if h.cfg.Replacement != "" {
		return h.cfg.Replacement
	}

	digest := h.Hash(value)
	if len(digest) > 8 {
		digest = digest[:8]
	}

	return fmt.Sprintf("[%s:%s]", cat, digest)
}

func (h *Handler) newHash() hash.Hash {
	switch h.cfg.HashAlgorithm {
	case "sha512":
		return sha512.New()
	case "blake2b":
		// Keyless blake2b-256 never returns an error.
		hasher, _ := blake2b.New256(nil)
		return hasher
	default:
		return sha256.New()
	}
}

func (h *Handler) encode(sum []byte) string {
	if h.cfg.HashEncoding == "base64" {
		return base64.StdEncoding.EncodeToString(sum)
	}

	return hex.EncodeToString(sum)
}
