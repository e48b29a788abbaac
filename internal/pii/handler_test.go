package pii

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 000000018 and 123456782 satisfy the teudat zehut checksum; 123456789 does
// not. 4111 1111 1111 1111 is the classic Luhn-valid test card.
const (
	validID      = "000000018"
	validID2     = "123456782"
	invalidID    = "123456789"
	validCard    = "4111111111111111"
	invalidCard  = "4111111111111112"
	validPhone   = "052-1234567"
	validEmail   = "david.levi@example.co.il"
	hebrewDomain = "משה@דוגמה.קום"
)

func defaultConfig() Config {
	return Config{HashAlgorithm: "sha256", HashEncoding: "hex"}
}

func newTestHandler(t *testing.T, cfg Config) *Handler {
	t.Helper()

	h, err := New(cfg, nil)
	require.NoError(t, err)

	return h
}

func TestDetect_NationalID(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	d := h.Detect("ID: " + validID)
	require.True(t, d.Detected)
	assert.Contains(t, d.Types, CategoryNationalID)
}

func TestDetect_RejectsInvalidIDChecksum(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	d := h.Detect("ID: " + invalidID)
	assert.NotContains(t, d.Types, CategoryNationalID)
}

func TestDetect_CreditCard(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	for _, text := range []string{
		"card " + validCard,
		"card 4111 1111 1111 1111",
		"card 4111-1111-1111-1111",
	} {
		d := h.Detect(text)
		assert.Contains(t, d.Types, CategoryCreditCard, "text %q", text)
	}
}

func TestDetect_RejectsLuhnFailures(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	d := h.Detect("card " + invalidCard)
	assert.NotContains(t, d.Types, CategoryCreditCard)
}

func TestDetect_EmailIncludingIDN(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	assert.Contains(t, h.Detect("reach me at "+validEmail).Types, CategoryEmail)
	assert.Contains(t, h.Detect(hebrewDomain).Types, CategoryEmail)
	assert.False(t, h.Detect("no at sign here").Detected)
}

func TestDetect_IsraeliPhones(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	for _, text := range []string{
		"call " + validPhone,
		"call 0521234567",
		"call +972-52-1234567",
		"office 02-6234567",
	} {
		assert.Contains(t, h.Detect(text).Types, CategoryPhone, "text %q", text)
	}
}

func TestDetect_CleanTextHasNoFindings(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	d := h.Detect("השכרת דירה בת 3 חדרים בחיפה")
	assert.False(t, d.Detected)
	assert.Empty(t, d.Types)
}

func TestHash_Deterministic(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	assert.Equal(t, h.Hash(validID), h.Hash(validID))
	assert.NotEqual(t, h.Hash(validID), h.Hash(validID2))
	assert.Len(t, h.Hash(validID), 64)
}

func TestHash_Blake2bAndBase64(t *testing.T) {
	h := newTestHandler(t, Config{HashAlgorithm: "blake2b", HashEncoding: "base64"})

	digest := h.Hash("secret")
	assert.Equal(t, digest, h.Hash("secret"))
	assert.NotEqual(t, digest, h.Hash("secret2"))
}

func TestSanitize_RedactsAllCategories(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	in := "ID " + validID + " card " + validCard + " mail " + validEmail + " tel " + validPhone
	out := h.Sanitize(in)

	assert.NotContains(t, out, validID)
	assert.NotContains(t, out, validCard)
	assert.NotContains(t, out, validEmail)
	assert.NotContains(t, out, validPhone)

	assert.Contains(t, out, "[NATIONAL_ID:")
	assert.Contains(t, out, "[CREDIT_CARD:")
	assert.Contains(t, out, "[EMAIL:")
	assert.Contains(t, out, "[PHONE:")
}

func TestSanitize_AdjacentNationalIDs(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	// A single separator must serve as both the closing boundary of one ID
	// and the opening boundary of the next.
	for _, sep := range []string{" ", ",", "-", "\n"} {
		out := h.Sanitize("IDs: " + validID + sep + validID2)

		assert.NotContains(t, out, validID)
		assert.NotContains(t, out, validID2)
		assert.Equal(t, 2, strings.Count(out, "[NATIONAL_ID:"), "separator %q", sep)
	}
}

func TestSanitize_AdjacentCreditCards(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	out := h.Sanitize("cards: " + validCard + " " + validCard)

	assert.NotContains(t, out, validCard)
	assert.Equal(t, 2, strings.Count(out, "[CREDIT_CARD:"))
}

func TestDetect_AdjacentNationalIDs(t *testing.T) {
	_ = newTestHandler(t, defaultConfig())

	ids := findNationalIDs("IDs: " + validID + " " + validID2)
	assert.Equal(t, []string{validID, validID2}, ids)
}

func TestSanitize_ContiguousDigitRunIsNotAnID(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	// Two valid IDs fused into one 18-digit run have no boundary between
	// them and must stay untouched.
	text := "ref " + validID + validID2 + " end"
	assert.Equal(t, text, h.Sanitize(text))
}

func TestSanitize_LeavesCleanAndInvalidTextAlone(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	for _, text := range []string{
		"totally harmless text",
		"ID-shaped but invalid: " + invalidID,
		"card-shaped but invalid: " + invalidCard,
		"",
	} {
		assert.Equal(t, text, h.Sanitize(text))
	}
}

func TestSanitize_CustomReplacement(t *testing.T) {
	cfg := defaultConfig()
	cfg.Replacement = "[REDACTED]"
	h := newTestHandler(t, cfg)

	out := h.Sanitize("ID: " + validID)
	assert.Equal(t, "ID: [REDACTED]", out)
}

func TestSanitize_TokenIsStablePerValue(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	a := h.Sanitize("first " + validID)
	b := h.Sanitize("second " + validID)

	// Same value, same token suffix: log correlation without raw values.
	assert.Equal(t, a[len("first "):], b[len("second "):])
}

func TestSanitizeError(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	err := h.SanitizeError(errors.New("failed to fill field for ID " + validID))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), validID)

	assert.NoError(t, h.SanitizeError(nil))
}

func TestSanitizeObject_RecursesNestedStructures(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	in := map[string]interface{}{
		"name": "harmless",
		"nested": map[string]interface{}{
			"id": "ID: " + validID,
		},
		"list":  []interface{}{"mail " + validEmail, 42},
		"count": 7,
	}

	out := h.SanitizeObject(in).(map[string]interface{})

	nested := out["nested"].(map[string]interface{})
	assert.NotContains(t, nested["id"], validID)

	list := out["list"].([]interface{})
	assert.NotContains(t, list[0], validEmail)
	assert.Equal(t, 42, list[1])
	assert.Equal(t, "harmless", out["name"])
}

func TestSanitizeObject_ToleratesCycles(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	cyclic := map[string]interface{}{"id": validID}
	cyclic["self"] = cyclic

	out := h.SanitizeObject(cyclic).(map[string]interface{})
	assert.Equal(t, cycleMarker, out["self"])
	assert.NotContains(t, out["id"], validID)
}

func TestSanitizeObject_Structs(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	type form struct {
		Card   string
		Count  int
		hidden string
	}

	out := h.SanitizeObject(form{Card: "pay with " + validCard, Count: 1, hidden: "x"}).(map[string]interface{})
	assert.NotContains(t, out["Card"], validCard)
	assert.Equal(t, 1, out["Count"])
	_, ok := out["hidden"]
	assert.False(t, ok)
}

func TestBatchHelpers(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	detections := h.DetectBatch([]string{"ID " + validID, "clean"})
	require.Len(t, detections, 2)
	assert.True(t, detections[0].Detected)
	assert.False(t, detections[1].Detected)

	sanitized := h.SanitizeBatch([]string{"ID " + validID, "clean"})
	assert.NotContains(t, sanitized[0], validID)
	assert.Equal(t, "clean", sanitized[1])
}

func TestSecureErase(t *testing.T) {
	cfg := defaultConfig()
	cfg.SecureErase = true
	h := newTestHandler(t, cfg)

	buf := []byte(validCard)
	h.SecureErase(buf)
	for i, b := range buf {
		assert.Zero(t, b, "byte %d not erased", i)
	}

	// Degenerate sizes must not panic.
	h.SecureErase(nil)
	h.SecureErase([]byte{})
	h.SecureErase(make([]byte, 1<<22))
}

func TestSecureEraseDisabled(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	buf := []byte(validCard)
	h.SecureErase(buf)
	assert.Equal(t, validCard, string(buf))
}

func TestIsPIIField(t *testing.T) {
	h := newTestHandler(t, defaultConfig())

	positive := []string{
		"idNumber", "id_number", "teudatZehut", "creditCard",
		"phone_number", "emailAddress", "mobile", "תעודת_זהות",
		"טלפון", "כתובת_מגורים",
	}
	for _, name := range positive {
		assert.True(t, h.IsPIIField(name), "field %q", name)
	}

	negative := []string{"documentTitle", "pageCount", "width", "fontSize", "כותרת"}
	for _, name := range negative {
		assert.False(t, h.IsPIIField(name), "field %q", name)
	}
}

func TestNew_RejectsUnknownConfig(t *testing.T) {
	_, err := New(Config{HashAlgorithm: "md5", HashEncoding: "hex"}, nil)
	assert.Error(t, err)

	_, err = New(Config{HashAlgorithm: "sha256", HashEncoding: "base32"}, nil)
	assert.Error(t, err)
}
