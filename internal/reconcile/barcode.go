package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"cellar/internal/services"
)

// maxBarcodeDigits is the length of a GTIN-14, the longest retail barcode.
const maxBarcodeDigits = 14

// NormalizeBarcode converts a scanned barcode into its canonical string form.
// Strings, json.Number values, integers, and integral floats are accepted, so
// 123 and "123" canonicalize identically. String forms keep their leading
// zeros; full-width digits are folded and spaces or hyphens dropped.
func NormalizeBarcode(value any) (string, error) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case json.Number:
		raw = v.String()
	case int:
		return formatSigned(int64(v))
	case int8:
		return formatSigned(int64(v))
	case int16:
		return formatSigned(int64(v))
	case int32:
		return formatSigned(int64(v))
	case int64:
		return formatSigned(v)
	case uint:
		return checkDigits(strconv.FormatUint(uint64(v), 10))
	case uint8:
		return checkDigits(strconv.FormatUint(uint64(v), 10))
	case uint16:
		return checkDigits(strconv.FormatUint(uint64(v), 10))
	case uint32:
		return checkDigits(strconv.FormatUint(uint64(v), 10))
	case uint64:
		return checkDigits(strconv.FormatUint(v, 10))
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	case nil:
		return "", invalidBarcode("barcode required")
	default:
		return "", invalidBarcode(fmt.Sprintf("unsupported barcode type %T", value))
	}

	folded := norm.NFKC.String(raw)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, folded)
	return checkDigits(cleaned)
}

func formatSigned(v int64) (string, error) {
	if v < 0 {
		return "", invalidBarcode("barcode must not be negative")
	}
	return checkDigits(strconv.FormatInt(v, 10))
}

func formatFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) {
		return "", invalidBarcode(fmt.Sprintf("barcode %v is not a whole number", v))
	}
	if v >= 1e15 {
		return "", invalidBarcode("barcode too long")
	}
	return checkDigits(strconv.FormatFloat(v, 'f', -1, 64))
}

func checkDigits(s string) (string, error) {
	if s == "" {
		return "", invalidBarcode("barcode required")
	}
	if len(s) > maxBarcodeDigits {
		return "", invalidBarcode(fmt.Sprintf("barcode %q longer than %d digits", s, maxBarcodeDigits))
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", invalidBarcode(fmt.Sprintf("barcode %q contains non-digit characters", s))
		}
	}
	return s, nil
}

func invalidBarcode(message string) error {
	return services.Wrap(services.ErrValidation, "reconcile", "normalize barcode", message, nil)
}

// NormalizeSlot trims a slot label; blank slots mean "no slot".
func NormalizeSlot(slot *string) *string {
	if slot == nil {
		return nil
	}
	trimmed := strings.TrimSpace(norm.NFKC.String(*slot))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
