package labelreader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cellar/internal/store"
)

// Reading is the structured content of a label.
type Reading struct {
	Producer string `json:"producer"`
	Label    string `json:"label"`
	Vintage  *int   `json:"vintage"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Payload is what a done label task stores. Review is absent when no review
// was requested and JSON null when the review call failed.
type Payload struct {
	Reading
	Review      json.RawMessage `json:"review,omitempty"`
	ReviewError string          `json:"review_error,omitempty"`
}

// ParsePayload decodes a stored task payload.
func ParsePayload(raw json.RawMessage) (Payload, error) {
	var payload Payload
	if len(raw) == 0 {
		return payload, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("decode label payload: %w", err)
	}
	return payload, nil
}

// ReviewText returns the review string, if one was produced.
func (p Payload) ReviewText() (string, bool) {
	if len(p.Review) == 0 || bytes.Equal(p.Review, []byte("null")) {
		return "", false
	}
	var text string
	if err := json.Unmarshal(p.Review, &text); err != nil {
		return "", false
	}
	return text, true
}

// Descriptors converts the reading into a store patch.
func (r Reading) Descriptors() store.Descriptors {
	return store.Descriptors{
		Producer: r.Producer,
		Label:    r.Label,
		Vintage:  r.Vintage,
		Region:   r.Region,
		Country:  r.Country,
	}
}

// modelReading mirrors the model output, which is loose about types.
type modelReading struct {
	Producer json.RawMessage `json:"producer"`
	Label    json.RawMessage `json:"label"`
	Vintage  json.RawMessage `json:"vintage"`
	Region   json.RawMessage `json:"region"`
	Country  json.RawMessage `json:"country"`
}

func (m modelReading) toReading() (Reading, error) {
	reading := Reading{
		Producer: looseString(m.Producer),
		Label:    looseString(m.Label),
		Region:   looseString(m.Region),
		Country:  looseString(m.Country),
		Vintage:  looseYear(m.Vintage),
	}
	var missing []string
	if reading.Producer == "" {
		missing = append(missing, "producer")
	}
	if reading.Label == "" {
		missing = append(missing, "label")
	}
	// vintage and region may be null (non-vintage wines, unknown region) but
	// the keys must be present.
	if len(m.Vintage) == 0 {
		missing = append(missing, "vintage")
	}
	if len(m.Region) == 0 {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		return Reading{}, fmt.Errorf("model response missing %s", strings.Join(missing, ", "))
	}
	return reading, nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return cleanText(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// looseYear accepts 2019, "2019", or "2019 vintage"; anything without a
// plausible four-digit year (including "NV") yields nil.
func looseYear(raw json.RawMessage) *int {
	text := looseString(raw)
	if text == "" {
		return nil
	}
	for _, field := range strings.FieldsFunc(text, func(r rune) bool { return r < '0' || r > '9' }) {
		if len(field) != 4 {
			continue
		}
		year, err := strconv.Atoi(field)
		if err == nil && year >= 1800 && year <= 2200 {
			return &year
		}
	}
	return nil
}

func cleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "unknown":
		return ""
	}
	return s
}
