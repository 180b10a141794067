package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexibleString converts a JSON value to a string, accepting numbers and
// booleans where a string was expected. ok is false for a missing or null
// value so callers can tell "absent" apart from "empty string".
func FlexibleString(raw json.RawMessage) (value string, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal, true
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return strconv.FormatInt(int64(numVal), 10), true
		}
		return strconv.FormatFloat(numVal, 'g', -1, 64), true
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal), true
	}

	// Objects and arrays keep their compact JSON text.
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String(), true
	}
	return string(raw), true
}

// FlexibleStringValue is FlexibleString without the presence flag.
// Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	v, _ := FlexibleString(raw)
	return v
}
