package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlexibleString(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"string", `"Released - strength stable"`, "Released - strength stable", true},
		{"empty string is present", `""`, "", true},
		{"integer", `42`, "42", true},
		{"float", `3.5`, "3.5", true},
		{"boolean", `true`, "true", true},
		{"null", `null`, "", false},
		{"missing", ``, "", false},
		{"object kept compact", `{ "a": 1 }`, `{"a":1}`, true},
		{"array kept compact", `[1, 2]`, `[1,2]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleString(json.RawMessage(tt.raw))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestFlexibleStringValue(t *testing.T) {
	assert.Equal(t, "7", FlexibleStringValue(json.RawMessage(`7`)))
	assert.Equal(t, "", FlexibleStringValue(json.RawMessage(`null`)))
}
