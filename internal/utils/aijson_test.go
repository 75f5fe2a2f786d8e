package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAIJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]any
		wantErr bool
	}{
		{
			name:  "Pure JSON",
			input: `{"location": "Jersey City", "price": 2000}`,
			want:  map[string]any{"location": "Jersey City", "price": float64(2000)},
		},
		{
			name:  "JSON with byte order mark",
			input: "\ufeff{\"location\": \"Jersey City\"}",
			want:  map[string]any{"location": "Jersey City"},
		},
		{
			name:  "JSON in markdown code block",
			input: "```json\n{\"location\": \"Hoboken\"}\n```",
			want:  map[string]any{"location": "Hoboken"},
		},
		{
			name:  "JSON with surrounding text",
			input: `Sure! Here it is: {"rag_content": "furnished {nice}", "price": 1500} hope that helps`,
			want:  map[string]any{"rag_content": "furnished {nice}", "price": float64(1500)},
		},
		{
			name:  "JSON with trailing comma",
			input: `{"location": "Newark", "price": 1800,}`,
			want:  map[string]any{"location": "Newark", "price": float64(1800)},
		},
		{
			name:  "JSON with unquoted keys",
			input: `{location: "Newark", price: 1800}`,
			want:  map[string]any{"location": "Newark", "price": float64(1800)},
		},
		{
			name:    "Empty string",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "Invalid JSON",
			input:   "not json at all",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			err := ParseAIJSON(tt.input, &got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstObjectIgnoresBracesInStrings(t *testing.T) {
	assert.Equal(t, `{"a": "}"}`, firstObject(`x {"a": "}"} y`))
	assert.Equal(t, "", firstObject(`{"a": 1`))
	assert.Equal(t, "", firstObject("no braces"))
}
