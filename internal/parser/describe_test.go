package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "features and capacity",
			input:    "Wireless Ergonomic Mouse 2.4G Rechargeable 500mAh",
			expected: "Wireless Ergonomic Mouse 2.4G Rechargeable 500mAh. Features: wireless connectivity, rechargeable battery, ergonomic design, 500mAh.",
		},
		{
			name:     "pack count",
			input:    "Cotton Crew Socks 6 Pack",
			expected: "Cotton Crew Socks 6 Pack. Features: cotton, pack of 6.",
		},
		{
			name:     "word boundaries",
			input:    "Ledger Notebook",
			expected: "Ledger Notebook",
		},
		{
			name:     "empty",
			input:    "  ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Describe(tt.input))
		})
	}
}
