package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"decimal comma truncates fraction", "60.471,23", 60471},
		{"decimal comma with zero fraction", "1.234,00", 1234},
		{"thousands separator only", "2.500", 2500},
		{"plain digits", "15000", 15000},
		{"millions", "1.250.000", 1250000},
		{"comma only", "99,99", 99},
		{"surrounding whitespace", " 2.500 ", 2500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "   ", "abc", "Rp", ",50", "12a34"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseAmount(input)
			assert.Error(t, err)
		})
	}
}
