package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTokens(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]int
	}{
		{
			name: "single pair",
			raw:  "alpha:1",
			want: map[string]int{"alpha": 1},
		},
		{
			name: "multiple pairs with spaces",
			raw:  "alpha:1, beta:2",
			want: map[string]int{"alpha": 1, "beta": 2},
		},
		{
			name: "malformed pairs are skipped",
			raw:  "alpha:1,broken,beta:x,:3,gamma:0",
			want: map[string]int{"alpha": 1},
		},
		{
			name: "empty input",
			raw:  "",
			want: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTokens(tt.raw))
		})
	}
}
