package sale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		existing *Sale
		declared int
		want     Decision
	}{
		{
			name:     "no stored record creates",
			existing: nil,
			declared: 0,
			want:     DecisionCreate,
		},
		{
			name:     "matching version overwrites",
			existing: &Sale{Version: 3},
			declared: 3,
			want:     DecisionOverwrite,
		},
		{
			name:     "declared ahead of stored overwrites",
			existing: &Sale{Version: 2},
			declared: 5,
			want:     DecisionOverwrite,
		},
		{
			name:     "stored ahead of declared conflicts",
			existing: &Sale{Version: 4},
			declared: 1,
			want:     DecisionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.existing, tt.declared))
		})
	}
}
