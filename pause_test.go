package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{"minutes", "30m", 30 * time.Minute},
		{"hours", "2h", 2 * time.Hour},
		{"go syntax", "1h30m", 90 * time.Minute},
		{"days", "1d", 24 * time.Hour},
		{"days and hours", "1d12h", 36 * time.Hour},
		{"seconds", "45s", 45 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDurationRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "fast", "-1h", "0s", "1w"} {
		_, err := parseDuration(input)
		assert.Error(t, err, "input %q", input)
	}
}
