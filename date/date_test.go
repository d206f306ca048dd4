package date

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		raw      string
		expected time.Time
		ok       bool
	}{
		{"Due: Sep 5, 2026 11:59 PM", time.Date(2026, 9, 5, 23, 59, 0, 0, time.UTC), true},
		{"9/5/2026", time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), true},
		{"September 5, 2026", time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), true},
		{"2026-09-05", time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), true},
		{"  Due Jan 2, 2026  ", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"next week sometime", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tc := range testCases {
		got, ok := Normalize(tc.raw, "")
		require.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
		if tc.ok {
			require.Equal(t, tc.expected, got.UTC(), "raw=%q", tc.raw)
		}
	}
}
