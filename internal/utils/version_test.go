package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckVersion(t *testing.T) {
	tt := []struct {
		name    string
		version string
		min     string
		valid   bool
	}{
		{"plain", "0.1.0", "0.1.0", true},
		{"prefixed", "v0.2.3", "0.1.0", true},
		{"suffixed", "0.1.1-dev", "0.1.0", true},
		{"outdated", "0.0.9", "0.1.0", false},
		{"invalid", "what is this", "0.1.0", false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckVersion("hub", tc.version, tc.min)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
