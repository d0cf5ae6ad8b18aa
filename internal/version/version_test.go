package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
}

// TestCompare covers ordering of bundle-style version strings.
func TestCompare(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.1", -1},
		{"2.0", "1.9.9", 1},
		{"42", "42", 0},
		{" 1.4.0 ", "1.4.0", 0},
		{"1.4.0+7", "1.4.0+8", 0},
	}

	for _, tc := range cases {
		got, err := Compare(tc.a, tc.b)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "%s vs %s", tc.a, tc.b)
	}

	_, err := Compare("not a version", "1.0.0")
	require.Error(t, err)
}
