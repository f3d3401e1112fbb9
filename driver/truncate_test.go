package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncate_ShortOutputUnchanged(t *testing.T) {
	out := "line one\nline two"
	require.Equal(t, out, Truncate(out))
}

func TestTruncate_ManyLinesKeepsHeadAndTail(t *testing.T) {
	lines := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		lines = append(lines, "line")
	}
	got := Truncate(strings.Join(lines, "\n"))

	require.Contains(t, got, "lines elided")
	gotLines := strings.Split(got, "\n")
	require.True(t, len(gotLines) < 200, "elided output has fewer lines than the original")
}

func TestTruncate_LongSingleLineIsCharBounded(t *testing.T) {
	huge := strings.Repeat("x", 10000)
	got := Truncate(huge)

	require.LessOrEqual(t, len(got), truncateMaxChars+len("\n... [truncated] ...\n"))
	require.Contains(t, got, "truncated")
}

func TestTruncate_EmptyOutput(t *testing.T) {
	require.Equal(t, "", Truncate(""))
}
