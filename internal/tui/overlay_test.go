package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPopupKeepsBaseAroundCard(t *testing.T) {
	rows := make([]string, 9)
	for i := range rows {
		rows[i] = "row-" + string(rune('0'+i)) + "..................."
	}
	out := popup(strings.Join(rows, "\n"), "Popup", cardStyle, 24, 9)
	got := strings.Split(out, "\n")

	require.Len(t, got, 9)
	require.Contains(t, out, "Popup")
	require.Contains(t, got[0], "row-0")
	require.Contains(t, got[8], "row-8")
}

func TestPopupWithoutSizeAppendsCard(t *testing.T) {
	out := popup("base", "card", cardStyle, 0, 0)
	require.True(t, strings.HasPrefix(out, "base\n\n"))
	require.Contains(t, out, "card")
}
