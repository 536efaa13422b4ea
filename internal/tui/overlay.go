package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// popup centres a bordered card over base, clipped to width x height. The
// base stays visible around the card.
func popup(base, body string, card lipgloss.Style, width, height int) string {
	if width <= 0 || height <= 0 {
		return base + "\n\n" + card.Render(body)
	}
	canvas := lines(base, height)
	for i := range canvas {
		canvas[i] = padTo(canvas[i], width)
	}
	rendered := lines(card.Render(body), 0)
	cw := widest(rendered)
	x := max((width-cw)/2, 0)
	y := max((height-len(rendered))/2, 0)

	for i, line := range rendered {
		row := y + i
		if row >= len(canvas) {
			break
		}
		left := ansi.Truncate(canvas[row], x, "")
		if w := ansi.StringWidth(left); w < x {
			left += strings.Repeat(" ", x-w)
		}
		mid := padTo(line, cw)
		right := strings.TrimPrefix(canvas[row], ansi.Truncate(canvas[row], x+cw, ""))
		canvas[row] = padTo(left+mid+right, width)
	}
	return strings.Join(canvas, "\n")
}

// lines splits s and, when height > 0, clips or pads it to height rows.
func lines(s string, height int) []string {
	out := strings.Split(s, "\n")
	if height <= 0 {
		return out
	}
	if len(out) > height {
		out = out[:height]
	}
	for len(out) < height {
		out = append(out, "")
	}
	return out
}

func widest(ls []string) int {
	w := 0
	for _, l := range ls {
		w = max(w, ansi.StringWidth(l))
	}
	return w
}

func padTo(s string, width int) string {
	s = ansi.Truncate(s, width, "")
	if w := ansi.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}
