package output

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "…"

// ConstrainWidth truncates each line of text to width display cells. Escape
// sequences do not count toward the width. A width of zero disables it.
func ConstrainWidth(text string, width int) string {
	if text == "" || width <= 0 {
		return text
	}

	parts := strings.SplitAfter(text, "\n")
	for i, part := range parts {
		line, newline := strings.CutSuffix(part, "\n")
		if line == "" {
			continue
		}
		if ansi.StringWidth(line) > width {
			line = ansi.Truncate(line, width, ellipsis)
		}
		if newline {
			parts[i] = line + "\n"
		} else {
			parts[i] = line
		}
	}
	return strings.Join(parts, "")
}

// firstLine returns the first line of s, marking dropped lines with an
// ellipsis.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if head, _, found := strings.Cut(s, "\n"); found {
		return strings.TrimSpace(head) + " " + ellipsis
	}
	return s
}
