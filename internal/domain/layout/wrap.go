package layout

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// wrap splits text into lines of at most width display columns, breaking
// between words and hard-breaking words wider than a line. East Asian wide
// characters count as two columns. A width of zero returns the text as one
// line.
func wrap(text string, width int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	line, lineWidth := "", 0
	flush := func() {
		if line != "" {
			lines = append(lines, line)
		}
		line, lineWidth = "", 0
	}

	for _, word := range strings.Fields(text) {
		w := runewidth.StringWidth(word)
		switch {
		case w > width:
			flush()
			for runewidth.StringWidth(word) > width {
				chunk := runewidth.Truncate(word, width, "")
				if chunk == "" {
					_, size := utf8.DecodeRuneInString(word)
					chunk = word[:size]
				}
				lines = append(lines, chunk)
				word = word[len(chunk):]
			}
			line, lineWidth = word, runewidth.StringWidth(word)
		case line == "":
			line, lineWidth = word, w
		case lineWidth+1+w <= width:
			line += " " + word
			lineWidth += 1 + w
		default:
			flush()
			line, lineWidth = word, w
		}
	}
	flush()
	return lines
}
