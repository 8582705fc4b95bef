package feedback

import "strings"

// Tag returns the chat emoji shown next to a severity. Display only; the
// ordering of severities never depends on it.
func Tag(s Severity) string {
	switch s {
	case Success:
		return ":white_check_mark:"
	case Warning:
		return ":warning:"
	case Error:
		return ":x:"
	default:
		return ":grey_question:"
	}
}

// Render formats a collection as plain text, one group heading followed by
// its entries.
func Render(c *Collection) string {
	var b strings.Builder
	for i, g := range c.Groups() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(Tag(g.Severity()))
		b.WriteByte(' ')
		b.WriteString(g.Title())
		b.WriteString(":\n")
		for _, fb := range g.Items() {
			b.WriteString("  ")
			b.WriteString(Tag(fb.Severity()))
			b.WriteByte(' ')
			b.WriteString(fb.Message())
			b.WriteByte('\n')
		}
	}
	return b.String()
}
