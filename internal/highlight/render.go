package highlight

import (
	"html"
	"strings"

	"github.com/mgutz/ansi"
)

// Classes are the CSS classes applied to changed spans by RenderHTML.
type Classes struct {
	Removed string `json:"removed"`
	Added   string `json:"added"`
}

// DefaultClasses renders removed text in red and added text in green.
var DefaultClasses = Classes{
	Removed: "bg-red-200 dark:bg-red-900 dark:text-red-200",
	Added:   "bg-green-200 dark:bg-green-900 dark:text-green-200",
}

// RenderHTML escapes each span and wraps changed spans in a classed <span>.
// Unchanged spans and changed whitespace-only spans are emitted as plain text.
func RenderHTML(spans []Span, classes Classes) string {
	var b strings.Builder
	for _, sp := range spans {
		text := html.EscapeString(sp.Text)
		class := classes.forTag(sp.Tag)
		if class == "" || !isWord(sp.Text) {
			b.WriteString(text)
			continue
		}
		b.WriteString(`<span class="`)
		b.WriteString(html.EscapeString(class))
		b.WriteString(`">`)
		b.WriteString(text)
		b.WriteString(`</span>`)
	}
	return b.String()
}

func (c Classes) forTag(tag Tag) string {
	switch tag {
	case Removed:
		return c.Removed
	case Added:
		return c.Added
	default:
		return ""
	}
}

var (
	removedColor = ansi.ColorFunc("red+b")
	addedColor   = ansi.ColorFunc("green+b")
)

// RenderANSI colors removed words red and added words green for a terminal.
func RenderANSI(spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		switch {
		case !isWord(sp.Text):
			b.WriteString(sp.Text)
		case sp.Tag == Removed:
			b.WriteString(removedColor(sp.Text))
		case sp.Tag == Added:
			b.WriteString(addedColor(sp.Text))
		default:
			b.WriteString(sp.Text)
		}
	}
	return b.String()
}
