package format

import (
	"fmt"
	"strings"

	"steamwatch/internal/news"
)

// Render builds the announcement for e. A blank prefix is omitted.
//
// Timestamps use Discord's <t:unix:f> (full date) and <t:unix:R> (relative)
// markup.
func Render(prefix string, e news.Entry) string {
	var b strings.Builder
	if p := strings.TrimSpace(prefix); p != "" {
		b.WriteString(p)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "# %s\n", strings.TrimSpace(e.Title))
	fmt.Fprintf(&b, "**Published by *%s* on <t:%d:f> (<t:%d:R>)**\n", strings.TrimSpace(e.Author), e.PublishedAt, e.PublishedAt)
	if u := strings.TrimSpace(e.URL); u != "" {
		fmt.Fprintf(&b, "**%s**\n", u)
	}
	if body := BBCodeToMarkup(e.Body); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String()
}
