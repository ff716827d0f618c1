package format

import (
	"strings"
	"testing"

	"steamwatch/internal/news"
)

func sampleEntry() news.Entry {
	return news.Entry{
		ID:          "5123",
		Title:       " Patch 1.2 ",
		Author:      "Dev Team",
		URL:         "https://store.steampowered.com/news/app/440/view/5123",
		PublishedAt: 1700000000,
		Body:        "[b]Hi[/b]",
	}
}

func TestRenderWithPrefix(t *testing.T) {
	t.Parallel()
	got := Render("<@&123>", sampleEntry())
	want := "<@&123>\n" +
		"# Patch 1.2\n" +
		"**Published by *Dev Team* on <t:1700000000:f> (<t:1700000000:R>)**\n" +
		"**https://store.steampowered.com/news/app/440/view/5123**\n" +
		"\n" +
		"**Hi**"
	if got != want {
		t.Fatalf("Render\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderWithoutPrefix(t *testing.T) {
	t.Parallel()
	got := Render("  ", sampleEntry())
	if !strings.HasPrefix(got, "# Patch 1.2\n") {
		t.Fatalf("blank prefix should be omitted: %q", got)
	}
}

func TestRenderEmptyBody(t *testing.T) {
	t.Parallel()
	e := sampleEntry()
	e.Body = "[img]x[/img]"
	got := Render("", e)
	if strings.HasSuffix(got, "\n\n") {
		t.Fatalf("empty body should not leave a trailing blank line: %q", got)
	}
}
