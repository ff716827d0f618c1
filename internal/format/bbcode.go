package format

import (
	"regexp"
	"strconv"
	"strings"
)

// BBCodeToMarkup converts Steam-flavoured BBCode into Discord-style markdown.
//
// Pipeline: normalize newlines, tokenize, parse into a tree (unknown and
// unmatched tags are dropped here, their content kept), render, then collapse
// blank-line runs and trim.
func BBCodeToMarkup(raw string) string {
	if raw == "" {
		return ""
	}
	toks := tokenize(normalizeNewlines(raw))
	out := renderNodes(parse(toks))
	return tidy(out)
}

// StripTags removes every tag token from s and keeps the text between them.
// It only ever sees source BBCode: rendered markdown links look like tags.
func StripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, t := range tokenize(s) {
		if t.kind == tokText {
			b.WriteString(t.text)
		}
	}
	return b.String()
}

// ---- tokenize ----

type tokenKind int

const (
	tokText tokenKind = iota
	tokOpen
	tokClose
)

type token struct {
	kind  tokenKind
	name  string // lower-cased tag name
	arg   string // value after '=' (raw, quotes kept)
	attrs string // "key=value ..." after a space, e.g. [img src="..."]
	text  string // tokText only
}

func tokenize(s string) []token {
	var (
		toks []token
		text strings.Builder
	)
	flush := func() {
		if text.Len() > 0 {
			toks = append(toks, token{kind: tokText, text: text.String()})
			text.Reset()
		}
	}
	for i := 0; i < len(s); {
		if s[i] == '[' {
			if t, n, ok := scanTag(s[i:]); ok {
				flush()
				toks = append(toks, t)
				i += n
				continue
			}
		}
		// Copy up to the next '[' in one go.
		j := strings.IndexByte(s[i+1:], '[')
		if j < 0 {
			text.WriteString(s[i:])
			break
		}
		text.WriteString(s[i : i+1+j])
		i += 1 + j
	}
	flush()
	return toks
}

// scanTag recognizes [name], [name=arg], [name attrs] and [/name] at the
// start of s. name is [A-Za-z0-9*]+; arg and attrs may not span lines. Only
// media tags take the spaced attrs form, so "[Ctrl + Z]" stays literal text.
func scanTag(s string) (token, int, bool) {
	j := 1
	closing := false
	if j < len(s) && s[j] == '/' {
		closing = true
		j++
	}
	start := j
	for j < len(s) && isNameByte(s[j]) {
		j++
	}
	if j == start || j >= len(s) {
		return token{}, 0, false
	}
	name := strings.ToLower(s[start:j])

	switch s[j] {
	case ']':
		if closing {
			return token{kind: tokClose, name: name}, j + 1, true
		}
		return token{kind: tokOpen, name: name}, j + 1, true
	case '=':
		if closing {
			return token{}, 0, false
		}
		body, n, ok := scanUntilBracket(s[j+1:])
		if !ok || body == "" {
			return token{}, 0, false
		}
		return token{kind: tokOpen, name: name, arg: body}, j + 1 + n, true
	case ' ', '\t':
		if closing || !attrTags[name] {
			return token{}, 0, false
		}
		body, n, ok := scanUntilBracket(s[j+1:])
		if !ok {
			return token{}, 0, false
		}
		return token{kind: tokOpen, name: name, attrs: strings.TrimSpace(body)}, j + 1 + n, true
	default:
		return token{}, 0, false
	}
}

// attrTags are the tags Steam writes with space separated attributes.
var attrTags = map[string]bool{"img": true, "video": true}

// scanUntilBracket returns the text before the first ']' and the number of
// bytes consumed including the bracket.
func scanUntilBracket(s string) (string, int, bool) {
	for k := 0; k < len(s); k++ {
		switch s[k] {
		case ']':
			return s[:k], k + 1, true
		case '[', '\n':
			return "", 0, false
		}
	}
	return "", 0, false
}

func isNameByte(c byte) bool {
	return c == '*' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// ---- parse ----

// paired lists the tags the renderer understands. Everything else is dropped.
var paired = map[string]bool{
	"h1": true, "h2": true, "h3": true,
	"p": true,
	"b": true, "i": true, "u": true, "strike": true,
	"code":  true,
	"list":  true,
	"olist": true,
	"url":   true,
	// Media blocks are matched only so they can be removed with their content.
	"img":            true,
	"video":          true,
	"previewyoutube": true,
}

const itemTag = "*"

type node struct {
	tag      string // "" for text
	arg      string
	attrs    string
	text     string
	children []*node
}

func parse(toks []token) []*node {
	var out []*node
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.kind {
		case tokText:
			out = append(out, &node{text: t.text})
		case tokOpen:
			if t.name == itemTag {
				out = append(out, &node{tag: itemTag})
				continue
			}
			if !paired[t.name] {
				continue
			}
			j := matchClose(toks, i)
			if j < 0 {
				continue
			}
			out = append(out, &node{tag: t.name, arg: t.arg, attrs: t.attrs, children: parse(toks[i+1 : j])})
			i = j
		case tokClose:
			// stray closing tag
		}
	}
	return out
}

// matchClose finds the closing token for the open tag at toks[i], honouring
// nested tags of the same name. Returns -1 when there is none.
func matchClose(toks []token, i int) int {
	name := toks[i].name
	depth := 0
	for j := i + 1; j < len(toks); j++ {
		t := toks[j]
		if t.name != name {
			continue
		}
		switch t.kind {
		case tokOpen:
			depth++
		case tokClose:
			if depth == 0 {
				return j
			}
			depth--
		}
	}
	return -1
}

// ---- render ----

func renderNodes(ns []*node) string {
	var b strings.Builder
	for _, n := range ns {
		b.WriteString(renderNode(n))
	}
	return b.String()
}

func renderNode(n *node) string {
	switch n.tag {
	case "":
		return n.text
	case "h1", "h2", "h3":
		inner := strings.TrimSpace(renderNodes(n.children))
		if inner == "" {
			return "\n"
		}
		return "\n\n## " + inner + "\n"
	case "p":
		inner := strings.TrimSpace(renderNodes(n.children))
		if inner == "" {
			return "\n"
		}
		return "\n\n" + inner + "\n"
	case "b":
		return emphasize("**", renderNodes(n.children))
	case "i":
		return emphasize("*", renderNodes(n.children))
	case "u":
		return emphasize("__", renderNodes(n.children))
	case "strike":
		return emphasize("~~", renderNodes(n.children))
	case "code":
		return "\n```\n" + strings.Trim(renderNodes(n.children), "\n") + "\n```\n"
	case "list":
		return renderList(n.children, false)
	case "olist":
		return renderList(n.children, true)
	case "url":
		return renderURL(n)
	default:
		// img, video, previewyoutube and stray list items.
		return ""
	}
}

// emphasize wraps s in marker, moving surrounding whitespace outside the
// markers; "** x **" does not render as bold.
func emphasize(marker, s string) string {
	inner := strings.TrimSpace(s)
	if inner == "" {
		return s
	}
	lead := s[:strings.Index(s, inner)]
	trail := s[len(lead)+len(inner):]
	return lead + marker + inner + marker + trail
}

func renderList(children []*node, ordered bool) string {
	var (
		items []string
		cur   []*node
	)
	flush := func() {
		item := strings.TrimSpace(renderNodes(cur))
		cur = cur[:0]
		if item == "" {
			return
		}
		// Nested lists keep their structure under the item.
		items = append(items, strings.ReplaceAll(item, "\n", "\n  "))
	}
	for _, c := range liftItems(children) {
		if c.tag == itemTag {
			flush()
			continue
		}
		cur = append(cur, c)
	}
	flush()
	if len(items) == 0 {
		return "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, it := range items {
		if ordered {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". ")
		} else {
			b.WriteString("- ")
		}
		b.WriteString(it)
		b.WriteString("\n")
	}
	return b.String()
}

// liftItems moves [*] markers out of inline formatting so that
// "[b][*]a[*]b[/b]" splits into two items, each keeping the formatting.
// Nested lists own their items and are left alone.
func liftItems(ns []*node) []*node {
	out := make([]*node, 0, len(ns))
	for _, n := range ns {
		if !inlineTags[n.tag] {
			out = append(out, n)
			continue
		}
		kids := liftItems(n.children)
		var seg []*node
		wrap := func() {
			if len(seg) > 0 {
				out = append(out, &node{tag: n.tag, arg: n.arg, attrs: n.attrs, children: seg})
				seg = nil
			}
		}
		for _, k := range kids {
			if k.tag == itemTag {
				wrap()
				out = append(out, k)
				continue
			}
			seg = append(seg, k)
		}
		wrap()
	}
	return out
}

var inlineTags = map[string]bool{"b": true, "i": true, "u": true, "strike": true}

func renderURL(n *node) string {
	text := strings.TrimSpace(renderNodes(n.children))
	target := unquote(strings.TrimSpace(n.arg))
	switch {
	case target == "" && text == "":
		return ""
	case target == "":
		return "<" + text + ">"
	case text == "":
		return "<" + target + ">"
	default:
		return "[" + text + "](" + target + ")"
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// ---- post-process ----

var reBlankRun = regexp.MustCompile(`\n{3,}`)

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func tidy(s string) string {
	s = reBlankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
