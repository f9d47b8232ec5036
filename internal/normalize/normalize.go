// Package normalize converts an HTML subtree into flow-formatted plain text.
// The output is not a markup format: emphasis becomes lightweight markers,
// link destinations are kept inline, and structure is expressed with line
// breaks only.
package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Flatten walks the subtree rooted at n depth-first, in document order, and
// returns its flow-text rendition. Callers are expected to have removed any
// substructures that are extracted separately (quote boxes, attachment lists)
// before calling, so they are not rendered twice.
func Flatten(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	emit(&b, n)
	return CleanupWhitespace(b.String())
}

// FlattenChildren renders only the children of n, for callers that hold a
// container element (a quote box, a post body) whose own tag must not
// contribute markers.
func FlattenChildren(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	emitChildren(&b, n)
	return CleanupWhitespace(b.String())
}

func emit(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		writeText(b, n.Data)
		return
	case html.DocumentNode:
		emitChildren(b, n)
		return
	case html.ElementNode:
		// handled below
	default:
		return
	}

	switch strings.ToLower(n.Data) {
	case "script", "style", "noscript", "iframe":
		return
	case "p":
		b.WriteString("\n\n")
		emitChildren(b, n)
	case "br":
		b.WriteString("\n")
	case "b", "strong":
		inner := childText(n)
		if inner != "" {
			b.WriteString("**")
			b.WriteString(inner)
			b.WriteString("**")
		}
	case "i", "em":
		inner := childText(n)
		if inner != "" {
			b.WriteString("*")
			b.WriteString(inner)
			b.WriteString("*")
		}
	case "a":
		text := flattenChildren(n)
		href := attr(n, "href")
		switch {
		case text == "" && href == "":
		case href == "":
			b.WriteString(text)
		case text == "":
			b.WriteString(href)
		default:
			b.WriteString(text)
			b.WriteString(" (")
			b.WriteString(href)
			b.WriteString(")")
		}
	case "blockquote":
		b.WriteString("\n> ")
		b.WriteString(flattenChildren(n))
		b.WriteString("\n")
	case "ul":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c, "li") {
				b.WriteString("\n• ")
				b.WriteString(flattenChildren(c))
			}
		}
		b.WriteString("\n")
	case "ol":
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c, "li") {
				i++
				b.WriteString("\n")
				b.WriteString(strconv.Itoa(i))
				b.WriteString(". ")
				b.WriteString(flattenChildren(c))
			}
		}
		b.WriteString("\n")
	case "div", "span", "section", "article", "main", "body", "html", "font", "center", "small", "td", "th", "tr", "table", "tbody", "li":
		// Generic containers contribute their children with no added markers.
		emitChildren(b, n)
	default:
		// Unrecognized element: flattened text content only.
		writeText(b, textContent(n))
	}
}

func emitChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		emit(b, c)
	}
}

// flattenChildren renders n's children into a fresh buffer so the result can
// be wrapped in markers. Interior whitespace is left for the final cleanup.
func flattenChildren(n *html.Node) string {
	var b strings.Builder
	emitChildren(&b, n)
	return strings.TrimSpace(b.String())
}

// childText is flattenChildren with newlines squashed, for inline wrappers
// whose markers must not span line breaks.
func childText(n *html.Node) string {
	s := flattenChildren(n)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// writeText appends trimmed text, preserving a single boundary space on
// either side when the source had one, so adjacent inline nodes do not glue
// together. Runs are collapsed later by CleanupWhitespace.
func writeText(b *strings.Builder, data string) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		if data != "" && b.Len() > 0 {
			b.WriteString(" ")
		}
		return
	}
	if data != trimmed && strings.TrimLeft(data, " \t\n\r") != data {
		b.WriteString(" ")
	}
	b.WriteString(trimmed)
	if strings.TrimRight(data, " \t\n\r") != data {
		b.WriteString(" ")
	}
}

// textContent returns the concatenated text of all descendant text nodes.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			return
		}
		if cur.Type == html.ElementNode {
			switch strings.ToLower(cur.Data) {
			case "script", "style", "noscript":
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

// CleanupWhitespace normalizes the raw emission: runs of spaces and tabs
// collapse to one space, every line is edge-trimmed, three or more
// consecutive line breaks collapse to exactly two, and the whole result is
// trimmed. It must run once over the fully assembled text, not per node,
// because interior emissions introduce their own breaks that have to be
// normalized together.
func CleanupWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(collapseSpaces(line))
		if trimmed == "" {
			blanks++
			// At most one blank line between content lines.
			if len(out) > 0 && blanks == 1 {
				out = append(out, "")
			}
			continue
		}
		blanks = 0
		out = append(out, trimmed)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
