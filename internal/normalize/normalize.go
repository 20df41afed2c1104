// Package normalize cleans raw descriptions coming out of source adapters:
// entity decoding, HTML-to-markdown conversion, and aggregator noise
// removal. Both crawl-time cleaning and batch re-cleaning call these
// functions, so each stage is idempotent.
package normalize

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

const (
	// MaxDescriptionLength bounds stored description size.
	MaxDescriptionLength = 10000
	// MinDescriptionLength is the threshold under which a cleaned
	// description is treated as unusable noise.
	MinDescriptionLength = 30

	// maxDecodePasses caps entity decoding; double-encoded input needs two
	// passes, anything deeper is pathological.
	maxDecodePasses = 4
)

// DecodeEntities resolves named, decimal and hex HTML entities, including
// double-encoded input such as "&amp;lt;div&amp;gt;". Decoding runs to a
// fixpoint, which makes the function idempotent.
func DecodeEntities(s string) string {
	for i := 0; i < maxDecodePasses; i++ {
		decoded := html.UnescapeString(s)
		if decoded == s {
			return s
		}
		s = decoded
	}
	return s
}

// chromeSelector matches element subtrees that never carry description
// content and are dropped wholesale before conversion.
const chromeSelector = "script, style, iframe, svg, noscript, form, nav, footer, header"

// StripHTML converts an HTML fragment to markdown-flavored plain text:
// headings, bold/italic, list items and links become their markdown
// equivalents, every other tag collapses to whitespace, and blank-line runs
// collapse to a single blank line. The result is truncated to
// MaxDescriptionLength runes. Applying StripHTML to its own output is a
// no-op.
func StripHTML(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		// Unparseable input: fall back to whitespace normalization only.
		return truncate(collapseBlankLines(s))
	}
	doc.Find(chromeSelector).Remove()

	var b strings.Builder
	for _, root := range doc.Nodes {
		renderNode(&b, root)
	}
	return truncate(collapseBlankLines(b.String()))
}

func renderNode(b *strings.Builder, n *xhtml.Node) {
	switch n.Type {
	case xhtml.CommentNode:
		return
	case xhtml.TextNode:
		b.WriteString(n.Data)
		return
	case xhtml.ElementNode:
		renderElement(b, n)
		return
	default:
		renderChildren(b, n)
	}
}

func renderChildren(b *strings.Builder, n *xhtml.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func renderElement(b *strings.Builder, n *xhtml.Node) {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		b.WriteString("\n\n")
		b.WriteString(strings.Repeat("#", level))
		b.WriteString(" ")
		renderChildren(b, n)
		b.WriteString("\n\n")
	case "b", "strong":
		inner := renderToString(n)
		if strings.TrimSpace(inner) != "" {
			fmt.Fprintf(b, "**%s**", strings.TrimSpace(inner))
		}
	case "i", "em":
		inner := renderToString(n)
		if strings.TrimSpace(inner) != "" {
			fmt.Fprintf(b, "*%s*", strings.TrimSpace(inner))
		}
	case "li":
		b.WriteString("\n- ")
		renderChildren(b, n)
	case "a":
		inner := strings.TrimSpace(renderToString(n))
		href := attr(n, "href")
		switch {
		case inner == "":
		case href == "" || strings.HasPrefix(href, "javascript:"):
			b.WriteString(inner)
		default:
			fmt.Fprintf(b, "[%s](%s)", inner, href)
		}
	case "br":
		b.WriteString("\n")
	case "p", "div", "section", "article", "ul", "ol", "table", "tr", "blockquote":
		b.WriteString("\n")
		renderChildren(b, n)
		b.WriteString("\n")
	default:
		b.WriteString(" ")
		renderChildren(b, n)
		b.WriteString(" ")
	}
}

func renderToString(n *xhtml.Node) string {
	var b strings.Builder
	renderChildren(&b, n)
	return b.String()
}

func attr(n *xhtml.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	spaceRuns     = regexp.MustCompile(`[ \t]{2,}`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

func collapseBlankLines(s string) string {
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxDescriptionLength {
		return s
	}
	return string(runes[:MaxDescriptionLength])
}

// Clean runs the full normalization pipeline over a raw description.
// Output shorter than MinDescriptionLength is treated as "no usable
// description" and returned as an empty string.
func Clean(raw string) string {
	out := RemoveNoise(StripHTML(DecodeEntities(raw)))
	return out
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTitleKey produces the dedup comparison key for a job title:
// lowercase, non-alphanumerics stripped to spaces, whitespace collapsed.
func NormalizeTitleKey(title string) string {
	key := strings.ToLower(title)
	key = nonAlnum.ReplaceAllString(key, " ")
	return strings.Join(strings.Fields(key), " ")
}
