package engine

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/anatolykoptev/go-kit/strutil"
	"golang.org/x/net/html"
)

var (
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	htmlLikeRe  = regexp.MustCompile(`(?i)</?(p|div|ul|ol|li|br|h[1-6]|strong|em|span|section)\b`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// CleanHTML strips HTML tags and trims whitespace.
func CleanHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

// LooksLikeHTML reports whether s carries block-level HTML markup,
// as job descriptions copied from ATS boards usually do.
func LooksLikeHTML(s string) bool {
	return htmlLikeRe.MatchString(s)
}

// NormalizeJobDescription converts an HTML job description to markdown.
// Plain text is returned trimmed. Conversion failures fall back to tag stripping.
func NormalizeJobDescription(s string) string {
	if !LooksLikeHTML(s) {
		return strings.TrimSpace(s)
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return CleanHTML(s)
	}
	return strings.TrimSpace(blankRunsRe.ReplaceAllString(md, "\n\n"))
}

// PlainText returns the visible text nodes of an HTML fragment joined by spaces.
// Non-HTML input is returned unchanged.
func PlainText(s string) string {
	if !LooksLikeHTML(s) {
		return s
	}
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return CleanHTML(s)
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(parts, " ")
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// TruncateAtWord truncates a string to maxLen runes at a word boundary.
func TruncateAtWord(s string, maxLen int) string {
	return strutil.TruncateAtWord(s, maxLen)
}
