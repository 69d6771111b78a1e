// browser/dom/text.go
package dom

import (
	"hash"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MaxTextRunes bounds the text excerpt carried by a single observation line.
const MaxTextRunes = 120

// CollapseWhitespace trims s and folds every whitespace run into a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes cuts s to at most n runes. n <= 0 leaves s untouched.
func TruncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// FullText joins every descendant text run with spaces and collapses the
// result. Excluded subtrees never contribute, pruned or not.
func FullText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			parts = append(parts, c.Data)
			return
		case html.ElementNode:
			if classOf(c) == Excluded {
				return
			}
		case html.CommentNode:
			return
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return CollapseWhitespace(strings.Join(parts, " "))
}

// DirectText collapses only the text nodes that are immediate children of n.
func DirectText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			parts = append(parts, c.Data)
		}
	}
	return CollapseWhitespace(strings.Join(parts, " "))
}

// lineText applies the per-class extraction policy and the excerpt bound.
func lineText(n *html.Node) string {
	var s string
	switch {
	case hasFullText(n):
		s = FullText(n)
	case isElement(n, "input"):
	default:
		// Containers, and actionable tags of no particular class.
		s = DirectText(n)
	}
	return TruncateRunes(s, MaxTextRunes)
}

func attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func attrValue(n *html.Node, key string) string {
	v, _ := attr(n, key)
	return v
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

func classTokens(n *html.Node) []string {
	return strings.Fields(strings.ToLower(attrValue(n, "class")))
}

var hasherPool = sync.Pool{
	New: func() interface{} { return fnv.New64a() },
}

// Fingerprint returns a short stable hash of an observation, used to reference
// it from transcripts without storing the full text.
func Fingerprint(text string) string {
	hasher := hasherPool.Get().(hash.Hash64)
	defer func() {
		hasher.Reset()
		hasherPool.Put(hasher)
	}()
	_, _ = hasher.Write([]byte(text))
	return strconv.FormatUint(hasher.Sum64(), 16)
}
