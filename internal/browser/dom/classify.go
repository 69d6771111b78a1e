// browser/dom/classify.go
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// TagClass drives both the rendering decision and the text extraction policy
// for a node. Every tag maps to exactly one class.
type TagClass int

const (
	// Plain nodes are transparent: never rendered, children still walked.
	Plain TagClass = iota
	// Excluded nodes are removed from the tree, subtree included, before the walk.
	Excluded
	// FormControl nodes are force-deep: rendered regardless of the depth cutoff.
	FormControl
	// Content nodes render the full text of their subtree.
	Content
	// Container nodes render only their direct text children.
	Container
)

func (c TagClass) String() string {
	switch c {
	case Excluded:
		return "excluded"
	case FormControl:
		return "form_control"
	case Content:
		return "content"
	case Container:
		return "container"
	default:
		return "plain"
	}
}

var tagClasses = map[string]TagClass{
	// Noise.
	"script": Excluded, "style": Excluded, "link": Excluded, "meta": Excluded,
	"noscript": Excluded, "svg": Excluded, "path": Excluded,

	// Forms stay visible no matter how deep the layout nests them.
	"label": FormControl, "input": FormControl, "textarea": FormControl,
	"select": FormControl, "button": FormControl,

	"h1": Content, "h2": Content, "h3": Content, "h4": Content, "h5": Content, "h6": Content,
	"p": Content, "span": Content, "a": Content, "strong": Content, "em": Content, "small": Content,
	"img": Content, "video": Content, "audio": Content,

	"header": Container, "nav": Container, "main": Container, "section": Container,
	"article": Container, "aside": Container, "footer": Container, "form": Container,
	"div": Container, "ul": Container, "ol": Container, "li": Container,
	"table": Container, "thead": Container, "tbody": Container, "tr": Container,
	"td": Container, "th": Container, "dialog": Container, "fieldset": Container,
}

// Classify maps a tag name to its class. Unknown tags are Plain.
func Classify(tag string) TagClass {
	if c, ok := tagClasses[strings.ToLower(tag)]; ok {
		return c
	}
	return Plain
}

func classOf(n *html.Node) TagClass {
	if n == nil || n.Type != html.ElementNode {
		return Plain
	}
	return Classify(n.Data)
}

// IsForceDeep reports whether the tag is rendered even past the depth cutoff.
func IsForceDeep(tag string) bool {
	return Classify(tag) == FormControl
}

// hasFullText reports whether a node's line carries its whole subtree text.
func hasFullText(n *html.Node) bool {
	switch classOf(n) {
	case Content:
		return true
	case FormControl:
		return !strings.EqualFold(n.Data, "input")
	}
	return false
}
