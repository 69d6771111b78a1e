// browser/dom/compiler.go
package dom

import (
	"strings"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// TruncationMarker is appended when an observation exceeds its character budget.
const TruncationMarker = "\n... (truncated)"

// Options control how a tree is compiled into an observation.
type Options struct {
	// MaxDepth is the deepest level, counted from the body, at which
	// non-force-deep elements are still rendered.
	MaxDepth int
	// MaxChars caps the observation in runes. Zero disables truncation.
	MaxChars int
	// TestHookAttribute names the explicit test hook attribute.
	TestHookAttribute string
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxDepth:          8,
		MaxChars:          0,
		TestHookAttribute: DefaultTestHookAttribute,
	}
}

func (o Options) hookAttr() string {
	if o.TestHookAttribute == "" {
		return DefaultTestHookAttribute
	}
	return o.TestHookAttribute
}

// Attr is a rendered key=value pair.
type Attr struct {
	Key string
	Val string
}

// Line is one rendered node of the observation.
type Line struct {
	Depth int
	Tag   string
	AID   string
	Attrs []Attr
	Text  string
}

// String renders the line as `<indent><tag k=v ...> text`.
func (l Line) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", l.Depth))
	sb.WriteByte('<')
	sb.WriteString(l.Tag)
	for _, a := range l.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Key)
		sb.WriteByte('=')
		sb.WriteString(a.Val)
	}
	sb.WriteString("> ")
	sb.WriteString(l.Text)
	return strings.TrimRight(sb.String(), " \t")
}

// Observation is the compiled snapshot handed to the oracle. It is not
// modified after Compile returns.
type Observation struct {
	Text      string
	Alerts    []string
	Lines     []Line
	Index     *ActionableIndex
	Truncated bool
}

// Fingerprint identifies the observation text.
func (o *Observation) Fingerprint() string {
	if o == nil {
		return ""
	}
	return Fingerprint(o.Text)
}

// Prune removes excluded elements and their subtrees from the tree in place.
func Prune(root *html.Node) {
	if root == nil {
		return
	}
	var next *html.Node
	for c := root.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if classOf(c) == Excluded {
			root.RemoveChild(c)
			continue
		}
		Prune(c)
	}
}

// Compile prunes root, indexes it, extracts alerts, and renders the observation.
// It never fails: nil or malformed trees produce fewer lines.
func Compile(root *html.Node, opts Options) *Observation {
	Prune(root)
	ix := Index(root, opts.hookAttr())
	alerts := ExtractAlerts(root)
	lines := Render(root, ix, opts)

	out := make([]string, 0, len(lines)+len(alerts)+2)
	out = append(out, RenderAlerts(alerts)...)
	for _, l := range lines {
		out = append(out, l.String())
	}
	text, truncated := Truncate(strings.Join(out, "\n"), opts.MaxChars)
	return &Observation{
		Text:      text,
		Alerts:    alerts,
		Lines:     lines,
		Index:     ix,
		Truncated: truncated,
	}
}

// Truncate cuts s to maxChars runes and appends the marker when it was longer.
func Truncate(s string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	return TruncateRunes(s, maxChars) + TruncationMarker, true
}

// WalkRoot returns the node the walk starts from: the body if present, else root.
func WalkRoot(root *html.Node) *html.Node {
	if root == nil {
		return nil
	}
	if isElement(root, "body") {
		return root
	}
	if body := htmlquery.FindOne(root, "//body"); body != nil {
		return body
	}
	return root
}

// Render walks the tree from its body and produces the body lines. The start
// node sits at depth 0 and is never rendered itself.
func Render(root *html.Node, ix *ActionableIndex, opts Options) []Line {
	start := WalkRoot(root)
	if start == nil {
		return nil
	}
	r := &renderer{ix: ix, opts: opts}
	for c := start.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c, 1, false)
	}
	return r.lines
}

type renderer struct {
	ix    *ActionableIndex
	opts  Options
	lines []Line
}

func (r *renderer) walk(n *html.Node, depth int, inContent bool) {
	if n.Type != html.ElementNode {
		return
	}
	class := classOf(n)
	if class == Excluded {
		return
	}
	aid, actionable := r.ix.ID(n)

	if r.shouldRender(class, actionable, depth, inContent) {
		line := r.buildLine(n, depth, aid)
		// Empty containers are noise; their children are still walked.
		if class != Container || line.AID != "" || line.Text != "" {
			r.lines = append(r.lines, line)
		}
	}

	childInContent := inContent || hasFullText(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c, depth+1, childInContent)
	}
}

func (r *renderer) shouldRender(class TagClass, actionable bool, depth int, inContent bool) bool {
	if class == FormControl {
		return true
	}
	if depth > r.opts.MaxDepth {
		return false
	}
	if inContent {
		return actionable
	}
	return actionable || class == Content || class == Container
}

func (r *renderer) buildLine(n *html.Node, depth int, aid string) Line {
	tag := strings.ToLower(n.Data)
	line := Line{Depth: depth, Tag: tag, AID: aid, Text: lineText(n)}

	add := func(key string) {
		if v, ok := attr(n, key); ok {
			if v = CollapseWhitespace(v); v != "" {
				line.Attrs = append(line.Attrs, Attr{Key: key, Val: v})
			}
		}
	}

	if aid != "" {
		line.Attrs = append(line.Attrs, Attr{Key: "aid", Val: aid})
	}
	add("href")
	switch tag {
	case "img":
		add("alt")
	case "input", "textarea", "select":
		add("type")
		add("id")
		add("placeholder")
		add("value")
	case "label":
		add("for")
	}
	add(r.opts.hookAttr())
	return line
}
