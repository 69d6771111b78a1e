// browser/dom/resolver.go
package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uxagent/api/schemas"
)

// Strategy names the rule of the priority chain that produced an element.
type Strategy string

const (
	StrategyTestID        Strategy = "data-testid"
	StrategyLabelOverride Strategy = "label_override"
	StrategyLabel         Strategy = "label"
	StrategyPlaceholder   Strategy = "placeholder"
	StrategyRole          Strategy = "role"
	StrategyText          Strategy = "text"
	StrategySelector      Strategy = "selector"
)

// Element is a resolved locator: the node in the parsed tree plus an XPath the
// browser can use to find the same element.
type Element struct {
	Node     *html.Node
	XPath    string
	Strategy Strategy
}

// LabelOverride routes a label sent with a given verb straight to a test hook.
// Use it when an oracle predictably names a control by free text that has a
// more stable hook.
type LabelOverride struct {
	Verb   string `mapstructure:"verb" yaml:"verb"`
	Label  string `mapstructure:"label" yaml:"label"`
	TestID string `mapstructure:"test_id" yaml:"test_id"`
}

// ResolverOptions configure a Resolver.
type ResolverOptions struct {
	TestHookAttribute string
	LabelOverrides    []LabelOverride
}

// Resolver maps loosely specified intents onto a single element of one tree.
type Resolver struct {
	root *html.Node
	hook string
	opts ResolverOptions
}

// NewResolver creates a resolver over a parsed document tree.
func NewResolver(root *html.Node, opts ResolverOptions) *Resolver {
	hook := opts.TestHookAttribute
	if hook == "" {
		hook = DefaultTestHookAttribute
	}
	return &Resolver{root: root, hook: hook, opts: opts}
}

// Resolve applies the priority chain to params. The first present key decides
// the strategy and lower keys are ignored. Text lookups pick the first match in
// document order; every other strategy requires exactly one match.
func (r *Resolver) Resolve(verb string, params schemas.Params) (*Element, error) {
	if !HasLocator(params) {
		return nil, ErrNoLocatorSpecified
	}
	if r.root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrAmbiguousOrMissingTarget)
	}
	if testID, ok := params.Get(schemas.ParamTestID); ok {
		return r.byTestID(testID, StrategyTestID)
	}
	if testID, ok := params.Get(schemas.ParamTestIDAlias); ok {
		return r.byTestID(testID, StrategyTestID)
	}
	if label, ok := params.Get(schemas.ParamLabel); ok {
		if testID, found := r.override(verb, label); found {
			return r.byTestID(testID, StrategyLabelOverride)
		}
		return r.byLabel(label)
	}
	if placeholder, ok := params.Get(schemas.ParamPlaceholder); ok {
		return r.byPlaceholder(placeholder)
	}
	role, hasRole := params.Get(schemas.ParamRole)
	name, hasName := params.Get(schemas.ParamNameText)
	if hasRole && hasName {
		return r.byRole(role, name)
	}
	if text, ok := params.Get(schemas.ParamText); ok {
		return r.byText(text)
	}
	if selector, ok := params.Get(schemas.ParamSelector); ok {
		return r.bySelector(selector)
	}
	return nil, ErrNoLocatorSpecified
}

// HasLocator reports whether params carry any key of the priority chain.
func HasLocator(params schemas.Params) bool {
	for _, key := range []string{
		schemas.ParamTestID, schemas.ParamTestIDAlias, schemas.ParamLabel,
		schemas.ParamPlaceholder, schemas.ParamText, schemas.ParamSelector,
	} {
		if params.Has(key) {
			return true
		}
	}
	return params.Has(schemas.ParamRole) && params.Has(schemas.ParamNameText)
}

func (r *Resolver) override(verb, label string) (string, bool) {
	label = CollapseWhitespace(label)
	for _, o := range r.opts.LabelOverrides {
		if strings.EqualFold(o.Verb, verb) && strings.EqualFold(CollapseWhitespace(o.Label), label) && o.TestID != "" {
			return o.TestID, true
		}
	}
	return "", false
}

func (r *Resolver) byTestID(testID string, strategy Strategy) (*Element, error) {
	nodes, err := htmlquery.QueryAll(r.root, "//*[@"+r.hook+"="+xpathLiteral(testID)+"]")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid test hook attribute %q: %v", ErrAmbiguousOrMissingTarget, r.hook, err)
	}
	return r.unique(visible(nodes), strategy, fmt.Sprintf("%s=%q", r.hook, testID))
}

func (r *Resolver) byLabel(label string) (*Element, error) {
	want := CollapseWhitespace(label)
	collect := func(match func(string) bool) []*html.Node {
		var controls []*html.Node
		seen := make(map[*html.Node]bool)
		add := func(c *html.Node) {
			if c != nil && !seen[c] && !isHidden(c) {
				seen[c] = true
				controls = append(controls, c)
			}
		}
		r.each(func(n *html.Node) {
			switch {
			case isElement(n, "label"):
				if match(FullText(n)) {
					add(LabeledControl(n))
				}
			case isLabelable(n) && !isElement(n, "button"):
				if match(CollapseWhitespace(attrValue(n, "aria-label"))) {
					add(n)
				}
			}
		})
		return controls
	}

	controls := collect(func(s string) bool { return s != "" && strings.EqualFold(s, want) })
	if len(controls) == 0 {
		lower := strings.ToLower(want)
		controls = collect(func(s string) bool { return s != "" && strings.Contains(strings.ToLower(s), lower) })
	}
	return r.unique(controls, StrategyLabel, fmt.Sprintf("label=%q", label))
}

func (r *Resolver) byPlaceholder(placeholder string) (*Element, error) {
	nodes, err := htmlquery.QueryAll(r.root, "//*[@placeholder="+xpathLiteral(placeholder)+"]")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmbiguousOrMissingTarget, err)
	}
	return r.unique(visible(nodes), StrategyPlaceholder, fmt.Sprintf("placeholder=%q", placeholder))
}

func (r *Resolver) byRole(role, name string) (*Element, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	want := strings.ToLower(CollapseWhitespace(name))

	var exact, partial []*html.Node
	r.each(func(n *html.Node) {
		if Role(n) != role || isHidden(n) {
			return
		}
		got := strings.ToLower(AccessibleName(n))
		switch {
		case got == want:
			exact = append(exact, n)
		case want != "" && strings.Contains(got, want):
			partial = append(partial, n)
		}
	})
	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	return r.unique(matches, StrategyRole, fmt.Sprintf("role=%s name=%q", role, name))
}

// byText returns the first, in document order, of the deepest elements whose
// text matches. Exact matches win over substring matches.
func (r *Resolver) byText(text string) (*Element, error) {
	want := strings.ToLower(CollapseWhitespace(text))
	if want == "" {
		return nil, fmt.Errorf("%w: empty text", ErrAmbiguousOrMissingTarget)
	}
	matches := r.deepest(func(s string) bool { return s == want })
	if len(matches) == 0 {
		matches = r.deepest(func(s string) bool { return strings.Contains(s, want) })
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no element with text %q", ErrAmbiguousOrMissingTarget, text)
	}
	return r.element(matches[0], StrategyText), nil
}

func (r *Resolver) deepest(match func(string) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type != html.ElementNode || classOf(n) == Excluded || isHidden(n) {
			return false
		}
		found := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				found = true
			}
		}
		if found {
			return true
		}
		if match(strings.ToLower(textForMatch(n))) {
			out = append(out, n)
			return true
		}
		return false
	}
	if start := WalkRoot(r.root); start != nil {
		for c := start.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	return out
}

// textForMatch is the visible text of an element, with button-like inputs
// contributing their value.
func textForMatch(n *html.Node) string {
	if isElement(n, "input") && inputRole(n) == "button" {
		return CollapseWhitespace(attrValue(n, "value"))
	}
	return FullText(n)
}

func (r *Resolver) bySelector(selector string) (*Element, error) {
	selector = strings.TrimSpace(selector)
	if expr, ok := strings.CutPrefix(selector, "xpath="); ok {
		return r.byXPath(expr)
	}
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return r.byXPath(selector)
	}
	if css, ok := strings.CutPrefix(selector, "css="); ok {
		selector = css
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid css selector %q: %v", ErrAmbiguousOrMissingTarget, selector, err)
	}
	sel := goquery.NewDocumentFromNode(r.root).FindMatcher(matcher)
	return r.unique(visible(sel.Nodes), StrategySelector, fmt.Sprintf("selector=%q", selector))
}

func (r *Resolver) byXPath(expr string) (*Element, error) {
	nodes, err := htmlquery.QueryAll(r.root, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xpath %q: %v", ErrAmbiguousOrMissingTarget, expr, err)
	}
	var elements []*html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			elements = append(elements, n)
		}
	}
	return r.unique(visible(elements), StrategySelector, fmt.Sprintf("xpath=%q", expr))
}

func (r *Resolver) unique(nodes []*html.Node, strategy Strategy, desc string) (*Element, error) {
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("%w: no element matches %s", ErrAmbiguousOrMissingTarget, desc)
	case 1:
		return r.element(nodes[0], strategy), nil
	default:
		return nil, fmt.Errorf("%w: %d elements match %s", ErrAmbiguousOrMissingTarget, len(nodes), desc)
	}
}

func (r *Resolver) element(n *html.Node, strategy Strategy) *Element {
	return &Element{Node: n, XPath: GenerateUniqueXPath(n), Strategy: strategy}
}

func (r *Resolver) each(fn func(*html.Node)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			fn(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if r.root != nil {
		walk(r.root)
	}
}

func visible(nodes []*html.Node) []*html.Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if !isHidden(n) {
			out = append(out, n)
		}
	}
	return out
}

func isHiddenInput(n *html.Node) bool {
	return isElement(n, "input") && strings.EqualFold(strings.TrimSpace(attrValue(n, "type")), "hidden")
}

// isHidden reports whether the element or one of its ancestors is marked hidden
// in markup. Computed styles are not available on a parsed tree.
func isHidden(n *html.Node) bool {
	if isHiddenInput(n) {
		return true
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := attr(p, "hidden"); ok {
			return true
		}
		if strings.EqualFold(strings.TrimSpace(attrValue(p, "aria-hidden")), "true") {
			return true
		}
		style := strings.ReplaceAll(strings.ToLower(attrValue(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}
