// browser/dom/roles.go
package dom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Role returns the ARIA role of an element: the first token of an explicit
// role attribute, else the implicit role of its tag. Empty when it has none.
func Role(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if fields := strings.Fields(strings.ToLower(attrValue(n, "role"))); len(fields) > 0 {
		return fields[0]
	}
	switch strings.ToLower(n.Data) {
	case "a", "area":
		if _, ok := attr(n, "href"); ok {
			return "link"
		}
	case "button":
		return "button"
	case "input":
		return inputRole(n)
	case "textarea":
		return "textbox"
	case "select":
		if _, multi := attr(n, "multiple"); multi {
			return "listbox"
		}
		return "combobox"
	case "option":
		return "option"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "img":
		if attrValue(n, "alt") != "" {
			return "img"
		}
	case "nav":
		return "navigation"
	case "main":
		return "main"
	case "header":
		return "banner"
	case "footer":
		return "contentinfo"
	case "aside":
		return "complementary"
	case "section":
		return "region"
	case "article":
		return "article"
	case "form":
		return "form"
	case "dialog":
		return "dialog"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	case "table":
		return "table"
	case "tr":
		return "row"
	case "td":
		return "cell"
	case "th":
		return "columnheader"
	}
	return ""
}

func inputRole(n *html.Node) string {
	switch strings.ToLower(strings.TrimSpace(attrValue(n, "type"))) {
	case "button", "submit", "reset", "image":
		return "button"
	case "checkbox":
		return "checkbox"
	case "radio":
		return "radio"
	case "range":
		return "slider"
	case "number":
		return "spinbutton"
	case "search":
		return "searchbox"
	case "hidden", "file", "color", "date", "datetime-local", "month", "time", "week", "password":
		return ""
	default:
		if _, ok := attr(n, "list"); ok {
			return "combobox"
		}
		return "textbox"
	}
}

// AccessibleName approximates the accessible name computation: labelledby,
// aria-label, associated labels, then the element's own content and hints.
func AccessibleName(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	root := treeRoot(n)
	if ids := strings.Fields(attrValue(n, "aria-labelledby")); len(ids) > 0 {
		var parts []string
		for _, id := range ids {
			if ref := findByID(root, id); ref != nil {
				parts = append(parts, FullText(ref))
			}
		}
		if name := CollapseWhitespace(strings.Join(parts, " ")); name != "" {
			return name
		}
	}
	if name := CollapseWhitespace(attrValue(n, "aria-label")); name != "" {
		return name
	}
	if isLabelable(n) {
		if name := CollapseWhitespace(strings.Join(labelTexts(root, n), " ")); name != "" {
			return name
		}
	}
	tag := strings.ToLower(n.Data)
	switch {
	case tag == "input" && inputRole(n) == "button":
		if v := CollapseWhitespace(attrValue(n, "value")); v != "" {
			return v
		}
	case tag == "img":
		if alt := CollapseWhitespace(attrValue(n, "alt")); alt != "" {
			return alt
		}
	case tag != "input" && tag != "textarea" && tag != "select":
		if text := FullText(n); text != "" {
			return text
		}
	}
	if title := CollapseWhitespace(attrValue(n, "title")); title != "" {
		return title
	}
	return CollapseWhitespace(attrValue(n, "placeholder"))
}

func isLabelable(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "input", "textarea", "select", "button", "meter", "output", "progress":
		return true
	}
	return false
}

// labelTexts returns the texts of labels that name control, either through a
// for attribute or by wrapping it.
func labelTexts(root, control *html.Node) []string {
	var texts []string
	if id := attrValue(control, "id"); id != "" {
		for _, l := range htmlquery.Find(root, "//label[@for="+xpathLiteral(id)+"]") {
			texts = append(texts, FullText(l))
		}
	}
	for p := control.Parent; p != nil; p = p.Parent {
		if isElement(p, "label") {
			if _, hasFor := attr(p, "for"); !hasFor {
				texts = append(texts, FullText(p))
			}
			break
		}
	}
	return texts
}

// LabeledControl returns the form control a label names.
func LabeledControl(label *html.Node) *html.Node {
	if !isElement(label, "label") {
		return nil
	}
	if id, ok := attr(label, "for"); ok {
		if target := findByID(treeRoot(label), id); target != nil && isLabelable(target) {
			return target
		}
		return nil
	}
	return htmlquery.FindOne(label, ".//*[self::input or self::textarea or self::select or self::button]")
}

func findByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	return htmlquery.FindOne(root, "//*[@id="+xpathLiteral(id)+"]")
}

func treeRoot(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}
