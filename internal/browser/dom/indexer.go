// browser/dom/indexer.go
package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// DefaultTestHookAttribute is the attribute used for explicit test hooks.
const DefaultTestHookAttribute = "data-testid"

// actionableRoles are ARIA roles that make an element a candidate for interaction.
var actionableRoles = map[string]bool{
	"button": true, "link": true, "tab": true, "checkbox": true, "radio": true,
	"switch": true, "menuitem": true, "menuitemcheckbox": true, "menuitemradio": true,
	"option": true, "combobox": true, "textbox": true, "searchbox": true,
	"slider": true, "spinbutton": true, "treeitem": true,
}

// ActionableIndex maps nodes of one tree to their per-pass ids.
// Ids are only meaningful for the tree they were assigned on.
type ActionableIndex struct {
	ids   map[*html.Node]string
	nodes []*html.Node
}

// ID returns the actionable id assigned to n, if any.
func (ix *ActionableIndex) ID(n *html.Node) (string, bool) {
	if ix == nil {
		return "", false
	}
	id, ok := ix.ids[n]
	return id, ok
}

// Len is the number of actionable nodes found.
func (ix *ActionableIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.nodes)
}

// Nodes returns the actionable nodes in id order.
func (ix *ActionableIndex) Nodes() []*html.Node {
	if ix == nil {
		return nil
	}
	out := make([]*html.Node, len(ix.nodes))
	copy(out, ix.nodes)
	return out
}

// Lookup returns the node carrying the given id.
func (ix *ActionableIndex) Lookup(id string) (*html.Node, bool) {
	if ix == nil || !strings.HasPrefix(id, "aid-") {
		return nil, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, "aid-"))
	if err != nil || n < 1 || n > len(ix.nodes) {
		return nil, false
	}
	return ix.nodes[n-1], true
}

// Index walks the tree in document order and assigns aid-1, aid-2, ... to every
// actionable element. Each node is numbered once regardless of how many
// predicates it satisfies. The tree is not modified.
func Index(root *html.Node, hookAttr string) *ActionableIndex {
	if hookAttr == "" {
		hookAttr = DefaultTestHookAttribute
	}
	ix := &ActionableIndex{ids: make(map[*html.Node]string)}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && IsActionable(n, hookAttr) {
			ix.nodes = append(ix.nodes, n)
			ix.ids[n] = "aid-" + strconv.Itoa(len(ix.nodes))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return ix
}

// IsActionable reports whether an element satisfies any actionable predicate.
func IsActionable(n *html.Node, hookAttr string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch strings.ToLower(n.Data) {
	case "a":
		if _, ok := attr(n, "href"); ok {
			return true
		}
	case "button", "input", "textarea", "select":
		return true
	case "label":
		if _, ok := attr(n, "for"); ok {
			return true
		}
	}
	if hookAttr != "" {
		if _, ok := attr(n, hookAttr); ok {
			return true
		}
	}
	role := strings.ToLower(strings.TrimSpace(attrValue(n, "role")))
	return actionableRoles[role]
}
