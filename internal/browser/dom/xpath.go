// browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// GenerateUniqueXPath generates an XPath expression that selects exactly node
// in its tree. Ids are used as anchors when they are unique, which keeps paths
// short and stable against sibling churn above the anchor.
func GenerateUniqueXPath(node *html.Node) string {
	if node == nil {
		return ""
	}
	root := node
	for root.Parent != nil {
		root = root.Parent
	}

	var path []string
	anchored := false
	// Traverse up the tree from the node to the root.
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		if id := htmlquery.SelectAttr(n, "id"); id != "" && uniqueID(root, id) {
			path = append(path, "//*[@id="+xpathLiteral(id)+"]")
			anchored = true
			break
		}

		// XPath indices are 1-based and count same-tag siblings only.
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	xpath := strings.Join(path, "/")
	if !anchored {
		xpath = "/" + xpath
	}
	return xpath
}

func uniqueID(root *html.Node, id string) bool {
	nodes, err := htmlquery.QueryAll(root, "//*[@id="+xpathLiteral(id)+"]")
	return err == nil && len(nodes) == 1
}

// xpathLiteral quotes s as an XPath 1.0 string literal. Strings holding both
// quote kinds are spelled with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	args := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if p != "" {
			args = append(args, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
