// browser/dom/alerts.go
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

const (
	AlertHeader    = "=== ALERTS ==="
	AlertSeparator = "==============="
)

var alertClassTokens = []string{"alert", "toast", "notification", "snackbar"}

// ExtractAlerts scans for transient notification elements and returns their
// flattened texts in document order. Once a subtree matches it is not scanned
// again, and repeated texts are kept only at their first occurrence.
func ExtractAlerts(root *html.Node) []string {
	if root == nil {
		return nil
	}
	var alerts []string
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if classOf(n) == Excluded {
				return
			}
			if isAlertElement(n) {
				if text := FullText(n); text != "" && !seen[text] {
					seen[text] = true
					alerts = append(alerts, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return alerts
}

// RenderAlerts formats alerts as the block that leads an observation.
// No alerts render as no lines at all.
func RenderAlerts(alerts []string) []string {
	if len(alerts) == 0 {
		return nil
	}
	lines := make([]string, 0, len(alerts)+2)
	lines = append(lines, AlertHeader)
	for _, a := range alerts {
		lines = append(lines, "- "+a)
	}
	return append(lines, AlertSeparator)
}

func isAlertElement(n *html.Node) bool {
	return isPositionedAlert(n) || isToastListItem(n) || isToastRoot(n)
}

// isPositionedAlert matches alert-like containers pinned over the page.
func isPositionedAlert(n *html.Node) bool {
	role := strings.ToLower(strings.TrimSpace(attrValue(n, "role")))
	alertLike := role == "alert" || role == "alertdialog"
	tokens := classTokens(n)
	if !alertLike {
		alertLike = hasAnyToken(tokens, alertClassTokens...)
	}
	if !alertLike {
		return false
	}
	style := strings.ReplaceAll(strings.ToLower(attrValue(n, "style")), " ", "")
	if strings.Contains(style, "position:fixed") || strings.Contains(style, "position:absolute") {
		return true
	}
	return hasAnyToken(tokens, "fixed", "absolute")
}

func isToastListItem(n *html.Node) bool {
	if !isElement(n, "li") {
		return false
	}
	if _, ok := attr(n, "data-sonner-toast"); ok {
		return true
	}
	p := n.Parent
	if isElement(p, "ol") || isElement(p, "ul") {
		return strings.Contains(strings.ToLower(attrValue(p, "class")), "toast")
	}
	return false
}

func isToastRoot(n *html.Node) bool {
	if _, ok := attr(n, "data-radix-toast-root"); ok {
		return true
	}
	if _, ok := attr(n, "data-toast-root"); ok {
		return true
	}
	return hasAnyToken(classTokens(n), "toast-root")
}

func hasAnyToken(tokens []string, want ...string) bool {
	for _, t := range tokens {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}
