package dom_test

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// parse builds a fresh tree for every call, the way each observation cycle does.
func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := htmlquery.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func find(t *testing.T, doc *html.Node, expr string) *html.Node {
	t.Helper()
	n := htmlquery.FindOne(doc, expr)
	require.NotNil(t, n, "test setup: nothing matches %s", expr)
	return n
}
