package dom_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uxagent/internal/browser/dom"
)

const pageHTML = `<html><head><title>Shop</title><script>track()</script><style>p{}</style></head><body>
<header><nav><a href="/home">Home</a></nav></header>
<main>
	<h1>Welcome <em>back</em></h1>
	<div>Intro text<p>Para</p><section>Inner</section></div>
	<form>
		<label for="q">Search</label>
		<input id="q" type="text" placeholder="Find  things">
		<button data-testid="go">Go</button>
	</form>
	<img src="logo.png" alt="Logo">
	<div></div>
	<input type="hidden" name="csrf" value="secret">
</main>
</body></html>`

func TestCompile_Golden(t *testing.T) {
	obs := dom.Compile(parse(t, pageHTML), dom.DefaultOptions())

	want := strings.Join([]string{
		"      <a aid=aid-1 href=/home> Home",
		"    <h1> Welcome back",
		"    <div> Intro text",
		"      <p> Para",
		"      <section> Inner",
		"      <label aid=aid-2 for=q> Search",
		"      <input aid=aid-3 type=text id=q placeholder=Find things>",
		"      <button aid=aid-4 data-testid=go> Go",
		"    <img alt=Logo>",
		"    <input aid=aid-5 type=hidden value=secret>",
	}, "\n")

	if diff := cmp.Diff(want, obs.Text); diff != "" {
		t.Errorf("observation mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, obs.Truncated)
	assert.Empty(t, obs.Alerts)
	assert.Equal(t, 5, obs.Index.Len())
}

func TestCompile_ExcludedSubtreesNeverAppear(t *testing.T) {
	src := `<html><body><div>Keep
		<script>bad()</script>
		<style>.x{}</style>
		<svg><a href="/in-svg">In svg</a></svg>
		<noscript><button>NoScript</button></noscript>
	</div></body></html>`
	obs := dom.Compile(parse(t, src), dom.DefaultOptions())

	assert.Equal(t, "  <div> Keep", obs.Text)
	for _, s := range []string{"bad()", "In svg", "in-svg", "NoScript", ".x{}"} {
		assert.NotContains(t, obs.Text, s)
	}
}

func TestCompile_Idempotent(t *testing.T) {
	opts := dom.DefaultOptions()
	first := dom.Compile(parse(t, pageHTML), opts)
	second := dom.Compile(parse(t, pageHTML), opts)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())

	// Recompiling an already pruned tree changes nothing either.
	doc := parse(t, pageHTML)
	again := dom.Compile(doc, opts)
	assert.Equal(t, again.Text, dom.Compile(doc, opts).Text)
}

func TestCompile_Truncation(t *testing.T) {
	full := dom.Compile(parse(t, pageHTML), dom.DefaultOptions()).Text
	require.Greater(t, utf8.RuneCountInString(full), 40)

	opts := dom.DefaultOptions()
	opts.MaxChars = 40
	obs := dom.Compile(parse(t, pageHTML), opts)

	assert.True(t, obs.Truncated)
	assert.Equal(t, dom.TruncateRunes(full, 40)+dom.TruncationMarker, obs.Text)

	opts.MaxChars = utf8.RuneCountInString(full)
	exact := dom.Compile(parse(t, pageHTML), opts)
	assert.False(t, exact.Truncated)
	assert.Equal(t, full, exact.Text)
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	got, cut := dom.Truncate("ééééé", 3)
	assert.True(t, cut)
	assert.Equal(t, "ééé\n... (truncated)", got)

	got, cut = dom.Truncate("short", 0)
	assert.False(t, cut)
	assert.Equal(t, "short", got)
}

func TestCompile_ContainerVersusContentText(t *testing.T) {
	src := `<html><body><div>Own words<p>Child paragraph</p><section>Nested container</section></div></body></html>`
	obs := dom.Compile(parse(t, src), dom.DefaultOptions())

	want := []string{
		"  <div> Own words",
		"    <p> Child paragraph",
		"    <section> Nested container",
	}
	assert.Equal(t, want, strings.Split(obs.Text, "\n"))
}

func TestCompile_ContentSubtreeOnlyRendersActionables(t *testing.T) {
	src := `<html><body><p>Read <a href="/more">more</a> or <span>stay</span></p></body></html>`
	obs := dom.Compile(parse(t, src), dom.DefaultOptions())

	want := []string{
		"  <p> Read more or stay",
		"    <a aid=aid-1 href=/more> more",
	}
	assert.Equal(t, want, strings.Split(obs.Text, "\n"))
}

func TestCompile_ForceDeep(t *testing.T) {
	src := `<html><body><div>a<div>b<div>c<input id="deep"><div>d</div><p>too deep</p></div></div></div></body></html>`
	opts := dom.DefaultOptions()
	opts.MaxDepth = 2
	obs := dom.Compile(parse(t, src), opts)

	want := []string{
		"  <div> a",
		"    <div> b",
		"        <input aid=aid-1 id=deep>",
	}
	assert.Equal(t, want, strings.Split(obs.Text, "\n"))
}

func TestCompile_ElidesEmptyContainers(t *testing.T) {
	src := `<html><body><div><div><span></span><button></button></div></div></body></html>`
	obs := dom.Compile(parse(t, src), dom.DefaultOptions())

	want := []string{
		"      <span>",
		"      <button aid=aid-1>",
	}
	assert.Equal(t, want, strings.Split(obs.Text, "\n"))
}

func TestCompile_KeepsEmptyContent(t *testing.T) {
	src := `<html><body><h2></h2><img src="x.png"><p> </p><section><div></div></section></body></html>`
	obs := dom.Compile(parse(t, src), dom.DefaultOptions())

	want := []string{
		"  <h2>",
		"  <img>",
		"  <p>",
	}
	assert.Equal(t, want, strings.Split(obs.Text, "\n"))
}

func TestCompile_HiddenInputsAreListed(t *testing.T) {
	src := `<html><body><form><input type="hidden" name="csrf" value="tok"><input id="a"></form></body></html>`
	obs := dom.Compile(parse(t, src), dom.DefaultOptions())

	want := []string{
		"    <input aid=aid-1 type=hidden value=tok>",
		"    <input aid=aid-2 id=a>",
	}
	assert.Equal(t, want, strings.Split(obs.Text, "\n"))
	assert.Equal(t, 2, obs.Index.Len())
}

func TestCompile_TextExcerptBounded(t *testing.T) {
	long := strings.Repeat("word ", 60)
	obs := dom.Compile(parse(t, "<html><body><p>"+long+"</p></body></html>"), dom.DefaultOptions())
	require.Len(t, obs.Lines, 1)
	assert.Equal(t, dom.MaxTextRunes, utf8.RuneCountInString(obs.Lines[0].Text))
}

func TestCompile_AlertScenario(t *testing.T) {
	src := `<html><body>
		<div role="alert" style="position: fixed">Please fill all fields</div>
		<div class="toast fixed">Please fill all fields</div>
		<form><input id="name"></form>
	</body></html>`
	obs := dom.Compile(parse(t, src), dom.DefaultOptions())

	require.True(t, strings.HasPrefix(obs.Text, dom.AlertHeader+"\n- Please fill all fields\n"+dom.AlertSeparator+"\n"))
	assert.Equal(t, 1, strings.Count(obs.Text, "- Please fill all fields"))
	assert.Equal(t, []string{"Please fill all fields"}, obs.Alerts)
}

func TestCompile_NoBodyAndNil(t *testing.T) {
	assert.Equal(t, "", dom.Compile(nil, dom.DefaultOptions()).Text)

	frag := parse(t, `<p>Only</p>`)
	assert.Equal(t, "  <p> Only", dom.Compile(frag, dom.DefaultOptions()).Text)
}

func TestPrune(t *testing.T) {
	doc := parse(t, `<html><head><meta charset="utf-8"><link rel="x"></head><body><p>x<script>y</script></p></body></html>`)
	dom.Prune(doc)
	var b strings.Builder
	require.NoError(t, html.Render(&b, doc))
	out := b.String()
	assert.NotContains(t, out, "<meta")
	assert.NotContains(t, out, "<link")
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "<p>x</p>")
}
