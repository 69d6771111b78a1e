package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/config"
)

// fakeDocument serves a fixed page.
type fakeDocument struct {
	mu        sync.Mutex
	page      string
	navigated []string
	clicks    []string
	closed    bool
	navErr    error
}

func (d *fakeDocument) RenderedTree(context.Context) (*html.Node, error) {
	return html.Parse(strings.NewReader(d.page))
}

func (d *fakeDocument) URL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.navigated) == 0 {
		return "about:blank", nil
	}
	return d.navigated[len(d.navigated)-1], nil
}

func (d *fakeDocument) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.navErr != nil {
		return d.navErr
	}
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDocument) WaitLoad(context.Context, time.Duration) error { return nil }

func (d *fakeDocument) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks = append(d.clicks, selector)
	return nil
}

func (d *fakeDocument) Fill(context.Context, string, string) error  { return nil }
func (d *fakeDocument) Type(context.Context, string, string) error  { return nil }
func (d *fakeDocument) Press(context.Context, string, string) error { return nil }
func (d *fakeDocument) Screenshot(context.Context, string) error    { return nil }

func (d *fakeDocument) Close(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// scriptedClient answers Generate with the next canned reply.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	prompts []string
}

func (c *scriptedClient) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, req.UserPrompt)
	if len(c.replies) == 0 {
		return `{"thought":"out of script","action":{"name":"finish","params":{"reason":"script exhausted"}}}`, nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *scriptedClient) Close() error { return nil }

const shopPage = `<html><head><title>Shop</title></head><body>
<h1>Deals</h1>
<button data-testid="buy">Buy Now</button>
</body></html>`

// stubDependencies replaces the browser and the model for one test.
func stubDependencies(t *testing.T, doc *fakeDocument, client *scriptedClient) {
	t.Helper()
	origDoc, origClient := openDocument, newLLMClient
	openDocument = func(context.Context, config.BrowserConfig, *zap.Logger) (schemas.Document, error) {
		return doc, nil
	}
	newLLMClient = func(config.LLMConfig, *zap.Logger) (schemas.LLMClient, error) {
		return client, nil
	}
	t.Cleanup(func() { openDocument, newLLMClient = origDoc, origClient })
}

// writeConfig writes a config file tuned for fast tests and returns its path.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	content := `
logger:
  level: error
agent:
  max_steps: 4
  post_action_wait: 0s
  observe_retry: 0s
  screenshot_path: ""
transcript:
  path: ` + filepath.Join(dir, "transcript.jsonl") + `
` + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// executeCommand runs a fresh command tree and captures its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}
