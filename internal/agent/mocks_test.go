package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uxagent/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks schemas.LLMClient.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Oracle Mock --

// MockOracle mocks the Oracle port.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Decide(ctx context.Context, observation, goal string, history []schemas.HistoryRecord) (schemas.Decision, error) {
	// History is copied so later appends by the loop do not rewrite recorded calls.
	snapshot := append([]schemas.HistoryRecord(nil), history...)
	args := m.Called(ctx, observation, goal, snapshot)
	return args.Get(0).(schemas.Decision), args.Error(1)
}

// -- Recorder Mock --

type memoryRecorder struct {
	mu      sync.Mutex
	entries []schemas.TranscriptEntry
	err     error
}

func (r *memoryRecorder) Record(_ context.Context, e schemas.TranscriptEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func (r *memoryRecorder) Close() error { return nil }

func (r *memoryRecorder) phases() []schemas.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schemas.Phase, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Phase
	}
	return out
}

// -- Fake Document --

// call is one interaction the fake document received.
type call struct {
	Verb     string
	Selector string
	Arg      string
}

// fakeDocument serves a fixed page and records what the executor did to it.
type fakeDocument struct {
	mu          sync.Mutex
	page        string
	url         string
	calls       []call
	treeReads   int
	treeErr     error
	treeErrOnce bool
	actionErr   error
	loadErr     error
	shots       []string
}

var _ schemas.Document = (*fakeDocument)(nil)

func newFakeDocument(page string) *fakeDocument {
	return &fakeDocument{page: page, url: "https://shop.example/catalog/list"}
}

func (d *fakeDocument) record(verb, selector, arg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call{Verb: verb, Selector: selector, Arg: arg})
	return d.actionErr
}

func (d *fakeDocument) Calls() []call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]call(nil), d.calls...)
}

func (d *fakeDocument) RenderedTree(ctx context.Context) (*html.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.treeReads++
	if d.treeErr != nil {
		err := d.treeErr
		if d.treeErrOnce {
			d.treeErr = nil
		}
		return nil, err
	}
	return html.Parse(strings.NewReader(d.page))
}

func (d *fakeDocument) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *fakeDocument) Navigate(ctx context.Context, url string) error {
	if err := d.record("navigate", "", url); err != nil {
		return err
	}
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
	return nil
}

func (d *fakeDocument) WaitLoad(ctx context.Context, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call{Verb: "wait_load", Arg: timeout.String()})
	return d.loadErr
}

func (d *fakeDocument) Click(ctx context.Context, selector string) error {
	return d.record("click", selector, "")
}

func (d *fakeDocument) Fill(ctx context.Context, selector, value string) error {
	return d.record("fill", selector, value)
}

func (d *fakeDocument) Type(ctx context.Context, selector, text string) error {
	return d.record("type", selector, text)
}

func (d *fakeDocument) Press(ctx context.Context, selector, key string) error {
	return d.record("press", selector, key)
}

func (d *fakeDocument) Screenshot(ctx context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	d.shots = append(d.shots, path)
	return nil
}

func (d *fakeDocument) Close(ctx context.Context) error { return nil }

// interactions drops the load waits, which every cycle performs.
func interactions(calls []call) []call {
	var out []call
	for _, c := range calls {
		if c.Verb != "wait_load" {
			out = append(out, c)
		}
	}
	return out
}

var errEngine = errors.New("element is not interactable")
