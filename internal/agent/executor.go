// internal/agent/executor.go
package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/browser/dom"
)

// Verbs understood by the Executor.
const (
	VerbGoto        = "goto"
	VerbClick       = "click"
	VerbFill        = "fill"
	VerbType        = "type"
	VerbPress       = "press"
	VerbWait        = "wait"
	VerbWaitForLoad = "wait_for_load"
)

// DefaultWait is the delay used by "wait" when no timeout is given.
const DefaultWait = time.Second

// verbHandler runs one verb against the document.
type verbHandler func(ctx context.Context, doc schemas.Document, params schemas.Params) error

// Executor applies intents to a live document. Locators are resolved against a
// freshly rendered tree on every call.
type Executor struct {
	logger      *zap.Logger
	resolver    dom.ResolverOptions
	loadTimeout time.Duration
	handlers    map[string]verbHandler
}

// NewExecutor creates an Executor. loadTimeout bounds the wait after goto and
// the default for wait_for_load; zero leaves it to the document.
func NewExecutor(logger *zap.Logger, resolver dom.ResolverOptions, loadTimeout time.Duration) *Executor {
	e := &Executor{
		logger:      logger.Named("executor"),
		resolver:    resolver,
		loadTimeout: loadTimeout,
	}
	e.handlers = map[string]verbHandler{
		VerbGoto:        e.handleGoto,
		VerbClick:       e.handleClick,
		VerbFill:        e.handleFill,
		VerbType:        e.handleType,
		VerbPress:       e.handlePress,
		VerbWait:        e.handleWait,
		VerbWaitForLoad: e.handleWaitForLoad,
	}
	return e
}

// Verbs lists the verbs the executor accepts.
func (e *Executor) Verbs() []string {
	return []string{VerbGoto, VerbClick, VerbFill, VerbType, VerbPress, VerbWait, VerbWaitForLoad}
}

// Execute runs intent against doc. Required parameters are checked before any
// locator resolution or page interaction takes place.
func (e *Executor) Execute(ctx context.Context, doc schemas.Document, intent schemas.Intent) error {
	verb := strings.ToLower(strings.TrimSpace(intent.Name))
	handler, ok := e.handlers[verb]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedVerb, intent.Name)
	}
	params := intent.Params
	if params == nil {
		params = schemas.Params{}
	}

	e.logger.Debug("Executing intent.", zap.String("verb", verb), zap.Any("params", params))
	if err := handler(ctx, doc, params); err != nil {
		return fmt.Errorf("%s: %w", verb, err)
	}
	return nil
}

func (e *Executor) handleGoto(ctx context.Context, doc schemas.Document, p schemas.Params) error {
	raw, ok := p.Get(schemas.ParamURL)
	if !ok {
		return fmt.Errorf("%w: url", ErrMissingRequiredParam)
	}
	target, err := e.absoluteURL(ctx, doc, raw)
	if err != nil {
		return err
	}
	if err := doc.Navigate(ctx, target); err != nil {
		return err
	}
	return doc.WaitLoad(ctx, e.loadTimeout)
}

// absoluteURL resolves raw against the current location when it is relative.
func (e *Executor) absoluteURL(ctx context.Context, doc schemas.Document, raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	current, err := doc.URL(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving relative url %q: %w", raw, err)
	}
	base, err := url.Parse(current)
	if err != nil || !base.IsAbs() {
		return "", fmt.Errorf("cannot resolve %q against current location %q", raw, current)
	}
	return base.ResolveReference(ref).String(), nil
}

func (e *Executor) handleClick(ctx context.Context, doc schemas.Document, p schemas.Params) error {
	el, err := e.resolve(ctx, doc, VerbClick, p)
	if err != nil {
		return err
	}
	return doc.Click(ctx, el.XPath)
}

func (e *Executor) handleFill(ctx context.Context, doc schemas.Document, p schemas.Params) error {
	if !p.Present(schemas.ParamValue) {
		return fmt.Errorf("%w: value", ErrMissingRequiredParam)
	}
	value, _ := p.Get(schemas.ParamValue)
	el, err := e.resolve(ctx, doc, VerbFill, p)
	if err != nil {
		return err
	}
	return doc.Fill(ctx, el.XPath, value)
}

func (e *Executor) handleType(ctx context.Context, doc schemas.Document, p schemas.Params) error {
	value, ok := p.Get(schemas.ParamValue)
	if !ok {
		return fmt.Errorf("%w: value", ErrMissingRequiredParam)
	}
	el, err := e.resolve(ctx, doc, VerbType, p)
	if err != nil {
		return err
	}
	return doc.Type(ctx, el.XPath, value)
}

// handlePress sends key to the located element, or to the focused element
// when the intent names no locator.
func (e *Executor) handlePress(ctx context.Context, doc schemas.Document, p schemas.Params) error {
	key, ok := p.Get(schemas.ParamKey)
	if !ok {
		return fmt.Errorf("%w: key", ErrMissingRequiredParam)
	}
	if !dom.HasLocator(p) {
		return doc.Press(ctx, "", key)
	}
	el, err := e.resolve(ctx, doc, VerbPress, p)
	if err != nil {
		return err
	}
	return doc.Press(ctx, el.XPath, key)
}

func (e *Executor) handleWait(ctx context.Context, _ schemas.Document, p schemas.Params) error {
	d, ok, err := p.Millis(schemas.ParamTimeout)
	if err != nil {
		return err
	}
	if !ok {
		d = DefaultWait
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) handleWaitForLoad(ctx context.Context, doc schemas.Document, p schemas.Params) error {
	d, ok, err := p.Millis(schemas.ParamTimeout)
	if err != nil {
		return err
	}
	if !ok {
		d = e.loadTimeout
	}
	return doc.WaitLoad(ctx, d)
}

func (e *Executor) resolve(ctx context.Context, doc schemas.Document, verb string, p schemas.Params) (*dom.Element, error) {
	if !dom.HasLocator(p) {
		return nil, dom.ErrNoLocatorSpecified
	}
	tree, err := doc.RenderedTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading page for %s: %w", verb, err)
	}
	el, err := dom.NewResolver(tree, e.resolver).Resolve(verb, p)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Resolved target.",
		zap.String("verb", verb),
		zap.String("strategy", string(el.Strategy)),
		zap.String("xpath", el.XPath))
	return el, nil
}
