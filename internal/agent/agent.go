// internal/agent/agent.go
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/browser/dom"
	"github.com/xkilldash9x/uxagent/internal/browser/session"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusCompleted           Status = "COMPLETED"
	StatusStepBudgetExhausted Status = "STEP_BUDGET_EXHAUSTED"
	StatusFailed              Status = "FAILED"
)

const screenshotTimeout = 30 * time.Second

// RunResult summarizes a finished run.
type RunResult struct {
	RunID   string
	Status  Status
	Steps   int    // Cycles started, including the one that finished or failed.
	Reason  string // Finish reason from the oracle, or the failure message.
	History []schemas.HistoryRecord
}

// ObservationArchive stores the per-step page captures. It returns a
// reference that is written to the transcript.
type ObservationArchive interface {
	SaveObservation(step int, rawHTML, cleanHTML, summary string) (string, error)
}

// Options tunes the loop.
type Options struct {
	MaxSteps       int
	PostActionWait time.Duration // Settle delay after every action.
	ObserveRetry   time.Duration // Pause after a failed observation.
	LoadTimeout    time.Duration // Bound for the load wait that starts each cycle.
	ScreenshotPath string        // Final screenshot target; empty disables it.
	Compile        dom.Options
}

// Agent runs the observe, decide, act cycle against a single document.
type Agent struct {
	doc      schemas.Document
	oracle   Oracle
	executor *Executor
	recorder schemas.Recorder
	archive  ObservationArchive
	opts     Options
	logger   *zap.Logger

	now      func() time.Time
	newRunID func() string
}

// Option customizes an Agent.
type Option func(*Agent)

// WithRecorder sends transcript entries to r.
func WithRecorder(r schemas.Recorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// WithArchive saves every observation through archive.
func WithArchive(archive ObservationArchive) Option {
	return func(a *Agent) { a.archive = archive }
}

// WithClock replaces the transcript clock.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New creates an Agent. doc is owned by the caller, which must close it.
func New(doc schemas.Document, oracle Oracle, executor *Executor, opts Options, logger *zap.Logger, options ...Option) *Agent {
	a := &Agent{
		doc:      doc,
		oracle:   oracle,
		executor: executor,
		opts:     opts,
		logger:   logger.Named("agent"),
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
	}
	for _, opt := range options {
		opt(a)
	}
	if a.opts.MaxSteps <= 0 {
		a.opts.MaxSteps = 1
	}
	return a
}

// Run drives the page toward goal until the oracle finishes, the step budget
// runs out, or a fatal error occurs. The returned error is non-nil only for a
// FAILED run; the result is always populated.
func (a *Agent) Run(ctx context.Context, goal string) (res *RunResult, err error) {
	res = &RunResult{RunID: a.newRunID()}
	logger := a.logger.With(zap.String("run_id", res.RunID))
	logger.Info("Run started.", zap.String("goal", goal), zap.Int("max_steps", a.opts.MaxSteps))

	defer func() {
		a.finalScreenshot(ctx, logger)
		logger.Info("Run finished.",
			zap.String("status", string(res.Status)),
			zap.Int("steps", res.Steps),
			zap.String("reason", res.Reason))
	}()

	for step := 1; step <= a.opts.MaxSteps; step++ {
		if ctx.Err() != nil {
			return a.fail(ctx, res, step-1, ctx.Err())
		}
		res.Steps = step
		stepLogger := logger.With(zap.Int("step", step))

		// -- observe --
		obs, ref, err := a.observe(ctx, step, stepLogger)
		if err != nil {
			stepLogger.Warn("Observation failed.", zap.Error(err))
			res.History = append(res.History, schemas.HistoryRecord{
				Step:      step,
				Role:      "system",
				Outcome:   fmt.Sprintf("observation failed: %v", err),
				ErrorCode: string(ErrCodeObservationFailed),
			})
			a.record(ctx, res.RunID, schemas.TranscriptEntry{
				Step: step, Phase: schemas.PhaseError,
				Outcome: err.Error(), ErrorCode: string(ErrCodeObservationFailed),
			})
			if err := sleep(ctx, a.opts.ObserveRetry); err != nil {
				return a.fail(ctx, res, step, err)
			}
			continue
		}
		a.record(ctx, res.RunID, schemas.TranscriptEntry{
			Step: step, Phase: schemas.PhaseObserve, ObservationRef: ref,
			Outcome: fmt.Sprintf("%d lines, %d alerts", len(obs.Lines), len(obs.Alerts)),
		})

		// -- decide --
		decision, err := a.oracle.Decide(ctx, obs.Text, goal, res.History)
		if err != nil {
			return a.failWith(ctx, res, step, ErrCodeOracleFailure, fmt.Errorf("oracle failed: %w", err))
		}
		action := decision.Action
		stepLogger.Info("Decision received.", zap.String("thought", decision.Thought), zap.Stringer("action", action))
		a.record(ctx, res.RunID, schemas.TranscriptEntry{
			Step: step, Phase: schemas.PhaseDecide, ObservationRef: ref,
			Thought: decision.Thought, Action: &action,
		})

		if strings.TrimSpace(action.Name) == "" {
			return a.fail(ctx, res, step, fmt.Errorf("%w: empty action name", ErrInvalidDecision))
		}

		if action.IsFinish() {
			res.Status = StatusCompleted
			res.Reason = action.FinishReason()
			a.record(ctx, res.RunID, schemas.TranscriptEntry{
				Step: step, Phase: schemas.PhaseFinish,
				Thought: decision.Thought, Action: &action, Outcome: res.Reason,
			})
			return res, nil
		}

		// -- act --
		rec := schemas.HistoryRecord{Step: step, Role: "assistant", Thought: decision.Thought, Action: &action, Outcome: "ok"}
		if err := a.executor.Execute(ctx, a.doc, action); err != nil {
			code := ClassifyError(err)
			stepLogger.Warn("Action failed.", zap.Stringer("action", action), zap.String("error_code", string(code)), zap.Error(err))
			rec.Role = "system"
			rec.Outcome = fmt.Sprintf("action failed: %v", err)
			rec.ErrorCode = string(code)
		}
		res.History = append(res.History, rec)
		a.record(ctx, res.RunID, schemas.TranscriptEntry{
			Step: step, Phase: schemas.PhaseAct,
			Action: &action, Outcome: rec.Outcome, ErrorCode: rec.ErrorCode,
		})

		// -- settle --
		if err := sleep(ctx, a.opts.PostActionWait); err != nil {
			return a.fail(ctx, res, step, err)
		}
	}

	res.Status = StatusStepBudgetExhausted
	res.Reason = fmt.Sprintf("step budget of %d exhausted", a.opts.MaxSteps)
	return res, nil
}

// observe waits for the page, compiles the observation and archives it.
func (a *Agent) observe(ctx context.Context, step int, logger *zap.Logger) (*dom.Observation, string, error) {
	if err := a.doc.WaitLoad(ctx, a.opts.LoadTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		logger.Debug("Load wait failed; observing anyway.", zap.Error(err))
	}

	tree, err := a.doc.RenderedTree(ctx)
	if err != nil {
		return nil, "", err
	}

	var raw string
	if a.archive != nil {
		raw = renderHTML(tree)
	}
	obs := dom.Compile(tree, a.opts.Compile)
	ref := "fnv:" + obs.Fingerprint()

	if a.archive != nil {
		path, err := a.archive.SaveObservation(step, raw, renderHTML(tree), obs.Text)
		if err != nil {
			logger.Warn("Could not save observation artifacts.", zap.Error(err))
		} else {
			ref = path
		}
	}
	logger.Debug("Observation compiled.",
		zap.Int("lines", len(obs.Lines)),
		zap.Int("actionables", obs.Index.Len()),
		zap.Bool("truncated", obs.Truncated))
	return obs, ref, nil
}

func (a *Agent) fail(ctx context.Context, res *RunResult, step int, err error) (*RunResult, error) {
	return a.failWith(ctx, res, step, ClassifyError(err), err)
}

func (a *Agent) failWith(ctx context.Context, res *RunResult, step int, code ErrorCode, err error) (*RunResult, error) {
	res.Status = StatusFailed
	res.Reason = err.Error()
	a.record(ctx, res.RunID, schemas.TranscriptEntry{
		Step: step, Phase: schemas.PhaseError,
		Outcome: err.Error(), ErrorCode: string(code),
	})
	return res, err
}

// record stamps and forwards an entry. Transcript failures never stop a run.
func (a *Agent) record(ctx context.Context, runID string, entry schemas.TranscriptEntry) {
	if a.recorder == nil {
		return
	}
	entry.RunID = runID
	entry.Timestamp = a.now().UTC()
	if err := a.recorder.Record(session.Detach(ctx), entry); err != nil {
		a.logger.Warn("Failed to record transcript entry.", zap.String("phase", string(entry.Phase)), zap.Error(err))
	}
}

// finalScreenshot runs on every exit path, including cancellation.
func (a *Agent) finalScreenshot(ctx context.Context, logger *zap.Logger) {
	if a.opts.ScreenshotPath == "" {
		return
	}
	shotCtx, cancel := context.WithTimeout(session.Detach(ctx), screenshotTimeout)
	defer cancel()
	if err := a.doc.Screenshot(shotCtx, a.opts.ScreenshotPath); err != nil {
		logger.Warn("Final screenshot failed.", zap.Error(err))
	}
}

func renderHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
