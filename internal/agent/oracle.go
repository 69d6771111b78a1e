// internal/agent/oracle.go
package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/browser/dom"
	"github.com/xkilldash9x/uxagent/internal/config"
)

// Oracle chooses the next action from the current observation.
type Oracle interface {
	Decide(ctx context.Context, observation, goal string, history []schemas.HistoryRecord) (schemas.Decision, error)
}

// LLMOracle is an Oracle backed by a language model.
type LLMOracle struct {
	client schemas.LLMClient
	logger *zap.Logger
	cfg    config.LLMConfig
}

var _ Oracle = (*LLMOracle)(nil)

// NewLLMOracle wraps client. cfg supplies the sampling options, the request
// timeout and the observation budget.
func NewLLMOracle(client schemas.LLMClient, cfg config.LLMConfig, logger *zap.Logger) *LLMOracle {
	return &LLMOracle{client: client, cfg: cfg, logger: logger.Named("oracle")}
}

// Decide asks the model for one decision. Transport errors are returned as is;
// a reply without usable JSON is turned into a finish decision carrying the
// reply text.
func (o *LLMOracle) Decide(ctx context.Context, observation, goal string, history []schemas.HistoryRecord) (schemas.Decision, error) {
	if limit := o.cfg.MaxObservationChars; limit > 0 {
		if cut, truncated := dom.Truncate(observation, limit); truncated {
			o.logger.Debug("Observation truncated for the prompt.", zap.Int("max_chars", limit))
			observation = cut
		}
	}

	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(goal, observation, history),
		Options: schemas.GenerationOptions{
			Temperature:     float64(o.cfg.Temperature),
			ForceJSONFormat: true,
			MaxTokens:       o.cfg.MaxTokens,
		},
	}

	apiCtx, cancel := context.WithTimeout(ctx, orDefault(o.cfg.APITimeout, 90*time.Second))
	defer cancel()

	response, err := o.client.Generate(apiCtx, req)
	if err != nil {
		return schemas.Decision{}, fmt.Errorf("llm generation failed: %w", err)
	}

	decision, err := ParseDecision(response)
	if err != nil {
		o.logger.Warn("Model reply carried no parsable decision; treating it as finish.",
			zap.String("raw_response", response), zap.Error(err))
		return fallbackDecision(response), nil
	}
	return decision, nil
}

// jsonBlockRegex extracts the body of a fenced code block.
var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// wireDecision accepts both the nested {"thought", "action": {...}} shape and
// a flat {"name", "params"} tool call.
type wireDecision struct {
	Thought string          `json:"thought"`
	Action  *schemas.Intent `json:"action"`
	Name    string          `json:"name"`
	Params  schemas.Params  `json:"params"`
}

// ParseDecision extracts a decision from a model reply. It reads a fenced
// block when present, otherwise the outermost {...} span.
func ParseDecision(response string) (schemas.Decision, error) {
	response = strings.TrimSpace(response)
	var candidate string
	if m := jsonBlockRegex.FindStringSubmatch(response); len(m) > 1 {
		candidate = strings.TrimSpace(m[1])
	} else {
		first, last := strings.Index(response, "{"), strings.LastIndex(response, "}")
		if first == -1 || last <= first {
			return schemas.Decision{}, fmt.Errorf("no JSON object in response")
		}
		candidate = response[first : last+1]
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(candidate), &w); err != nil {
		return schemas.Decision{}, fmt.Errorf("failed to unmarshal decision: %w", err)
	}

	d := schemas.Decision{Thought: w.Thought}
	switch {
	case w.Action != nil:
		d.Action = *w.Action
	case w.Name != "":
		d.Action = schemas.Intent{Name: w.Name, Params: w.Params}
	}
	d.Action.Name = strings.TrimSpace(d.Action.Name)
	if d.Action.Params == nil {
		d.Action.Params = schemas.Params{}
	}
	return d, nil
}

func fallbackDecision(response string) schemas.Decision {
	result := strings.TrimSpace(response)
	if result == "" {
		result = "no result"
	}
	return schemas.Decision{
		Thought: "The model did not return a structured action; finishing with its reply.",
		Action: schemas.Intent{
			Name:   schemas.ActionFinish,
			Params: schemas.Params{schemas.ParamResult: result},
		},
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
