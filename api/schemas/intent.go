package schemas

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Recognized intent parameter keys.
const (
	ParamTestID      = "data-testid"
	ParamTestIDAlias = "testid"
	ParamLabel       = "label"
	ParamPlaceholder = "placeholder"
	ParamRole        = "role"
	ParamNameText    = "name_text"
	ParamText        = "text"
	ParamSelector    = "selector"
	ParamURL         = "url"
	ParamValue       = "value"
	ParamKey         = "key"
	ParamTimeout     = "timeout"
	ParamReason      = "reason"
	ParamResult      = "result"
)

// Params is the loosely typed parameter mapping produced by the oracle.
type Params map[string]interface{}

// Get returns the parameter as a string. Empty strings and nulls count as absent.
// Numbers and booleans are formatted so an oracle sending {"value": 5} still works.
func (p Params) Get(key string) (string, bool) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return "", false
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	case json.Number:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// Has reports whether key carries a non-empty value.
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Present reports whether key was supplied at all, even as an empty string.
// Fill uses it so that an explicit "" clears a field.
func (p Params) Present(key string) bool {
	raw, ok := p[key]
	return ok && raw != nil
}

// Millis interprets the parameter as a millisecond count.
func (p Params) Millis(key string) (time.Duration, bool, error) {
	s, ok := p.Get(key)
	if !ok {
		return 0, false, nil
	}
	ms, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, true, fmt.Errorf("parameter %q is not a number: %w", key, err)
	}
	if ms < 0 {
		return 0, true, fmt.Errorf("parameter %q must not be negative", key)
	}
	return time.Duration(ms * float64(time.Millisecond)), true, nil
}

// Intent is a verb plus its target-selection parameters, as chosen by the oracle.
type Intent struct {
	Name   string `json:"name"`
	Params Params `json:"params,omitempty"`
}

// ActionFinish is the intent name the oracle uses to end a run.
const ActionFinish = "finish"

// IsFinish reports whether the intent concludes the run.
func (i Intent) IsFinish() bool {
	return strings.EqualFold(strings.TrimSpace(i.Name), ActionFinish)
}

// FinishReason returns the explanation attached to a finish intent.
func (i Intent) FinishReason() string {
	if r, ok := i.Params.Get(ParamReason); ok {
		return r
	}
	r, _ := i.Params.Get(ParamResult)
	return r
}

// String renders the intent as compact JSON for logs and history.
func (i Intent) String() string {
	b, err := json.Marshal(i)
	if err != nil {
		return i.Name
	}
	return string(b)
}

// Decision is a single response from the oracle.
type Decision struct {
	Thought string `json:"thought"`
	Action  Intent `json:"action"`
}

// HistoryRecord is one entry of the append-only history handed back to the oracle.
type HistoryRecord struct {
	Step      int     `json:"step"`
	Role      string  `json:"role"` // "assistant" for decisions, "system" for failures reported by the loop.
	Thought   string  `json:"thought,omitempty"`
	Action    *Intent `json:"action,omitempty"`
	Outcome   string  `json:"outcome"`
	ErrorCode string  `json:"error_code,omitempty"`
}
