package schemas_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uxagent/api/schemas"
)

func TestParamsGet(t *testing.T) {
	t.Parallel()
	p := schemas.Params{
		"str":    "hello",
		"empty":  "",
		"null":   nil,
		"float":  float64(2.5),
		"whole":  float64(5),
		"int":    7,
		"bool":   true,
		"number": json.Number("42"),
	}
	testCases := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"str", "hello", true},
		{"empty", "", false},
		{"null", "", false},
		{"missing", "", false},
		{"float", "2.5", true},
		{"whole", "5", true},
		{"int", "7", true},
		{"bool", "true", true},
		{"number", "42", true},
	}
	for _, tc := range testCases {
		tt := tc
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			got, ok := p.Get(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, p.Has(tt.key))
		})
	}
}

func TestParamsPresent(t *testing.T) {
	t.Parallel()
	p := schemas.Params{"value": "", "null": nil}
	assert.True(t, p.Present("value"), "an explicit empty string is present")
	assert.False(t, p.Has("value"))
	assert.False(t, p.Present("null"))
	assert.False(t, p.Present("missing"))
}

func TestParamsMillis(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		params  schemas.Params
		want    time.Duration
		wantOK  bool
		wantErr string
	}{
		{"absent", schemas.Params{}, 0, false, ""},
		{"number", schemas.Params{"timeout": float64(250)}, 250 * time.Millisecond, true, ""},
		{"string", schemas.Params{"timeout": " 1500 "}, 1500 * time.Millisecond, true, ""},
		{"fraction", schemas.Params{"timeout": "0.5"}, 500 * time.Microsecond, true, ""},
		{"garbage", schemas.Params{"timeout": "soon"}, 0, true, "is not a number"},
		{"negative", schemas.Params{"timeout": float64(-1)}, 0, true, "must not be negative"},
	}
	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok, err := tt.params.Millis(schemas.ParamTimeout)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntentFinish(t *testing.T) {
	t.Parallel()
	assert.True(t, schemas.Intent{Name: "finish"}.IsFinish())
	assert.True(t, schemas.Intent{Name: " Finish "}.IsFinish())
	assert.False(t, schemas.Intent{Name: "click"}.IsFinish())

	withReason := schemas.Intent{Name: "finish", Params: schemas.Params{"reason": "done", "result": "ignored"}}
	assert.Equal(t, "done", withReason.FinishReason())
	withResult := schemas.Intent{Name: "finish", Params: schemas.Params{"result": "order #12"}}
	assert.Equal(t, "order #12", withResult.FinishReason())
	assert.Empty(t, schemas.Intent{Name: "finish"}.FinishReason())
}

func TestIntentString(t *testing.T) {
	t.Parallel()
	i := schemas.Intent{Name: "click", Params: schemas.Params{"data-testid": "buy"}}
	assert.Equal(t, `{"name":"click","params":{"data-testid":"buy"}}`, i.String())
	assert.Equal(t, `{"name":"wait"}`, schemas.Intent{Name: "wait"}.String())
}

func TestTranscriptEntryJSON(t *testing.T) {
	t.Parallel()
	e := schemas.TranscriptEntry{
		RunID:     "r1",
		Step:      3,
		Phase:     schemas.PhaseObserve,
		Timestamp: getTestTime(t),
		Outcome:   "12 lines, 1 alerts",
	}
	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"run_id":"r1","step":3,"phase":"observe","timestamp":"2025-10-26T10:00:00.123456789Z","outcome":"12 lines, 1 alerts"}`, string(b))

	var back schemas.TranscriptEntry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, e.Timestamp.Equal(back.Timestamp))
	assert.Nil(t, back.Action)
}
