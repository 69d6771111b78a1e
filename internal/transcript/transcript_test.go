package transcript

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uxagent/api/schemas"
)

func sampleEntries() []schemas.TranscriptEntry {
	ts := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return []schemas.TranscriptEntry{
		{RunID: "r1", Step: 1, Phase: schemas.PhaseObserve, Timestamp: ts, ObservationRef: "fnv:abc", Outcome: "12 lines, 0 alerts"},
		{RunID: "r1", Step: 1, Phase: schemas.PhaseDecide, Timestamp: ts.Add(time.Second), Thought: "click <Buy>",
			Action: &schemas.Intent{Name: "click", Params: schemas.Params{"text": "Buy & Save"}}},
		{RunID: "r1", Step: 1, Phase: schemas.PhaseAct, Timestamp: ts.Add(2 * time.Second), Outcome: "action failed",
			ErrorCode: "AMBIGUOUS_OR_MISSING_TARGET"},
	}
}

func TestFileRecorder_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "t.jsonl")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)
	assert.Equal(t, path, rec.Path())

	for _, e := range sampleEntries() {
		require.NoError(t, rec.Record(context.Background(), e))
	}
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close(), "close is idempotent")
	assert.ErrorIs(t, rec.Record(context.Background(), sampleEntries()[0]), os.ErrClosed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], `"Buy & Save"`, "HTML characters stay readable")

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries(), got)

	// Reopening appends rather than truncating.
	rec, err = NewFileRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(context.Background(), sampleEntries()[0]))
	require.NoError(t, rec.Close())
	got, err = ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, schemas.TranscriptEntry) error { return f.err }
func (f failingRecorder) Close() error                                           { return f.err }

func TestMultiRecorder(t *testing.T) {
	boom := errors.New("db down")
	path := filepath.Join(t.TempDir(), "t.jsonl")
	file, err := NewFileRecorder(path)
	require.NoError(t, err)

	multi := MultiRecorder{failingRecorder{err: boom}, file}
	err = multi.Record(context.Background(), sampleEntries()[0])
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, multi.Close(), boom)

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 1, "later recorders still receive the entry")
}

func TestRead(t *testing.T) {
	input := `{"run_id":"r","step":1,"phase":"observe","timestamp":"2026-05-04T10:00:00Z"}

{"run_id":"r","step":1,"phase":"finish","timestamp":"2026-05-04T10:00:01Z","outcome":"done"}
`
	got, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, schemas.PhaseFinish, got[1].Phase)

	_, err = Read(strings.NewReader("{\"step\":1}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestArtifactWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	w, err := NewArtifactWriter(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, w.Dir())

	ref, err := w.SaveObservation(3, "<html>raw</html>", "<html>clean</html>", "Title\n[1] Buy [button]")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "observe_3_summary.txt"), ref)

	for name, want := range map[string]string{
		"observe_3_raw.html":    "<html>raw</html>",
		"observe_3_clean.html":  "<html>clean</html>",
		"observe_3_summary.txt": "Title\n[1] Buy [button]",
	} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got), name)
	}
}

func TestFormat(t *testing.T) {
	entries := sampleEntries()
	assert.Equal(t, `10:00:00.000  step 1   observe -> 12 lines, 0 alerts (fnv:abc)`, Format(entries[0]))
	assert.Contains(t, Format(entries[1]), `{"name":"click","params":{"text":"Buy & Save"}}`)
	assert.True(t, strings.HasSuffix(Format(entries[2]), "[AMBIGUOUS_OR_MISSING_TARGET]"))
}

func TestFollow_StreamsAppendedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.jsonl")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)
	defer rec.Close()
	entries := sampleEntries()
	require.NoError(t, rec.Record(context.Background(), entries[0]))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var got []schemas.TranscriptEntry
	var bad bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, func(e schemas.TranscriptEntry) error {
			got = append(got, e)
			if len(got) == len(entries) {
				cancel()
			}
			return nil
		}, func(line string, err error) { bad.WriteString(line) })
	}()

	// Give the tailer a moment before appending more lines.
	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	for _, e := range entries[1:] {
		require.NoError(t, rec.Record(context.Background(), e))
	}

	require.NoError(t, <-done)
	assert.Equal(t, entries, got)
	assert.Equal(t, "garbage", bad.String())
}

func TestFollow_CallbackErrorStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(context.Background(), sampleEntries()[0]))
	require.NoError(t, rec.Close())

	stop := errors.New("stop")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = Follow(ctx, path, func(schemas.TranscriptEntry) error { return stop }, nil)
	assert.ErrorIs(t, err, stop)
}
