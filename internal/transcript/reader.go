package transcript

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/uxagent/api/schemas"
)

// maxLineSize bounds one transcript line. Thoughts can be long but not this long.
const maxLineSize = 4 << 20

// ParseLine decodes one JSON Lines record. Blank lines yield ok == false.
func ParseLine(line string) (entry schemas.TranscriptEntry, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return entry, false, nil
	}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return entry, false, fmt.Errorf("decoding transcript line: %w", err)
	}
	return entry, true, nil
}

// Read decodes every entry from r in order.
func Read(r io.Reader) ([]schemas.TranscriptEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var entries []schemas.TranscriptEntry
	for n := 1; sc.Scan(); n++ {
		e, ok, err := ParseLine(sc.Text())
		if err != nil {
			return entries, fmt.Errorf("line %d: %w", n, err)
		}
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, sc.Err()
}

// ReadFile decodes the transcript at path.
func ReadFile(path string) ([]schemas.TranscriptEntry, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Follow streams entries from path to fn as they are appended, starting with
// the existing content, until ctx is done or fn returns an error. Malformed
// lines are passed to onBad and skipped.
func Follow(ctx context.Context, path string, fn func(schemas.TranscriptEntry) error, onBad func(line string, err error)) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	t, err := tail.TailFile(expanded, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail transcript file: %w", err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			e, ok, err := ParseLine(line.Text)
			if err != nil {
				if onBad != nil {
					onBad(line.Text, err)
				}
				continue
			}
			if !ok {
				continue
			}
			if err := fn(e); err != nil {
				return err
			}
		}
	}
}

// Format renders an entry as one human readable line.
func Format(e schemas.TranscriptEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  step %-3d %-7s", e.Timestamp.Format("15:04:05.000"), e.Step, e.Phase)
	if e.Action != nil {
		fmt.Fprintf(&b, " %s", e.Action)
	}
	if e.Thought != "" {
		fmt.Fprintf(&b, " thought=%q", e.Thought)
	}
	if e.Outcome != "" {
		fmt.Fprintf(&b, " -> %s", e.Outcome)
	}
	if e.ErrorCode != "" {
		fmt.Fprintf(&b, " [%s]", e.ErrorCode)
	}
	if e.ObservationRef != "" {
		fmt.Fprintf(&b, " (%s)", e.ObservationRef)
	}
	return b.String()
}
