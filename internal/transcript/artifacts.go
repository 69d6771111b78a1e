package transcript

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// ArtifactWriter saves the per-step page captures into a directory:
// observe_<step>_raw.html, observe_<step>_clean.html and observe_<step>_summary.txt.
type ArtifactWriter struct {
	dir string
}

// NewArtifactWriter creates dir when missing.
func NewArtifactWriter(dir string) (*ArtifactWriter, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expanding artifacts dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifacts dir: %w", err)
	}
	return &ArtifactWriter{dir: expanded}, nil
}

// Dir returns the expanded artifact directory.
func (w *ArtifactWriter) Dir() string { return w.dir }

// SaveObservation writes the three captures of one step and returns the
// summary path, which is what the transcript references.
func (w *ArtifactWriter) SaveObservation(step int, rawHTML, cleanHTML, summary string) (string, error) {
	files := []struct {
		suffix  string
		content string
	}{
		{"raw.html", rawHTML},
		{"clean.html", cleanHTML},
		{"summary.txt", summary},
	}
	var last string
	for _, f := range files {
		last = filepath.Join(w.dir, fmt.Sprintf("observe_%d_%s", step, f.suffix))
		if err := os.WriteFile(last, []byte(f.content), 0o644); err != nil {
			return "", fmt.Errorf("writing %s: %w", filepath.Base(last), err)
		}
	}
	return last, nil
}
