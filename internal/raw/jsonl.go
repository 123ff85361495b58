package raw

import (
	"bufio"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

// JSONLName is the canonical raw output file under the raw directory.
const JSONLName = "pulled_from_bq.jsonl"

// WriteJSONL writes one JSON record per line and returns the row count.
// An empty sequence produces an empty file.
func WriteJSONL(path string, seq iter.Seq[types.Event], b *RecordBuilder) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("raw: failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("raw: failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var rows int64
	for e := range seq {
		if err := enc.Encode(b.Build(e)); err != nil {
			return rows, fmt.Errorf("raw: failed to encode event %d: %w", e.Seq, err)
		}
		rows++
	}

	if err := w.Flush(); err != nil {
		return rows, fmt.Errorf("raw: failed to flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return rows, fmt.Errorf("raw: failed to close %s: %w", path, err)
	}
	return rows, nil
}
