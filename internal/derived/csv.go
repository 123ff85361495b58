package derived

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// WriteCSV writes t as a header line followed by its rows.
func WriteCSV(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("derived: failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("derived: failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("derived: failed to write header of %s: %w", t.Name, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("derived: failed to write rows of %s: %w", t.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("derived: failed to close %s: %w", path, err)
	}
	return nil
}
