// Package mirror widens derived tables to the column set of an existing
// dataset by reading only the header line of its CSV files.
package mirror

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nocsaren/GA-mock-to-html/internal/derived"
	mgerrors "github.com/nocsaren/GA-mock-to-html/internal/errors"
)

// MaxHeaderBytes bounds how much of a reference file is read.
const MaxHeaderBytes = 1 << 20

// Mode selects which reference columns widen a table.
type Mode string

const (
	// ModeUnion widens every table by the union of all reference headers.
	ModeUnion Mode = "union"
	// ModePerFile widens a table only by the reference file of the same name.
	ModePerFile Mode = "per_file"
)

// ParseMode validates a configured mode. The empty string means ModeUnion.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeUnion:
		return ModeUnion, nil
	case ModePerFile:
		return ModePerFile, nil
	default:
		return "", fmt.Errorf("mirror: unknown mode %q", s)
	}
}

// Reference is the header set of a reference directory.
type Reference struct {
	// Files maps a CSV file name to its header.
	Files map[string][]string
	// Union is the ordered union of all headers, files taken by name.
	Union []string
}

// Empty reports whether the reference contributes no columns.
func (r *Reference) Empty() bool {
	return r == nil || len(r.Union) == 0
}

// ReadHeader returns the first CSV record of path. Only the header line is
// read; a header longer than MaxHeaderBytes is an error.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	limited := &io.LimitedReader{R: f, N: MaxHeaderBytes}
	r := csv.NewReader(limited)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if limited.N == 0 {
		return nil, fmt.Errorf("mirror: header of %s exceeds %d bytes", path, MaxHeaderBytes)
	}
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("mirror: %s has no header", path)
	}
	if err != nil {
		return nil, fmt.Errorf("mirror: failed to read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, nil
}

// Load reads the header of every *.csv file in dir. Problems are returned
// as warnings next to a usable, possibly empty, reference: a missing
// directory or unreadable file never prevents generation.
func Load(dir string) (*Reference, []error) {
	ref := &Reference{Files: make(map[string][]string)}

	fi, err := os.Stat(dir)
	if err == nil && !fi.IsDir() {
		err = fmt.Errorf("%s is not a directory", dir)
	}
	if err != nil {
		return ref, []error{mgerrors.NewSchemaError(mgerrors.CodeReferenceMissing,
			fmt.Sprintf("reference directory %s is not readable, mirroring skipped", dir), err)}
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return ref, []error{mgerrors.NewSchemaError(mgerrors.CodeReferenceUnreadable,
			fmt.Sprintf("failed to list %s", dir), err)}
	}
	sort.Strings(matches)

	var warnings []error
	seen := make(map[string]bool)
	for _, path := range matches {
		header, err := ReadHeader(path)
		if err != nil {
			warnings = append(warnings, mgerrors.NewSchemaError(mgerrors.CodeReferenceUnreadable,
				fmt.Sprintf("skipping reference %s", filepath.Base(path)), err))
			continue
		}
		ref.Files[filepath.Base(path)] = header
		for _, c := range header {
			if !seen[c] {
				seen[c] = true
				ref.Union = append(ref.Union, c)
			}
		}
	}
	if ref.Empty() {
		warnings = append(warnings, mgerrors.NewSchemaError(mgerrors.CodeReferenceMissing,
			fmt.Sprintf("no readable CSV header in %s, mirroring skipped", dir), nil))
	}
	return ref, warnings
}

// Apply returns t widened to the reference columns. Reference columns come
// first in reference order, followed by native columns the reference lacks.
// Mirrored columns the table does not produce are blank. A table without
// matching reference columns is returned unchanged.
func (r *Reference) Apply(t *derived.Table, mode Mode) *derived.Table {
	if r.Empty() {
		return t
	}
	var columns []string
	switch mode {
	case ModePerFile:
		columns = r.Files[t.FileName()]
	default:
		columns = r.Union
	}
	if len(columns) == 0 {
		return t
	}

	native := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := native[c]; !dup {
			native[c] = i
		}
	}

	var out []string
	var src []int
	placed := make(map[string]bool)
	for _, c := range columns {
		if placed[c] {
			continue
		}
		placed[c] = true
		out = append(out, c)
		if i, ok := native[c]; ok {
			src = append(src, i)
		} else {
			src = append(src, -1)
		}
	}
	for i, c := range t.Columns {
		if !placed[c] {
			placed[c] = true
			out = append(out, c)
			src = append(src, i)
		}
	}

	widened := derived.NewTable(t.Name, out...)
	for _, row := range t.Rows {
		cells := make([]string, len(src))
		for j, i := range src {
			if i >= 0 {
				cells[j] = row[i]
			}
		}
		widened.Append(cells...)
	}
	return widened
}
