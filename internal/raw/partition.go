package raw

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spaolacci/murmur3"

	"github.com/nocsaren/GA-mock-to-html/pkg/types"
)

// CompanionName is the flattened table file written next to the JSONL output.
const CompanionName = "pulled_from_bq.sqlite"

// companionTable is the table holding one row per event.
const companionTable = "events"

// schemaVersion increments when the flattening rules change.
const schemaVersion = 1

// ErrCompanionUnavailable is returned when the SQLite driver cannot be used,
// typically because the binary was built without cgo.
var ErrCompanionUnavailable = errors.New("raw: sqlite companion unavailable")

// PartitionInfo describes a written companion file.
type PartitionInfo struct {
	Path         string
	MetadataPath string
	RowCount     int64
	SizeBytes    int64
	Schema       types.TableSchema
}

// PartitionWriter writes the flattened companion table: one column per
// flattened field, a deterministic ULID event_id, and the nested record as
// snappy-compressed JSON.
type PartitionWriter struct {
	builder   *RecordBuilder
	seed      int64
	targetFPR float64
}

// NewPartitionWriter creates a writer. The seed drives event id entropy so
// that reruns reproduce the same ids.
func NewPartitionWriter(b *RecordBuilder, seed int64) *PartitionWriter {
	return &PartitionWriter{builder: b, seed: seed, targetFPR: 0.01}
}

// Schema derives the table schema from the flattened records of seq.
// Columns appear in first-seen order; a column seen with conflicting types
// is stored as TEXT.
func (w *PartitionWriter) Schema(seq iter.Seq[types.Event]) types.TableSchema {
	var names []string
	kinds := make(map[string]string)
	for e := range seq {
		for _, f := range Flatten(w.builder.Build(e)) {
			t := sqlType(f.Value)
			prev, seen := kinds[f.Name]
			if !seen {
				names = append(names, f.Name)
				kinds[f.Name] = t
				continue
			}
			switch {
			case prev == "":
				kinds[f.Name] = t
			case t != "" && t != prev:
				kinds[f.Name] = "TEXT"
			}
		}
	}

	schema := types.TableSchema{
		Version: schemaVersion,
		Columns: []types.ColumnDef{{Name: "event_id", Type: "BLOB", PrimaryKey: true}},
	}
	// An empty sequence yields no flattened columns to index.
	if len(names) > 0 {
		schema.Indexes = []types.IndexDef{
			{Name: "idx_events_user_time", Columns: []string{"user_pseudo_id", "event_timestamp"}},
			{Name: "idx_events_name", Columns: []string{"event_name"}},
		}
	}
	for _, n := range names {
		t := kinds[n]
		if t == "" {
			t = "TEXT"
		}
		schema.Columns = append(schema.Columns, types.ColumnDef{Name: n, Type: t, Nullable: true})
	}
	schema.Columns = append(schema.Columns, types.ColumnDef{Name: "record", Type: "BLOB"})
	return schema
}

// Write creates the companion at path and its .meta.json sidecar. The
// sequence is consumed twice: once for the schema, once for the rows.
func (w *PartitionWriter) Write(ctx context.Context, path string, seq iter.Seq[types.Event]) (*PartitionInfo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("raw: failed to create directory: %w", err)
	}
	for _, stale := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("raw: failed to remove stale %s: %w", stale, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompanionUnavailable, err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompanionUnavailable, err)
	}

	schema := w.Schema(seq)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("raw: failed to set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL(schema)); err != nil {
		return nil, fmt.Errorf("raw: failed to create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("raw: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL(schema))
	if err != nil {
		return nil, fmt.Errorf("raw: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	position := make(map[string]int, len(schema.Columns))
	for i, c := range schema.Columns {
		position[c.Name] = i
	}

	stats := newStatsTracker(w.targetFPR)
	entropy := idEntropy(w.seed)
	var ids *types.ULIDGenerator
	lastUser := -1

	for e := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Each user's events are time ordered, so a fresh generator per
		// user keeps id timestamps equal to event times.
		if e.User.Index != lastUser {
			ids = types.NewULIDGenerator(entropy)
			lastUser = e.User.Index
		}
		id, err := ids.GenerateWithTime(e.Time)
		if err != nil {
			return nil, fmt.Errorf("raw: failed to generate event id: %w", err)
		}

		rec := w.builder.Build(e)
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("raw: failed to marshal record: %w", err)
		}

		args := make([]any, len(schema.Columns))
		args[0] = id.Bytes()
		for _, f := range Flatten(rec) {
			args[position[f.Name]] = f.Value
		}
		args[len(args)-1] = snappy.Encode(nil, payload)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("raw: failed to insert event %d: %w", e.Seq, err)
		}
		stats.update(rec)
	}

	for _, idx := range schema.Indexes {
		if _, err := tx.ExecContext(ctx, createIndexSQL(idx)); err != nil {
			return nil, fmt.Errorf("raw: failed to create index %s: %w", idx.Name, err)
		}
	}
	if err := stmt.Close(); err != nil {
		return nil, fmt.Errorf("raw: failed to close statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("raw: failed to commit: %w", err)
	}

	// Checkpoint and leave WAL mode so the file is self-contained.
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("raw: failed to checkpoint WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, fmt.Errorf("raw: failed to set journal mode to DELETE: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("raw: failed to close database: %w", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("raw: failed to stat companion: %w", err)
	}

	info := &PartitionInfo{
		Path:         path,
		MetadataPath: path + ".meta.json",
		RowCount:     stats.rows,
		SizeBytes:    fi.Size(),
		Schema:       schema,
	}
	sidecar, err := newSidecar(info, stats)
	if err != nil {
		return nil, err
	}
	if err := sidecar.WriteToFile(info.MetadataPath); err != nil {
		return nil, err
	}
	return info, nil
}

// idEntropy seeds the id stream independently of the per-user event streams.
func idEntropy(seed int64) *rand.ChaCha8 {
	var in [8]byte
	binary.LittleEndian.PutUint64(in[:], uint64(seed))
	h1, h2 := murmur3.Sum128WithSeed(append(in[:], "event_id"...), 0)

	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:], h1)
	binary.LittleEndian.PutUint64(key[8:], h2)
	binary.LittleEndian.PutUint64(key[16:], h1^h2)
	binary.LittleEndian.PutUint64(key[24:], uint64(seed))
	return rand.NewChaCha8(key)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(s types.TableSchema) string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		def := quoteIdent(c.Name) + " " + c.Type
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		} else if !c.Nullable {
			def += " NOT NULL"
		}
		cols[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n) WITHOUT ROWID", companionTable, strings.Join(cols, ",\n\t"))
}

func insertSQL(s types.TableSchema) string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = quoteIdent(c.Name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", companionTable, strings.Join(names, ", "), placeholders)
}

func createIndexSQL(idx types.IndexDef) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = quoteIdent(c)
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, idx.Name, companionTable, strings.Join(cols, ", "))
}

// statsTracker accumulates row count, event time bounds and user membership.
type statsTracker struct {
	rows         int64
	minEventTime *int64
	maxEventTime *int64
	users        map[string]struct{}
	targetFPR    float64
}

func newStatsTracker(targetFPR float64) *statsTracker {
	return &statsTracker{users: make(map[string]struct{}), targetFPR: targetFPR}
}

func (s *statsTracker) update(rec Record) {
	s.rows++
	ts := rec.EventTimestamp
	if s.minEventTime == nil || ts < *s.minEventTime {
		s.minEventTime = &ts
	}
	if s.maxEventTime == nil || ts > *s.maxEventTime {
		s.maxEventTime = &ts
	}
	s.users[rec.UserPseudoID] = struct{}{}
}
