// Package manifest keeps a ledger of generator runs: what was asked for and
// which files came out, with their digests.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	mgerrors "github.com/nocsaren/GA-mock-to-html/internal/errors"
)

var (
	runsBucket    = []byte("runs")
	runIDsBucket  = []byte("run_ids")
	digestsBucket = []byte("config_digests")
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("manifest: run not found")

// File kinds recorded in the ledger.
const (
	KindRaw       = "raw"
	KindCompanion = "companion"
	KindSidecar   = "sidecar"
	KindTable     = "table"
	KindConfig    = "config"
)

// OutputFile describes one file a run wrote.
type OutputFile struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Rows      int64  `json:"rows"`
	SizeBytes int64  `json:"size_bytes"`
	Digest    string `json:"sha256"`
}

// RunRecord is one ledger entry.
type RunRecord struct {
	RunID        string       `json:"run_id"`
	Seed         int64        `json:"seed"`
	Users        int          `json:"users"`
	Days         int          `json:"days"`
	Kind         string       `json:"kind"`
	ConfigDigest string       `json:"config_digest"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Files        []OutputFile `json:"files"`
	Warnings     []string     `json:"warnings,omitempty"`
	PublishedTo  string       `json:"published_to,omitempty"`
}

// File returns the recorded file with the given path.
func (r *RunRecord) File(path string) (OutputFile, bool) {
	for _, f := range r.Files {
		if f.Path == path {
			return f, true
		}
	}
	return OutputFile{}, false
}

// Ledger stores run records in a bbolt database. Runs are keyed by start
// time so iteration order is chronological.
type Ledger struct {
	db   *bolt.DB
	path string
}

// OpenLedger opens or creates the ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, mgerrors.NewStorageError(mgerrors.CodeLedgerFailed,
			fmt.Sprintf("failed to open ledger %s", path), err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{runsBucket, runIDsBucket, digestsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, mgerrors.NewStorageError(mgerrors.CodeLedgerFailed, "failed to initialize ledger", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Record stores rec, assigning a run id when it has none.
func (l *Ledger) Record(ctx context.Context, rec *RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return mgerrors.NewInternalError("failed to encode run record", err)
	}
	key := runKey(rec.StartedAt, rec.RunID)

	err = l.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(runsBucket).Put(key, data); err != nil {
			return err
		}
		if err := tx.Bucket(runIDsBucket).Put([]byte(rec.RunID), key); err != nil {
			return err
		}
		if rec.ConfigDigest == "" {
			return nil
		}
		byDigest, err := tx.Bucket(digestsBucket).CreateBucketIfNotExists([]byte(rec.ConfigDigest))
		if err != nil {
			return err
		}
		return byDigest.Put(key, []byte(rec.RunID))
	})
	if err != nil {
		return mgerrors.NewStorageError(mgerrors.CodeLedgerFailed, "failed to record run", err)
	}
	return nil
}

// Get returns the run with the given id.
func (l *Ledger) Get(ctx context.Context, runID string) (*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *RunRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(runIDsBucket).Get([]byte(runID))
		if key == nil {
			return ErrRunNotFound
		}
		var err error
		rec, err = decodeRun(tx.Bucket(runsBucket).Get(key))
		return err
	})
	if err != nil {
		return nil, l.wrap(err)
	}
	return rec, nil
}

// List returns all runs, oldest first.
func (l *Ledger) List(ctx context.Context) ([]*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var runs []*RunRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(_, v []byte) error {
			rec, err := decodeRun(v)
			if err != nil {
				return err
			}
			runs = append(runs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, l.wrap(err)
	}
	return runs, nil
}

// Latest returns the most recent run.
func (l *Ledger) Latest(ctx context.Context) (*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *RunRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(runsBucket).Cursor().Last()
		if v == nil {
			return ErrRunNotFound
		}
		var err error
		rec, err = decodeRun(v)
		return err
	})
	if err != nil {
		return nil, l.wrap(err)
	}
	return rec, nil
}

// FindByDigest returns the runs made with an identical configuration,
// oldest first.
func (l *Ledger) FindByDigest(ctx context.Context, digest string) ([]*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var runs []*RunRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		byDigest := tx.Bucket(digestsBucket).Bucket([]byte(digest))
		if byDigest == nil {
			return nil
		}
		all := tx.Bucket(runsBucket)
		return byDigest.ForEach(func(k, _ []byte) error {
			rec, err := decodeRun(all.Get(k))
			if err != nil {
				return err
			}
			runs = append(runs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, l.wrap(err)
	}
	return runs, nil
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) wrap(err error) error {
	if errors.Is(err, ErrRunNotFound) {
		return err
	}
	return mgerrors.NewStorageError(mgerrors.CodeLedgerFailed, fmt.Sprintf("ledger %s", l.path), err)
}

// runKey orders runs by start time; the id breaks ties.
func runKey(started time.Time, runID string) []byte {
	key := make([]byte, 8, 8+len(runID))
	binary.BigEndian.PutUint64(key, uint64(started.UnixNano()))
	return append(key, runID...)
}

func decodeRun(data []byte) (*RunRecord, error) {
	if data == nil {
		return nil, ErrRunNotFound
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("manifest: corrupt run record: %w", err)
	}
	return &rec, nil
}

// FileDigest returns the hex SHA-256 of a file and its size.
func FileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Diverged returns the paths both runs wrote with different digests. The
// SQLite companion is left out: its page layout may differ between driver
// versions even when the rows are equal.
func Diverged(a, b *RunRecord) []string {
	var out []string
	for _, f := range b.Files {
		if f.Kind == KindCompanion {
			continue
		}
		prev, ok := a.File(f.Path)
		if ok && prev.Digest != f.Digest {
			out = append(out, f.Path)
		}
	}
	return out
}
