package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	mgerrors "github.com/nocsaren/GA-mock-to-html/internal/errors"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_RecordAndGet(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	rec := &RunRecord{
		Seed:         7,
		Users:        10,
		Days:         3,
		Kind:         "both",
		ConfigDigest: "abc",
		StartedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Files: []OutputFile{
			{Path: "raw/pulled_from_bq.jsonl", Kind: KindRaw, Rows: 120, SizeBytes: 4096, Digest: "d1"},
		},
	}
	if err := l.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.RunID == "" {
		t.Fatal("Record should assign a run id")
	}

	got, err := l.Get(ctx, rec.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Seed != 7 || got.Users != 10 || got.Days != 3 || got.Kind != "both" {
		t.Errorf("unexpected record: %+v", got)
	}
	f, ok := got.File("raw/pulled_from_bq.jsonl")
	if !ok || f.Rows != 120 || f.Digest != "d1" {
		t.Errorf("unexpected file: %+v (found=%v)", f, ok)
	}
	if !got.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, rec.StartedAt)
	}

	if _, err := l.Get(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestLedger_ListLatestOrder(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if _, err := l.Latest(ctx); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("empty ledger: expected ErrRunNotFound, got %v", err)
	}

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Recorded out of order on purpose.
	for _, offset := range []int{2, 0, 1} {
		rec := &RunRecord{Seed: int64(offset), StartedAt: base.Add(time.Duration(offset) * time.Hour)}
		if err := l.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	runs, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i, r := range runs {
		if r.Seed != int64(i) {
			t.Errorf("run %d has seed %d, want chronological order", i, r.Seed)
		}
	}

	latest, err := l.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Seed != 2 {
		t.Errorf("latest seed = %d, want 2", latest.Seed)
	}
}

func TestLedger_FindByDigest(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	digests := []string{"same", "other", "same"}
	for i, d := range digests {
		rec := &RunRecord{Seed: int64(i), ConfigDigest: d, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := l.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	runs, err := l.FindByDigest(ctx, "same")
	if err != nil {
		t.Fatalf("FindByDigest: %v", err)
	}
	if len(runs) != 2 || runs[0].Seed != 0 || runs[1].Seed != 2 {
		t.Errorf("unexpected runs: %+v", runs)
	}

	none, err := l.FindByDigest(ctx, "unknown")
	if err != nil {
		t.Fatalf("FindByDigest unknown: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no runs, got %d", len(none))
	}
}

func TestLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	l, err := OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := &RunRecord{Seed: 99}
	if err := l.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	l, err = OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	got, err := l.Get(ctx, rec.RunID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Seed != 99 {
		t.Errorf("seed = %d", got.Seed)
	}
}

func TestOpenLedger_BadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := OpenLedger(filepath.Join(blocker, "runs.db"))
	if err == nil {
		t.Fatal("expected error")
	}
	if mgerrors.GetCode(err) != mgerrors.CodeLedgerFailed {
		t.Errorf("code = %s", mgerrors.GetCode(err))
	}
}

func TestDiverged(t *testing.T) {
	a := &RunRecord{Files: []OutputFile{
		{Path: "raw/pulled_from_bq.jsonl", Kind: KindRaw, Digest: "1"},
		{Path: "raw/pulled_from_bq.sqlite", Kind: KindCompanion, Digest: "2"},
		{Path: "data/csv/by_users_data.csv", Kind: KindTable, Digest: "3"},
	}}
	b := &RunRecord{Files: []OutputFile{
		{Path: "raw/pulled_from_bq.jsonl", Kind: KindRaw, Digest: "1"},
		{Path: "raw/pulled_from_bq.sqlite", Kind: KindCompanion, Digest: "changed"},
		{Path: "data/csv/by_users_data.csv", Kind: KindTable, Digest: "changed"},
		{Path: "data/csv/by_date_data.csv", Kind: KindTable, Digest: "new"},
	}}
	got := Diverged(a, b)
	if len(got) != 1 || got[0] != "data/csv/by_users_data.csv" {
		t.Errorf("Diverged = %v", got)
	}
}

func TestFileDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	digest, size, err := FileDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if size != 3 {
		t.Errorf("size = %d", size)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if digest != want {
		t.Errorf("digest = %s", digest)
	}
}
