// Package integration runs the generator end to end and checks that the raw
// export, the derived tables, the ledger and the publisher agree.
package integration

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nocsaren/GA-mock-to-html/internal/app"
	"github.com/nocsaren/GA-mock-to-html/internal/config"
	"github.com/nocsaren/GA-mock-to-html/internal/manifest"
	"github.com/nocsaren/GA-mock-to-html/internal/raw"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Out = filepath.Join(t.TempDir(), "output")
	cfg.Kind = config.KindBoth
	cfg.Seed = 2024
	cfg.Users = 12
	cfg.Days = 7
	return cfg
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse %s: %v", path, err)
	}
	return records
}

// TestPipeline_RawAndDerivedAgree checks that the derived tables describe
// exactly the events written to the raw export.
func TestPipeline_RawAndDerivedAgree(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t)

	result, err := app.Run(ctx, cfg, app.Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	f, err := os.Open(filepath.Join(cfg.RawDir(), raw.JSONLName))
	if err != nil {
		t.Fatalf("failed to open raw export: %v", err)
	}
	defer f.Close()

	users := make(map[string]bool)
	var lines int64
	var lastTS int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec struct {
			EventName      string `json:"event_name"`
			EventTimestamp int64  `json:"event_timestamp"`
			UserPseudoID   string `json:"user_pseudo_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not JSON: %v", lines+1, err)
		}
		if rec.EventName == "" || rec.UserPseudoID == "" || rec.EventTimestamp <= 0 {
			t.Fatalf("line %d is incomplete: %+v", lines+1, rec)
		}
		users[rec.UserPseudoID] = true
		lastTS = rec.EventTimestamp
		lines++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if lines == 0 || lastTS == 0 {
		t.Fatal("raw export is empty")
	}
	if lines != result.Events {
		t.Errorf("result reports %d events, export has %d lines", result.Events, lines)
	}
	if len(users) != cfg.Users {
		t.Errorf("expected %d users in the export, got %d", cfg.Users, len(users))
	}

	processed := readCSV(t, filepath.Join(cfg.CSVDir(), "processed_data.csv"))
	if int64(len(processed)-1) != lines {
		t.Errorf("processed_data has %d rows, export has %d events", len(processed)-1, lines)
	}

	byUsers := readCSV(t, filepath.Join(cfg.CSVDir(), "by_users_data.csv"))
	if len(byUsers)-1 != len(users) {
		t.Errorf("by_users has %d rows, export has %d users", len(byUsers)-1, len(users))
	}
	idCol := slices.Index(byUsers[0], "user_pseudo_id")
	if idCol < 0 {
		t.Fatalf("by_users has no user_pseudo_id column: %v", byUsers[0])
	}
	for _, row := range byUsers[1:] {
		if !users[row[idCol]] {
			t.Errorf("by_users lists unknown user %s", row[idCol])
		}
	}

	checkCompanion(t, result, cfg, lines)
}

// checkCompanion verifies the SQLite companion when the build could write it.
func checkCompanion(t *testing.T, result *app.Result, cfg *config.Config, events int64) {
	t.Helper()
	var written bool
	for _, f := range result.Files {
		if f.Kind == manifest.KindCompanion {
			written = true
		}
	}
	if !written {
		t.Log("companion not written; skipping companion checks")
		return
	}

	path := filepath.Join(cfg.RawDir(), raw.CompanionName)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open companion: %v", err)
	}
	defer db.Close()

	var count int64
	if err := db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("failed to count companion rows: %v", err)
	}
	if count != events {
		t.Errorf("companion has %d rows, export has %d", count, events)
	}

	sidecar, err := raw.ReadSidecar(path + ".meta.json")
	if err != nil {
		t.Fatalf("failed to read sidecar: %v", err)
	}
	if sidecar.Stats.RowCount != events {
		t.Errorf("sidecar row count = %d, want %d", sidecar.Stats.RowCount, events)
	}
	if sidecar.Stats.UserCount != cfg.Users {
		t.Errorf("sidecar user count = %d, want %d", sidecar.Stats.UserCount, cfg.Users)
	}
}

// TestPipeline_UnionMirroring widens every table by the reference headers.
func TestPipeline_UnionMirroring(t *testing.T) {
	refDir := t.TempDir()
	files := map[string]string{
		"by_users_data.csv": "legacy_id,user_pseudo_id\n",
		"old_report.csv":    "report_week,legacy_id\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(refDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := newConfig(t)
	cfg.Kind = config.KindDerived
	cfg.SchemaFrom = refDir

	result, err := app.Run(context.Background(), cfg, app.Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}

	// by_users_data.csv sorts before old_report.csv.
	want := []string{"legacy_id", "user_pseudo_id", "report_week"}
	var tables int
	for _, f := range result.Files {
		if f.Kind != manifest.KindTable {
			continue
		}
		tables++
		records := readCSV(t, filepath.Join(cfg.Out, filepath.FromSlash(f.Path)))
		header := records[0]
		if len(header) < len(want) || !slices.Equal(header[:len(want)], want) {
			t.Errorf("%s header starts with %v, want %v", f.Path, header[:min(len(header), len(want))], want)
			continue
		}
		for _, row := range records[1:] {
			if row[0] != "" || row[2] != "" {
				t.Errorf("%s: reference-only columns must be blank, got %q and %q", f.Path, row[0], row[2])
				break
			}
		}
	}
	if tables != 8 {
		t.Errorf("expected 8 tables, got %d", tables)
	}
}

// TestPipeline_RerunPublishesOnlyChanges runs the same configuration twice
// into one output root and publishes both times.
func TestPipeline_RerunPublishesOnlyChanges(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t)
	cfg.Companion.Enabled = false
	cfg.Publish.Type = config.PublishLocal
	cfg.Publish.Path = filepath.Join(t.TempDir(), "published")

	first, err := app.Run(ctx, cfg, app.Options{})
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if len(first.Published.Uploaded) == 0 {
		t.Fatal("first run published nothing")
	}

	rerun := *cfg
	second, err := app.Run(ctx, &rerun, app.Options{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(second.Published.Uploaded) != 0 {
		t.Errorf("unchanged outputs were uploaded again: %v", second.Published.Uploaded)
	}
	if len(second.Published.Skipped) != len(first.Published.Uploaded) {
		t.Errorf("skipped %d objects, want %d", len(second.Published.Skipped), len(first.Published.Uploaded))
	}
	if len(second.Diverged) != 0 {
		t.Errorf("rerun diverged: %v", second.Diverged)
	}

	ledger, err := manifest.OpenLedger(cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	defer ledger.Close()

	latest, err := ledger.Latest(ctx)
	if err != nil {
		t.Fatalf("failed to read latest run: %v", err)
	}
	if latest.RunID != second.RunID {
		t.Errorf("latest run = %s, want %s", latest.RunID, second.RunID)
	}
	if latest.PublishedTo != cfg.Publish.Path {
		t.Errorf("published_to = %q, want %q", latest.PublishedTo, cfg.Publish.Path)
	}
	if _, ok := latest.File("raw/" + raw.JSONLName); !ok {
		t.Error("ledger is missing the raw export")
	}

	if _, err := ledger.Get(ctx, "not-a-run"); !errors.Is(err, manifest.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
