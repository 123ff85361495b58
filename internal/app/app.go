// Package app runs one generation: sample events, write the raw and derived
// outputs, record the run and optionally publish the output tree.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/nocsaren/GA-mock-to-html/internal/config"
	"github.com/nocsaren/GA-mock-to-html/internal/derived"
	mgerrors "github.com/nocsaren/GA-mock-to-html/internal/errors"
	"github.com/nocsaren/GA-mock-to-html/internal/manifest"
	"github.com/nocsaren/GA-mock-to-html/internal/mirror"
	"github.com/nocsaren/GA-mock-to-html/internal/raw"
	"github.com/nocsaren/GA-mock-to-html/internal/sampler"
	"github.com/nocsaren/GA-mock-to-html/internal/storage"
	"github.com/nocsaren/GA-mock-to-html/internal/vocab"
)

// Options tune how a run reports, not what it writes.
type Options struct {
	// Verbose logs events that are otherwise silent, such as a missing
	// SQLite driver.
	Verbose bool
	// Progress receives the publish progress bar when non-nil.
	Progress io.Writer
}

// Result summarizes a finished run.
type Result struct {
	RunID  string
	Events int64
	// Files are relative to the output root, in write order.
	Files []manifest.OutputFile
	// Warnings are the non-fatal problems met along the way.
	Warnings []error
	// Diverged lists files that differ from an earlier run with the same
	// configuration.
	Diverged  []string
	Published *storage.PublishResult
}

// App owns the resolved configuration of one run.
type App struct {
	cfg  *config.Config
	opts Options

	vocab   *vocab.Vocabulary
	sampler *sampler.Sampler
	result  *Result
}

// New resolves and validates cfg and creates the output directories.
func New(cfg *config.Config, opts Options) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return &App{cfg: cfg, opts: opts}, nil
}

// Run is New followed by App.Run.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	a, err := New(cfg, opts)
	if err != nil {
		return nil, err
	}
	return a.Run(ctx)
}

// Run executes every stage the configuration asks for. Raw and derived
// outputs are built from the same event sequence.
func (a *App) Run(ctx context.Context) (*Result, error) {
	run := newRunRecord(a.cfg)
	a.result = &Result{}

	for _, w := range a.cfg.Warnings() {
		a.warn(w)
	}

	v, warnings := a.cfg.ResolveVocabulary()
	for _, w := range warnings {
		a.warn(mgerrors.NewConfigError(mgerrors.CodeInvalidValue, w.String(), nil))
	}
	a.vocab = v

	params, err := a.cfg.SamplerParams()
	if err != nil {
		return nil, err
	}
	a.sampler, err = sampler.New(params, v)
	if err != nil {
		return nil, mgerrors.NewConfigError(mgerrors.CodeInvalidValue, "invalid generation parameters", err)
	}
	log.Printf("app: generating %d users over %d days (seed %d, kind %s)",
		params.Users, params.Days, params.Seed, a.cfg.Kind)

	if a.cfg.Kind.WritesRaw() {
		if err := a.writeRaw(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if a.cfg.Kind.WritesDerived() {
		if err := a.writeDerived(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := a.cfg.WriteFile(a.cfg.UsedPath()); err != nil {
		return nil, err
	}
	configFile, err := a.addFile(a.cfg.UsedPath(), manifest.KindConfig, 0)
	if err != nil {
		return nil, err
	}
	run.ConfigDigest = configFile.Digest

	if a.cfg.Publish.Type != config.PublishNone {
		published, err := a.publish(ctx)
		if err != nil {
			return nil, err
		}
		a.result.Published = published
		run.PublishedTo = a.publishTarget()
	}

	if a.cfg.Ledger.Enabled {
		a.record(ctx, run)
	}

	return a.result, nil
}

func (a *App) writeRaw(ctx context.Context) error {
	builder := raw.NewRecordBuilder(a.vocab)
	events := a.sampler.Events()

	jsonlPath := filepath.Join(a.cfg.RawDir(), raw.JSONLName)
	rows, err := raw.WriteJSONL(jsonlPath, events, builder)
	if err != nil {
		return mgerrors.NewIOError(mgerrors.CodeWriteFailed, "failed to write raw events", err)
	}
	a.result.Events = rows
	if _, err := a.addFile(jsonlPath, manifest.KindRaw, rows); err != nil {
		return err
	}
	log.Printf("raw: wrote %d events to %s", rows, jsonlPath)

	if !a.cfg.Companion.Enabled {
		return nil
	}
	companionPath := filepath.Join(a.cfg.RawDir(), raw.CompanionName)
	info, err := raw.NewPartitionWriter(builder, a.cfg.Seed).Write(ctx, companionPath, events)
	switch {
	case errors.Is(err, raw.ErrCompanionUnavailable):
		if a.opts.Verbose {
			log.Printf("raw: companion skipped: %v", err)
		}
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		a.warn(mgerrors.NewIOError(mgerrors.CodeWriteFailed, "companion table skipped", err))
		return nil
	}

	if _, err := a.addFile(info.Path, manifest.KindCompanion, info.RowCount); err != nil {
		return err
	}
	if _, err := a.addFile(info.MetadataPath, manifest.KindSidecar, 0); err != nil {
		return err
	}
	return nil
}

func (a *App) writeDerived(ctx context.Context) error {
	ds := derived.NewDataset(a.sampler.Events(), a.vocab)

	ref := &mirror.Reference{}
	if a.cfg.SchemaFrom != "" {
		var warnings []error
		ref, warnings = mirror.Load(a.cfg.SchemaFrom)
		for _, w := range warnings {
			a.warn(w)
		}
	}
	mode, err := mirror.ParseMode(a.cfg.MirrorMode)
	if err != nil {
		return mgerrors.NewConfigError(mgerrors.CodeInvalidValue, "invalid mirror_mode", err)
	}

	tables := ds.Tables()
	if !a.cfg.Kind.WritesRaw() {
		a.result.Events = int64(ds.Len())
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		t = ref.Apply(t, mode)
		path := filepath.Join(a.cfg.CSVDir(), t.FileName())
		if err := derived.WriteCSV(path, t); err != nil {
			return mgerrors.NewIOError(mgerrors.CodeWriteFailed, fmt.Sprintf("failed to write %s", t.Name), err)
		}
		if _, err := a.addFile(path, manifest.KindTable, int64(len(t.Rows))); err != nil {
			return err
		}
	}
	log.Printf("derived: wrote %d tables to %s", len(tables), a.cfg.CSVDir())
	return nil
}

// addFile digests a written file and appends it to the result.
func (a *App) addFile(path, kind string, rows int64) (manifest.OutputFile, error) {
	digest, size, err := manifest.FileDigest(path)
	if err != nil {
		return manifest.OutputFile{}, mgerrors.NewIOError(mgerrors.CodeWriteFailed,
			fmt.Sprintf("failed to read back %s", path), err)
	}
	rel, err := filepath.Rel(a.cfg.Out, path)
	if err != nil {
		rel = path
	}
	f := manifest.OutputFile{
		Path:      filepath.ToSlash(rel),
		Kind:      kind,
		Rows:      rows,
		SizeBytes: size,
		Digest:    digest,
	}
	a.result.Files = append(a.result.Files, f)
	return f, nil
}

func (a *App) warn(err error) {
	a.result.Warnings = append(a.result.Warnings, err)
	log.Printf("warning: %v", err)
}
