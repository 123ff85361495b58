package app

import (
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/nocsaren/GA-mock-to-html/internal/config"
	"github.com/nocsaren/GA-mock-to-html/internal/manifest"
	"github.com/nocsaren/GA-mock-to-html/internal/storage"
)

func newRunRecord(cfg *config.Config) *manifest.RunRecord {
	return &manifest.RunRecord{
		Seed:      cfg.Seed,
		Users:     cfg.Users,
		Days:      cfg.Days,
		Kind:      string(cfg.Kind),
		StartedAt: time.Now().UTC(),
	}
}

// record stores the run in the ledger and compares it with the latest
// earlier run of the same configuration. Ledger problems are warnings: the
// outputs are already complete.
func (a *App) record(ctx context.Context, run *manifest.RunRecord) {
	ledger, err := manifest.OpenLedger(a.cfg.Ledger.Path)
	if err != nil {
		a.warn(err)
		return
	}
	defer ledger.Close()

	previous, err := ledger.FindByDigest(ctx, run.ConfigDigest)
	if err != nil {
		a.warn(err)
	}

	run.Files = a.result.Files
	run.FinishedAt = time.Now().UTC()
	for _, w := range a.result.Warnings {
		run.Warnings = append(run.Warnings, w.Error())
	}

	if len(previous) > 0 {
		last := previous[len(previous)-1]
		if diverged := manifest.Diverged(last, run); len(diverged) > 0 {
			a.result.Diverged = diverged
			log.Printf("warning: ledger: %d files differ from run %s with the same configuration: %v",
				len(diverged), last.RunID, diverged)
		}
	}

	if err := ledger.Record(ctx, run); err != nil {
		a.warn(err)
		return
	}
	a.result.RunID = run.RunID
	log.Printf("ledger: recorded run %s in %s", run.RunID, ledger.Path())
}

// store builds the object store the configuration publishes to.
func (a *App) store(ctx context.Context) (storage.ObjectStorage, error) {
	switch a.cfg.Publish.Type {
	case config.PublishLocal:
		return storage.NewLocalStorage(a.cfg.Publish.Path)
	case config.PublishS3:
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Publish.S3.Region != "" {
			s3Cfg.Region = a.cfg.Publish.S3.Region
		}
		s3Cfg.Endpoint = a.cfg.Publish.S3.Endpoint
		return storage.NewS3Storage(ctx, a.cfg.Publish.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported publish type: %s", a.cfg.Publish.Type)
	}
}

func (a *App) publish(ctx context.Context) (*storage.PublishResult, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	log.Printf("publish: %s", a.publishTarget())

	opts := storage.PublishOptions{Progress: a.opts.Progress}
	if a.cfg.Publish.Type == config.PublishS3 {
		opts.Prefix = a.cfg.Publish.S3.Prefix
	}
	return storage.Publish(ctx, store, a.cfg.Out, opts)
}

func (a *App) publishTarget() string {
	switch a.cfg.Publish.Type {
	case config.PublishLocal:
		return a.cfg.Publish.Path
	case config.PublishS3:
		return "s3://" + path.Join(a.cfg.Publish.S3.Bucket, a.cfg.Publish.S3.Prefix)
	default:
		return ""
	}
}
