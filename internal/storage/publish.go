package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"

	mgerrors "github.com/nocsaren/GA-mock-to-html/internal/errors"
)

// LedgerDir holds local run state and is never published.
const LedgerDir = ".mockgen"

// PublishOptions controls a publish.
type PublishOptions struct {
	// Prefix is prepended to every object path.
	Prefix string
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// PublishResult lists what a publish did, by object path.
type PublishResult struct {
	Uploaded []string
	Skipped  []string
	Bytes    int64
}

type localFile struct {
	path   string
	object string
	size   int64
}

// Publish uploads every file under root to store. Objects whose ETag
// already matches the local MD5 are skipped. The ledger directory is left
// out.
func Publish(ctx context.Context, store ObjectStorage, root string, opts PublishOptions) (*PublishResult, error) {
	files, total, err := collect(root, opts.Prefix)
	if err != nil {
		return nil, mgerrors.NewIOError(mgerrors.CodeWriteFailed, fmt.Sprintf("failed to walk %s", root), err)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("publishing"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	result := &PublishResult{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		local, err := fileMD5(f.path)
		if err != nil {
			return result, mgerrors.NewIOError(mgerrors.CodeWriteFailed, fmt.Sprintf("failed to hash %s", f.path), err)
		}

		remote, err := store.ETag(ctx, f.object)
		switch {
		case err == nil && remote == local:
			result.Skipped = append(result.Skipped, f.object)
		case err == nil || errors.Is(err, ErrObjectNotFound):
			if _, err := store.Upload(ctx, f.path, f.object); err != nil {
				return result, mgerrors.NewStorageError(mgerrors.CodeUploadFailed,
					fmt.Sprintf("failed to publish %s", f.object), err)
			}
			result.Uploaded = append(result.Uploaded, f.object)
			result.Bytes += f.size
		default:
			return result, mgerrors.NewStorageError(mgerrors.CodeUploadFailed,
				fmt.Sprintf("failed to stat %s", f.object), err)
		}

		if bar != nil {
			_ = bar.Add64(f.size)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	log.Printf("publish: %d uploaded, %d unchanged", len(result.Uploaded), len(result.Skipped))
	return result, nil
}

// collect lists the files under root in lexical order with their object
// paths.
func collect(root, prefix string) ([]localFile, int64, error) {
	var files []localFile
	var total int64
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == LedgerDir && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, localFile{
			path:   p,
			object: path.Join(prefix, filepath.ToSlash(rel)),
			size:   info.Size(),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].object < files[j].object })
	return files, total, nil
}
