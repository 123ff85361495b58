// Package main implements the mockgen binary, which writes a synthetic GA4
// export of the quiz game and the analytics tables derived from it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nocsaren/GA-mock-to-html/internal/app"
	"github.com/nocsaren/GA-mock-to-html/internal/config"
	"github.com/nocsaren/GA-mock-to-html/internal/manifest"
)

var (
	version = "dev"
	commit  = "unknown"
)

type flags struct {
	configFile  string
	envFile     string
	out         string
	schemaFrom  string
	kind        string
	seed        int64
	users       int
	days        int
	publish     string
	publishPath string
	s3Bucket    string
	noLedger    bool
	listRuns    bool
	progress    bool
	verbose     bool
	showVersion bool
}

func main() {
	var f flags
	flag.StringVar(&f.out, "out", config.DefaultOut, "Output root directory")
	flag.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&f.envFile, "env-file", "", "Path to a .env file loaded before the environment")
	flag.StringVar(&f.schemaFrom, "schema-from", "", "Directory of reference CSVs whose headers are mirrored")
	flag.StringVar(&f.kind, "kind", string(config.KindRaw), "Outputs to write: raw, derived, both")
	flag.Int64Var(&f.seed, "seed", 0, "Random seed")
	flag.IntVar(&f.users, "users", 0, "Number of simulated users")
	flag.IntVar(&f.days, "days", 0, "Number of simulated days")
	flag.StringVar(&f.publish, "publish", config.PublishNone, "Publish the output tree: none, local, s3")
	flag.StringVar(&f.publishPath, "publish-path", "", "Target directory for --publish local")
	flag.StringVar(&f.s3Bucket, "s3-bucket", "", "Target bucket for --publish s3")
	flag.BoolVar(&f.noLedger, "no-ledger", false, "Do not record the run in the ledger")
	flag.BoolVar(&f.listRuns, "list-runs", false, "List the runs recorded under --out and exit")
	flag.BoolVar(&f.progress, "progress", false, "Show a progress bar while publishing")
	flag.BoolVar(&f.verbose, "verbose", false, "Log optional steps that were skipped")
	flag.BoolVar(&f.showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mockgen - synthetic GA4 export generator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: mockgen [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mockgen --kind both --users 200 --days 30\n")
		fmt.Fprintf(os.Stderr, "  mockgen --config mock.yaml --schema-from ./reference\n")
		fmt.Fprintf(os.Stderr, "  mockgen --kind derived --publish s3 --s3-bucket analytics-fixtures\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MOCKGEN_SEED, MOCKGEN_USERS, MOCKGEN_DAYS, MOCKGEN_KIND, MOCKGEN_OUT\n")
		fmt.Fprintf(os.Stderr, "  MOCKGEN_SCHEMA_FROM       Reference CSV directory\n")
		fmt.Fprintf(os.Stderr, "  MOCKGEN_PUBLISH_TYPE      Publish type (none, local, s3)\n")
		fmt.Fprintf(os.Stderr, "  MOCKGEN_S3_*              Bucket, region, endpoint and prefix\n")
	}

	flag.Parse()

	if f.showVersion {
		fmt.Printf("mockgen version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if f.listRuns {
		if err := listRuns(cfg); err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	opts := app.Options{Verbose: f.verbose}
	if f.progress {
		opts.Progress = os.Stderr
	}

	start := time.Now()
	result, err := app.Run(ctx, cfg, opts)
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	printResult(cfg, result, time.Since(start))
}

// loadConfig layers defaults, the config file, the environment and the
// flags set on the command line, in that order.
func loadConfig(f flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		loaded, err := config.LoadFromFile(f.configFile)
		if err != nil {
			log.Printf("warning: %v; using defaults", err)
		} else {
			cfg = loaded
		}
	}

	if f.envFile != "" {
		if err := config.LoadDotEnv(f.envFile); err != nil {
			return nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "out":
			cfg.Out = f.out
		case "schema-from":
			cfg.SchemaFrom = f.schemaFrom
		case "kind":
			cfg.Kind = config.Kind(f.kind)
		case "seed":
			cfg.Seed = f.seed
		case "users":
			cfg.Users = f.users
		case "days":
			cfg.Days = f.days
		case "publish":
			cfg.Publish.Type = f.publish
		case "publish-path":
			cfg.Publish.Path = f.publishPath
		case "s3-bucket":
			cfg.Publish.S3.Bucket = f.s3Bucket
		case "no-ledger":
			cfg.Ledger.Enabled = !f.noLedger
		}
	})

	cfg.Resolve()
	return cfg, nil
}

func listRuns(cfg *config.Config) error {
	ledger, err := manifest.OpenLedger(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.List(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("No runs recorded in %s\n", ledger.Path())
		return nil
	}
	for _, r := range runs {
		var size int64
		for _, file := range r.Files {
			size += file.SizeBytes
		}
		fmt.Printf("%s  %s  seed=%d users=%d days=%d kind=%s  %d files, %s\n",
			r.RunID, humanize.Time(r.StartedAt), r.Seed, r.Users, r.Days, r.Kind,
			len(r.Files), humanize.Bytes(uint64(size)))
	}
	return nil
}

func printResult(cfg *config.Config, result *app.Result, elapsed time.Duration) {
	fmt.Printf("Generated %s events in %v\n", humanize.Comma(result.Events), elapsed.Round(time.Millisecond))
	for _, f := range result.Files {
		fmt.Printf("  %-48s %10s\n", f.Path, humanize.Bytes(uint64(f.SizeBytes)))
	}
	fmt.Printf("Output: %s\n", cfg.Out)

	if result.Published != nil {
		fmt.Printf("Published %d files (%s), %d unchanged\n",
			len(result.Published.Uploaded), humanize.Bytes(uint64(result.Published.Bytes)),
			len(result.Published.Skipped))
	}
	if result.RunID != "" {
		fmt.Printf("Run: %s\n", result.RunID)
	}
	if n := len(result.Warnings); n > 0 {
		fmt.Printf("%d warnings\n", n)
	}
}
