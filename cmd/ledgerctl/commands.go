package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/FACorreiaa/poker-ledger/internal/app"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/repository"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
	importservice "github.com/FACorreiaa/poker-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/poker-ledger/internal/domain/reclassify"
	"github.com/FACorreiaa/poker-ledger/pkg/config"
	"github.com/FACorreiaa/poker-ledger/pkg/cron"
	"github.com/FACorreiaa/poker-ledger/pkg/interceptors"
	"github.com/FACorreiaa/poker-ledger/pkg/logger"
	"github.com/FACorreiaa/poker-ledger/pkg/storage"
)

func ownerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "owner",
		Usage:    "owner id (uuid) the records belong to",
		Required: true,
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "ledgerctl",
		Usage:     "poker ledger maintenance",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "import one or more export files",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{Name: "room", Usage: "room label overriding the detected one"},
					&cli.BoolFlag{Name: "archive", Usage: "archive the files like API uploads"},
					&cli.BoolFlag{Name: "dry-run", Usage: "classify and deduplicate in memory without touching the database"},
					&cli.IntFlag{Name: "header-row", Usage: "1-based line holding the column headers (detected when unset)"},
					&cli.StringFlag{Name: "delimiter", Usage: "field separator: tab, comma, semicolon, pipe or a single character"},
				},
				Action: importAction,
			},
			{
				Name:  "purge",
				Usage: "delete an owner's records",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{Name: "room", Usage: "only delete records of this room"},
					&cli.BoolFlag{Name: "yes", Usage: "confirm the deletion"},
				},
				Action: purgeAction,
			},
			{
				Name:   "reclassify",
				Usage:  "backfill buy-in tiers and game types for one owner",
				Flags:  []cli.Flag{ownerFlag()},
				Action: reclassifyAction,
			},
			{
				Name:   "sweep",
				Usage:  "reclassify every owner once",
				Action: sweepAction,
			},
			{
				Name:  "token",
				Usage: "issue an API token for an owner",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: tokenAction,
			},
		},
	}
}

func parseOwner(c *cli.Context) (uuid.UUID, error) {
	owner, err := uuid.Parse(c.String("owner"))
	if err != nil {
		return uuid.Nil, cli.Exit(fmt.Sprintf("invalid --owner: %v", err), 2)
	}
	return owner, nil
}

// withDeps loads configuration, connects and runs fn.
func withDeps(c *cli.Context, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	deps, err := app.InitDependencies(cfg, newLogger(c))
	if err != nil {
		return err
	}
	defer deps.Cleanup()
	return fn(c.Context, deps)
}

func importAction(c *cli.Context) error {
	owner, err := parseOwner(c)
	if err != nil {
		return err
	}
	if c.NArg() == 0 {
		return cli.Exit("no files given", 2)
	}
	layout, err := layoutFlags(c)
	if err != nil {
		return err
	}

	if c.Bool("dry-run") {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		svc, err := dryRunService(cfg, newLogger(c))
		if err != nil {
			return err
		}
		return importFiles(c, owner, layout, svc, nil)
	}

	return withDeps(c, func(_ context.Context, deps *app.Dependencies) error {
		var archive storage.Archive
		if c.Bool("archive") {
			archive = deps.Archive
		}
		return importFiles(c, owner, layout, deps.ImportService, archive)
	})
}

func layoutFlags(c *cli.Context) (sniffer.Options, error) {
	var layout sniffer.Options
	if c.IsSet("header-row") {
		if layout.HeaderRow = c.Int("header-row"); layout.HeaderRow < 1 {
			return layout, cli.Exit("--header-row must be 1 or more", 2)
		}
	}
	d, err := sniffer.ParseDelimiter(c.String("delimiter"))
	if err != nil {
		return layout, cli.Exit(fmt.Sprintf("--delimiter: %v", err), 2)
	}
	layout.Delimiter = d
	return layout, nil
}

// dryRunService runs the pipeline against an in-memory store.
func dryRunService(cfg *config.Config, log *slog.Logger) (*importservice.ImportService, error) {
	categorizer, err := app.NewCategorizer(cfg.Import)
	if err != nil {
		return nil, err
	}
	store := repository.NewMemoryStore()
	return importservice.NewImportService(store, categorizer, log).
		WithReclassifier(reclassify.New(store, categorizer.TierScheme(), log)).
		WithOptions(importservice.Options{
			ChunkSize:        cfg.Import.ChunkSize,
			ProgressEvery:    cfg.Import.ProgressEvery,
			DuplicatePreview: cfg.Import.DuplicatePreview,
			DedupMode:        cfg.Import.DedupMode,
		}), nil
}

func importFiles(c *cli.Context, owner uuid.UUID, layout sniffer.Options, svc *importservice.ImportService, archive storage.Archive) error {
	ctx := c.Context
	var failed int
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		name := filepath.Base(path)
		if archive != nil {
			if _, err := archive.Save(ctx, owner, name, data); err != nil {
				fmt.Fprintf(c.App.ErrWriter, "%s: failed to archive: %v\n", path, err)
			}
		}

		res, err := svc.Import(ctx, importservice.Request{
			Owner:    owner,
			Filename: name,
			Data:     data,
			Room:     c.String("room"),
			Layout:   layout,
		})
		if err != nil {
			failed++
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
		}
		if err := printJSON(c.App.Writer, res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, c.NArg()), 1)
	}
	return nil
}

func purgeAction(c *cli.Context) error {
	owner, err := parseOwner(c)
	if err != nil {
		return err
	}
	if !c.Bool("yes") {
		return cli.Exit("refusing to delete records without --yes", 2)
	}

	var room *string
	if c.IsSet("room") {
		r := c.String("room")
		room = &r
	}
	return withDeps(c, func(ctx context.Context, deps *app.Dependencies) error {
		n, err := deps.RecordStore.DeleteBy(ctx, owner, room)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted %d records\n", n)
		return nil
	})
}

func reclassifyAction(c *cli.Context) error {
	owner, err := parseOwner(c)
	if err != nil {
		return err
	}
	return withDeps(c, func(ctx context.Context, deps *app.Dependencies) error {
		res, err := deps.Reclassifier.Run(ctx, owner)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, res)
	})
}

func sweepAction(c *cli.Context) error {
	return withDeps(c, func(ctx context.Context, deps *app.Dependencies) error {
		sched := deps.Scheduler
		if sched == nil {
			sched = cron.NewScheduler("@daily", deps.RecordStore, deps.Reclassifier, deps.Logger)
		}
		res, err := sched.Sweep(ctx)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, res)
	})
}

func tokenAction(c *cli.Context) error {
	owner, err := parseOwner(c)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAuth(); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if c.Duration("ttl") <= 0 {
		return cli.Exit("--ttl must be positive", 2)
	}

	auth := interceptors.NewAuthenticator(cfg.Auth.JWTSecret, slog.New(slog.NewTextHandler(io.Discard, nil)))
	token, err := auth.Sign(owner, c.Duration("ttl"))
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func newLogger(c *cli.Context) *slog.Logger {
	return logger.NewWithWriter(c.App.ErrWriter, c.String("log-level"), "text")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
