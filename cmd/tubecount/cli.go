package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/c360/tubewatch/aggregate"
	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/output/file"
	"github.com/c360/tubewatch/storage"
	"github.com/c360/tubewatch/storage/sqlite"
)

// newCLIApp creates the tubecount application writing its report to out
func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:      "tubecount",
		Usage:     "Count YouTube video IDs in a tubewatch output file",
		Version:   Version,
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Value:   file.DefaultPath,
				Usage:   "JSONL file written by tubewatch",
				EnvVars: []string{"TUBEWATCH_OUTPUT_PATH"},
			},
			&cli.IntFlag{
				Name:    "top",
				Aliases: []string{"n"},
				Usage:   "Only list the N most frequent IDs (0 lists all, sorted by ID)",
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Also store the tally in this SQLite database",
				EnvVars: []string{"TUBECOUNT_DB"},
			},
		},
		Action: func(c *cli.Context) error {
			return runCount(c.Context, out, c.String("file"), c.Int("top"), c.String("db"))
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCount tallies path and prints the report. A missing or malformed input
// file is reported on out and is not an error.
func runCount(ctx context.Context, out io.Writer, path string, top int, dbPath string) error {
	if top < 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: --top must not be negative", errors.ErrInvalidConfig),
			"tubecount", "runCount", "validate flags")
	}

	report, err := aggregate.TallyFile(path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) {
			fmt.Fprintf(out, "Error: %s not found\n", path)
			return nil
		}
		if perr, ok := aggregate.AsParseError(err); ok {
			fmt.Fprintf(out, "Error parsing JSON: %v\n", perr)
			return nil
		}
		return err
	}

	if err := aggregate.WriteReport(out, report, top); err != nil {
		return errors.Wrap(err, "tubecount", "runCount", "write report")
	}

	if dbPath == "" {
		return nil
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ReplaceCounts(ctx, report.Entries, time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %d video IDs to %s\n", report.Unique(), dbPath)
	return nil
}

func openStore(path string) (storage.CountStore, error) {
	return sqlite.Open(path)
}
