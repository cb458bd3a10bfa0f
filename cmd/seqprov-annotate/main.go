// Command seqprov-annotate propagates sample and study provenance from
// the ML warehouse onto a sequencing run folder in object storage: it
// resolves the storage targets for one (experiment, instrument
// position), applies the derived metadata tags, and applies the derived
// access grants recursively.
//
// With -since, it instead lists the (experiment, position) pairs updated
// in the warehouse at or after the given time; deciding which of those
// to annotate, and when, is left to the caller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"seqprov/internal/infra/warehouse/postgres"
	"seqprov/internal/infra/warehouse/sqlite"
	"seqprov/internal/ont"
	"seqprov/internal/storage"
	"seqprov/internal/warehouse"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("seqprov-annotate", flag.ContinueOnError)
	var (
		root        = fs.String("root", "", "storage path of the run folder to annotate")
		experiment  = fs.String("experiment", "", "experiment name")
		position    = fs.Int("position", 0, "instrument position")
		since       = fs.String("since", "", "list recent (experiment, position) pairs updated at or after this RFC 3339 time, then exit")
		groupPrefix = fs.String("group-prefix", ont.DefaultGroupPrefix, "prefix forming the study access principal")
		verbose     = fs.Bool("v", false, "enable debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := newStderrLogger(*verbose)
	ctx := context.Background()

	wh, closeWH, err := openWarehouse(ctx)
	if err != nil {
		logger.Error("open warehouse", "error", err)
		return 1
	}
	defer closeWH()

	if *since != "" {
		t, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			logger.Error("parse -since", "error", err)
			return 2
		}
		return listRecent(ctx, wh, t)
	}

	if *root == "" || *experiment == "" || *position <= 0 {
		fmt.Fprintln(os.Stderr, "-root, -experiment and -position are required (or use -since)")
		fs.Usage()
		return 2
	}

	store, err := storage.Open(ctx)
	if err != nil {
		logger.Error("open storage", "error", err)
		return 1
	}

	annotator := ont.NewAnnotator(store,
		ont.WithLogger(logger),
		ont.WithGroupPrefix(*groupPrefix))

	report, err := annotator.AnnotateResultsCollection(ctx, wh, *root, *experiment, *position)
	if err != nil {
		logger.Error("annotation aborted", "experiment", *experiment, "position", *position, "error", err)
		return 1
	}
	for _, p := range report.Annotated {
		logger.Info("annotated target", "path", p)
	}
	for _, f := range report.Failures {
		logger.Error("target failed", "path", f.Path, "tag_identifier", f.TagIdentifier, "error", f.Err)
	}
	if !report.OK() {
		return 1
	}
	return 0
}

// openWarehouse selects a warehouse backend from the environment:
//
//	SEQPROV_MLWH_DRIVER: postgres|sqlite (default postgres)
//	SEQPROV_MLWH_DSN: Postgres DSN
//	SEQPROV_MLWH_SQLITE_PATH: SQLite database file
func openWarehouse(ctx context.Context) (warehouse.Warehouse, func(), error) {
	driver := os.Getenv("SEQPROV_MLWH_DRIVER")
	if driver == "" {
		driver = "postgres"
	}
	switch driver {
	case "postgres":
		s, err := postgres.OpenFromEnv(ctx)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "sqlite":
		s, err := sqlite.NewStore(os.Getenv("SEQPROV_MLWH_SQLITE_PATH"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown warehouse driver %s", driver)
	}
}

func listRecent(ctx context.Context, wh warehouse.Warehouse, since time.Time) int {
	positions, err := wh.RecentPositions(ctx, since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list recent positions: %v\n", err)
		return 1
	}
	for _, ep := range positions {
		fmt.Printf("%s\t%d\n", ep.ExperimentName, ep.InstrumentPosition)
	}
	return 0
}

// stderrLogger writes key=value lines via the standard log package.
type stderrLogger struct {
	l     *log.Logger
	debug bool
}

func newStderrLogger(debug bool) *stderrLogger {
	return &stderrLogger{l: log.New(os.Stderr, "", log.LstdFlags|log.LUTC), debug: debug}
}

func (s *stderrLogger) emit(level, msg string, args []any) {
	line := level + " " + msg
	for i := 0; i+1 < len(args); i += 2 {
		line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	s.l.Println(line)
}

func (s *stderrLogger) Debug(msg string, args ...any) {
	if s.debug {
		s.emit("DEBUG", msg, args)
	}
}
func (s *stderrLogger) Info(msg string, args ...any)  { s.emit("INFO", msg, args) }
func (s *stderrLogger) Warn(msg string, args ...any)  { s.emit("WARN", msg, args) }
func (s *stderrLogger) Error(msg string, args ...any) { s.emit("ERROR", msg, args) }
