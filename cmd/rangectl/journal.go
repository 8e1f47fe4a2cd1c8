package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	flag "github.com/spf13/pflag"

	"github.com/ernie/range-dashboard/internal/storage"
)

// cmdJournal prints recent rows from the diagnostics journal
func cmdJournal(args []string) {
	what := "frames"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		what, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	g := addGlobalFlags(fs)
	path := fs.String("journal", "", "journal file (default: from config)")
	limit := fs.Int("limit", 20, "number of rows to show")
	fs.Parse(args)

	cfg := g.load()
	if *path != "" {
		cfg.Journal.Path = *path
	}
	if cfg.Journal.Path == "" {
		fatalf("no journal configured (use --journal or RANGE_JOURNAL_PATH)")
	}

	store, err := storage.New(cfg.Journal.Path)
	if err != nil {
		fatalf("failed to open journal: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	switch what {
	case "connections":
		err = printConnections(ctx, store, *limit)
	case "frames":
		err = printFrames(ctx, store, "", *limit)
	case "rejected":
		err = printFrames(ctx, store, storage.OutcomeRejected, *limit)
	case "feed":
		err = printFeed(ctx, store, *limit)
	default:
		fatalf("unknown journal view: %s (use: connections, frames, rejected, feed)", what)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func printConnections(ctx context.Context, store *storage.Store, limit int) error {
	conns, err := store.RecentConnections(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tGEN\tOPENED\tCLOSED\tERROR")
	fmt.Fprintln(w, "-------\t---\t------\t------\t-----")
	for _, c := range conns {
		closed := "-"
		if c.ClosedAt != nil {
			closed = c.ClosedAt.Local().Format("15:04:05")
		}
		opened := "no"
		if c.Opened {
			opened = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", c.StartedAt.Local().Format("2006-01-02 15:04:05"),
			c.Generation, opened, closed, truncate(c.CloseError, 60))
	}
	return w.Flush()
}

func printFrames(ctx context.Context, store *storage.Store, outcome string, limit int) error {
	counts, err := store.CountFrames(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Applied: %d  Rejected: %d  Stale: %d\n\n",
		counts[storage.OutcomeApplied], counts[storage.OutcomeRejected], counts[storage.OutcomeStale])

	frames, err := store.RecentFrames(ctx, outcome, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECEIVED\tTYPE\tOUTCOME\tSIZE\tDETAIL")
	fmt.Fprintln(w, "--------\t----\t-------\t----\t------")
	for _, f := range frames {
		detail := f.Change
		if f.Outcome == storage.OutcomeRejected {
			detail = f.Error
			if len(f.Raw) > 0 {
				detail += " " + string(f.Raw)
			}
		}
		msgType := f.MessageType
		if msgType == "" {
			msgType = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", f.ReceivedAt.Local().Format("15:04:05"),
			msgType, f.Outcome, f.RawSize, truncate(detail, 80))
	}
	return w.Flush()
}

func printFeed(ctx context.Context, store *storage.Store, limit int) error {
	lines, err := store.RecentFeed(ctx, limit)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		fmt.Println("No hits recorded")
		return nil
	}
	for _, l := range lines {
		fmt.Printf("%s %s\n", l.At.Local().Format("2006-01-02 15:04:05"), l.Text)
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
