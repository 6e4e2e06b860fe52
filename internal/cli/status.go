package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/timecard/internal/app"
	"github.com/BrandonDHaskell/timecard/internal/feedback"
	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	History int
}

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <badge-id>",
		Short: "Show a badge's attendance state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.buildApp(cmd, app.Options{Feedback: feedback.Fanout{}})
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.Engine.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), snap, time.Now())

			if opts.History > 0 {
				entries, err := a.Engine.Records(cmd.Context(), attendance.EntryFilter{BadgeID: snap.BadgeID, Limit: opts.History})
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), entries)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.History, "history", 0, "also print the last N ledger rows")
	return cmd
}

func printStatus(w io.Writer, snap attendance.Snapshot, now time.Time) {
	fmt.Fprintf(w, "%s  %s", snap.BadgeID, snap.State)
	if snap.HolderName != "" {
		fmt.Fprintf(w, "  %s", snap.HolderName)
	}
	if snap.AsOf.IsZero() {
		fmt.Fprint(w, "  (never swiped)")
	} else {
		fmt.Fprintf(w, "  since %s", humanize.RelTime(snap.AsOf, now, "ago", "from now"))
	}
	if snap.Pending {
		fmt.Fprint(w, "  [status write pending]")
	}
	fmt.Fprintln(w)
}

func printHistory(w io.Writer, entries []attendance.LedgerEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "  %s %s  %-3s  %s\n", e.Date, e.Time, e.Action, e.HolderName)
	}
	fmt.Fprintf(w, "%s shown\n", english.Plural(len(entries), "record", "records"))
}
