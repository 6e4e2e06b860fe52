package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/timecard/internal/app"
	"github.com/BrandonDHaskell/timecard/internal/feedback"
)

func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rewrite Status rows that disagree with the ledger",
		Long: `Compare every badge's Status row with its last ledger row and rewrite the
ones that disagree.  The ledger itself is never modified; badges whose
history does not alternate IN/OUT are listed for manual review.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.buildApp(cmd, app.Options{Feedback: feedback.Fanout{}})
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Engine.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "checked %s\n", english.Plural(rep.Badges, "badge", "badges"))
			fmt.Fprintf(w, "repaired: %s\n", list(rep.Repaired))
			fmt.Fprintf(w, "flushed: %s\n", list(rep.Flushed))
			fmt.Fprintf(w, "irregular: %s\n", list(rep.Irregular))
			return nil
		},
	}
}

func list(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
