package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/timecard/internal/db"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			conn, err := db.Open(cmd.Context(), db.Config{Path: cfg.DB.Path, Env: cfg.Env})
			if err != nil {
				return err
			}
			defer conn.Close()

			if seed {
				if err := db.SeedDev(cmd.Context(), conn, db.SeedDevOptions{Readers: cfg.ReaderIDs()}); err != nil {
					return err
				}
			}
			ms, err := db.Status(cmd.Context(), conn)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range ms {
				applied := "pending"
				if !m.AppliedAt.IsZero() {
					applied = humanize.Time(m.AppliedAt)
				}
				fmt.Fprintf(out, "%04d  %-24s %s\n", m.Version, m.Name, applied)
			}
			fmt.Fprintf(out, "database %s is up to date\n", cfg.DB.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "commission the configured readers (or reader-001)")
	return cmd
}
