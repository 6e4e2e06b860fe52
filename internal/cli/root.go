// Package cli holds the cobra commands of the timecard binary.
package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/timecard/internal/app"
	"github.com/BrandonDHaskell/timecard/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Backend    string
	Verbose    bool
}

// NewRootCommand creates the root command for the timecard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "timecard",
		Short: "Badge attendance recorder",
		Long: `timecard records badge swipes as IN/OUT attendance events.

Each accepted swipe appends a row to the Records ledger and updates the
badge's row in the Status sheet.  Sheets live in SQLite, Google Sheets or
memory, selected by store.backend.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "override store.backend (sqlite|sheets|memory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr in one-shot commands")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSwipeCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Backend != "" {
		cfg.Store.Backend = o.Backend
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// oneShotLogger discards service logs unless --verbose is set.
func (o *RootOptions) oneShotLogger(cmd *cobra.Command) *log.Logger {
	if o.Verbose {
		return log.New(cmd.ErrOrStderr(), "timecard ", log.LstdFlags|log.LUTC)
	}
	return log.New(io.Discard, "", 0)
}

// buildApp loads config and builds the graph for a one-shot command.
func (o *RootOptions) buildApp(cmd *cobra.Command, opt app.Options) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Build(cmd.Context(), cfg, o.oneShotLogger(cmd), opt)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return a, nil
}
