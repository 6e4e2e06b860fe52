package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/BrandonDHaskell/timecard/internal/app"
	"github.com/BrandonDHaskell/timecard/internal/feedback"
	"github.com/BrandonDHaskell/timecard/internal/grpcapi"
	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

// SwipeOptions holds flags for the swipe command.
type SwipeOptions struct {
	*RootOptions
	ReaderID string
	Action   string
	Remote   string
	JSON     bool
}

func NewSwipeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SwipeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "swipe <badge-id>",
		Short: "Submit one swipe",
		Long: `Submit one swipe as if it came from a reader.

Without --remote the swipe is processed in this process against the
configured store.  With --remote it is sent to a running service over gRPC.

Example:
  timecard swipe 0A1B2C3D
  timecard swipe 0A1B2C3D --action OUT --remote localhost:9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwipe(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.ReaderID, "reader", "", "reader id (default: the first configured reader, or reader-001)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "IN or OUT; empty uses the reader's mode")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "gRPC address of a running service")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the response as JSON")
	return cmd
}

func runSwipe(cmd *cobra.Command, opts *SwipeOptions, badgeID string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	readerID := opts.ReaderID
	if readerID == "" {
		readerID = "reader-001"
		if cfg, err := opts.loadConfig(); err == nil && len(cfg.Readers) > 0 {
			readerID = cfg.Readers[0].ID
		}
	}
	req := types.SwipeRequest{ReaderID: readerID, CardID: badgeID, Action: opts.Action}

	var (
		resp types.SwipeResponse
		err  error
	)
	if opts.Remote != "" {
		resp, err = remoteSwipe(ctx, opts.Remote, req)
	} else {
		resp, err = localSwipe(cmd, opts, req)
	}
	if resp.ReaderID != "" {
		printSwipe(cmd.OutOrStdout(), resp, opts.JSON)
	}
	return err
}

func localSwipe(cmd *cobra.Command, opts *SwipeOptions, req types.SwipeRequest) (types.SwipeResponse, error) {
	var sink feedback.Sink = feedback.NewConsoleSink(cmd.OutOrStdout())
	if opts.JSON {
		sink = feedback.Fanout{}
	}
	a, err := opts.buildApp(cmd, app.Options{Feedback: sink})
	if err != nil {
		return types.SwipeResponse{}, err
	}
	defer a.Close()
	return a.Swipes.Handle(cmd.Context(), req)
}

func remoteSwipe(ctx context.Context, addr string, req types.SwipeRequest) (types.SwipeResponse, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return types.SwipeResponse{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	return grpcapi.NewClient(conn).SubmitSwipe(ctx, req)
}

func printSwipe(w io.Writer, resp types.SwipeResponse, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}
	fmt.Fprintf(w, "outcome=%s state=%s holder=%q reader=%s", resp.Outcome, resp.State, resp.Holder, resp.ReaderID)
	if resp.Reason != "" {
		fmt.Fprintf(w, " reason=%s", resp.Reason)
	}
	fmt.Fprintln(w)
}
