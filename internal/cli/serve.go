package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/timecard/internal/app"
	"github.com/BrandonDHaskell/timecard/internal/grpcapi"
	"github.com/BrandonDHaskell/timecard/internal/httpapi"
	"github.com/BrandonDHaskell/timecard/internal/reader"
	"github.com/BrandonDHaskell/timecard/internal/timecard/service"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the attendance service",
		Long: `Run the HTTP and gRPC APIs, the local reader loops, the status repairer
and the retention pruner until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(parent context.Context, opts *RootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := app.NewLogger("timecard ", cfg.Logging.File)
	if err != nil {
		return err
	}
	defer closeLog()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.Pruner.Start(ctx)
	defer a.Pruner.Stop()
	a.Repairer.Start(ctx)
	defer a.Repairer.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if cfg.HTTP.Addr != "" {
		srv := httpapi.NewServer(httpapi.Dependencies{
			Logger:           logger,
			Addr:             cfg.HTTP.Addr,
			HeartbeatService: a.Heartbeat,
			SwipeService:     a.Swipes,
			Engine:           a.Engine,
			Metrics:          a.Metrics.Handler(),
		})
		g.Go(func() error {
			logger.Printf("http listening on %s", cfg.HTTP.Addr)
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		gs := grpcapi.NewServer(grpcapi.Dependencies{
			Logger:           logger,
			SwipeService:     a.Swipes,
			HeartbeatService: a.Heartbeat,
			Engine:           a.Engine,
		}).NewGRPCServer()
		g.Go(func() error {
			logger.Printf("grpc listening on %s", cfg.GRPC.Addr)
			return gs.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	for _, rc := range cfg.Readers {
		if rc.Device == "" {
			continue
		}
		src, err := openDevice(rc.Device)
		if err != nil {
			return fmt.Errorf("reader %s: %w", rc.ID, err)
		}
		defer src.Close()
		loop := &service.ReaderLoop{
			ReaderID: rc.ID,
			Source:   src,
			Swipes:   a.Swipes,
			Logger:   logger,
		}
		g.Go(func() error {
			logger.Printf("reader %s polling %s", rc.ID, rc.Device)
			err := loop.Run(ctx)
			if errors.Is(err, reader.ErrClosed) {
				logger.Printf("reader %s closed", rc.ID)
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	logger.Printf("shutdown complete")
	return err
}

func openDevice(path string) (reader.Source, error) {
	if path == "stdin" || path == "-" {
		return reader.NewLineReader(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return reader.NewLineReader(f), nil
}
