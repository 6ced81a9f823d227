package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/target.range/internal/api"
	"github.com/banshee-data/target.range/internal/db"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		listen string
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded sessions, events and scores over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.tuning()
			if err != nil {
				return err
			}
			d, err := db.NewDB(dbPath)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return serveHTTP(ctx, listen, api.Options{
				DB:            d,
				StageDuration: cfg.GetStageDuration().Seconds(),
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "Listen address")
	cmd.Flags().StringVar(&dbPath, "db", "range.db", "Session database")
	return cmd
}

// serveHTTP runs the API until ctx is cancelled, then shuts down.
func serveHTTP(ctx context.Context, listen string, opts api.Options) error {
	mux, err := api.NewServer(opts).ServeMux()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logf("serving API on %s", ln.Addr())

	errc := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			logf("HTTP server force close error: %v", err)
		}
	}
	return <-errc
}
