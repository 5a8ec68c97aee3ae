package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"gridgen/internal/capture"
	appLog "gridgen/internal/log"
	"gridgen/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve schedule previews over HTTP",
		Long: `Serve JSON, ICS and HTML views of the configured schedule. The default
schedule is regenerated on the server.refresh cron expression.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Server.Listen = listen
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			err := web.NewServer(a.cfg, a.planner).Run(ctx)
			appLog.Info("server stopped")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides config)")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		opts capture.Options
		out  string
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save a PNG of the HTML calendar",
		Long: `Capture the /calendar page with headless Chromium. Without --url a
temporary local server is started for the capture.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if opts.URL == "" {
				url, stop, err := serveLocal(ctx, web.NewServer(a.cfg, a.planner).Handler())
				if err != nil {
					return err
				}
				defer stop()
				opts.URL = url + "/calendar"
			}
			if err := capture.CaptureFile(ctx, opts, out); err != nil {
				return err
			}
			notify(cmd, "Wrote %s", out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.URL, "url", "", "Calendar page URL (default: temporary local server)")
	f.StringVarP(&out, "out", "o", "calendar.png", "Output PNG path")
	f.IntVar(&opts.Width, "width", capture.DefaultWidth, "Viewport width")
	f.IntVar(&opts.Height, "height", capture.DefaultHeight, "Viewport height")
	f.DurationVar(&opts.Timeout, "timeout", capture.DefaultTimeout, "Capture timeout")
	f.DurationVar(&opts.Settle, "settle", 300*time.Millisecond, "Extra wait after the page is ready")
	return cmd
}

// serveLocal serves h on a loopback port until stop is called.
func serveLocal(ctx context.Context, h http.Handler) (string, func(), error) {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("snapshot server failed", err)
		}
	}()
	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}
