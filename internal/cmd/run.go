package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshdurbin/runtracker/internal/config"
	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/server"
	"github.com/joshdurbin/runtracker/internal/web"
	"github.com/joshdurbin/runtracker/internal/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard web server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		return Run(cfg, openBrowser)
	},
}

// Run starts the dashboard, its background workers and the HTTP server, and
// blocks until a shutdown signal or a fatal error.
func Run(cfg *config.Config, open bool) error {
	log := logging.Logger

	log.Info().
		Str("addr", cfg.Addr).
		Str("db_path", cfg.DatabasePath).
		Str("timezone", cfg.Location.String()).
		Dur("reload_interval", cfg.ReloadInterval).
		Dur("token_refresh_interval", cfg.TokenRefreshInterval).
		Msg("starting runtracker")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	mcpServer := server.New(a.dash)
	webServer, err := web.New(a.dash, a.session, web.WithMCP(mcpServer.Handler()), web.WithClock(cfg.Now))
	if err != nil {
		return err
	}

	// Start background workers with errgroup for graceful shutdown
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.dash.Run(gCtx)
	})

	tokenRefresher := workers.NewTokenRefresher(a.session, a.dash, cfg.TokenRefreshInterval)
	g.Go(func() error {
		tokenRefresher.Run(gCtx)
		return nil
	})

	autoReloader := workers.NewAutoReloader(a.dash, cfg.ReloadInterval)
	g.Go(func() error {
		autoReloader.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		return runHTTPServer(gCtx, webServer.Handler(), cfg.Addr, open)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("all workers shut down gracefully")
	return nil
}

// runHTTPServer serves handler on addr until ctx is done
func runHTTPServer(ctx context.Context, handler http.Handler, addr string, open bool) error {
	log := logging.Logger

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	url := dashboardURL(ln.Addr())
	log.Info().
		Str("address", ln.Addr().String()).
		Str("dashboard", url).
		Str("mcp", url+"mcp").
		Msg("dashboard running")

	if open {
		if err := browser.OpenURL(url); err != nil {
			log.Warn().Err(err).Msg("could not open browser")
		}
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			// Open MCP event streams never go idle.
			log.Warn().Err(err).Msg("closing remaining connections")
			return httpServer.Close()
		}
		return nil
	case err := <-errChan:
		return err
	}
}

// dashboardURL turns a listen address into a browsable URL. Wildcard hosts
// become localhost.
func dashboardURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String() + "/"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("http://%s:%s/", host, port)
}
