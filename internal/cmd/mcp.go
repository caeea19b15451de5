package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/server"
	"github.com/joshdurbin/runtracker/internal/workers"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Runs the MCP server over stdio for assistants that launch it as a
subprocess. Sign in with "runtracker login" or the dashboard first; this mode
has no browser sign-in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return a.dash.Run(gCtx)
		})

		tokenRefresher := workers.NewTokenRefresher(a.session, a.dash, cfg.TokenRefreshInterval)
		g.Go(func() error {
			tokenRefresher.Run(gCtx)
			return nil
		})

		g.Go(func() error {
			// The client closing stdin ends the session.
			defer cancel()
			err := server.New(a.dash).Run(gCtx)
			if err != nil && gCtx.Err() != nil {
				return nil
			}
			return err
		})

		err = g.Wait()
		logging.Logger.Debug().Msg("mcp session ended")
		return err
	},
}
