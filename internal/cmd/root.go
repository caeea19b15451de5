package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshdurbin/runtracker/internal/config"
	"github.com/joshdurbin/runtracker/internal/logging"
)

var (
	verbosity            int
	dbPath               string
	addr                 string
	reloadInterval       time.Duration
	tokenRefreshInterval time.Duration
	openBrowser          bool
)

var rootCmd = &cobra.Command{
	Use:   "runtracker",
	Short: "runtracker - weekly running mileage from your Strava history",
	Long: `runtracker is a single-user running dashboard. It connects to your Strava
account, loads your runs for a selected time window and shows weekly mileage,
daily splits and per-run summaries in the browser.

Running without a subcommand starts the dashboard (same as "serve"):
- Web dashboard with OAuth sign-in at http://localhost:8089
- Background token refresh to keep the Strava session valid
- Periodic reload of the selected window
- MCP tools for AI assistants at /mcp
- Prometheus metrics at /metrics

Configuration comes from the environment or a .env file in the working
directory. STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET are required; create an
API application at https://www.strava.com/settings/api with the callback
domain "localhost". Flags override the environment.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging based on verbosity before any command runs
		logging.Setup(logging.Level(verbosity))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		return Run(cfg, openBrowser)
	},
}

func init() {
	// Logging verbosity
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v for debug, -vv for trace with HTTP headers)")

	// Runtime settings as CLI flags; each overrides its environment variable
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDatabasePath, "path to SQLite database file (RUNTRACKER_DB)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", config.DefaultAddr, "dashboard listen address (RUNTRACKER_ADDR)")
	rootCmd.PersistentFlags().DurationVar(&reloadInterval, "reload-interval", config.DefaultReloadInterval, "interval between automatic reloads, 0 disables (RUNTRACKER_RELOAD_INTERVAL)")
	rootCmd.PersistentFlags().DurationVar(&tokenRefreshInterval, "token-refresh-interval", config.DefaultTokenRefreshInterval, "interval between token refresh checks (RUNTRACKER_TOKEN_REFRESH_INTERVAL)")
	rootCmd.PersistentFlags().BoolVar(&openBrowser, "open", false, "open the dashboard in the browser once it is listening")

	rootCmd.AddCommand(serveCmd, loginCmd, logoutCmd, weeklyCmd, mcpCmd)
}

// loadConfig reads the environment and applies the flags the user set.
// requireCredentials enforces the Strava application settings.
func loadConfig(cmd *cobra.Command, requireCredentials bool) (*config.Config, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DatabasePath = dbPath
	}
	if flags.Changed("addr") {
		cfg.Addr = addr
	}
	if flags.Changed("reload-interval") {
		cfg.ReloadInterval = reloadInterval
	}
	if flags.Changed("token-refresh-interval") {
		cfg.TokenRefreshInterval = tokenRefreshInterval
	}

	if requireCredentials {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
