package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshdurbin/runtracker/internal/auth"
	"github.com/joshdurbin/runtracker/internal/config"
	"github.com/joshdurbin/runtracker/internal/db"
	"github.com/joshdurbin/runtracker/internal/logging"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Connect your Strava account from the terminal",
	Long: `Opens the Strava authorization page and waits for the redirect on
STRAVA_REDIRECT_URI. Stop "runtracker serve" first: both listen on that address.
The dashboard picks up the stored session on its next start.`,
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

		creds, err := auth.Authenticate(ctx, a.session, nil)
		if err != nil {
			return fmt.Errorf("OAuth flow failed: %w", err)
		}

		logging.Logger.Info().
			Int64("athlete_id", creds.Athlete.ID).
			Str("expires_at", time.Unix(creds.ExpiresAt, 0).Format(time.RFC3339)).
			Msg("OAuth authentication successful")

		fmt.Printf("\nConnected as %s. Token expires: %s\n",
			creds.Athlete.DisplayName(), time.Unix(creds.ExpiresAt, 0).Format(time.RFC1123))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored Strava credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		return logout(ctx, cfg)
	},
}

func logout(ctx context.Context, cfg *config.Config) error {
	sqlDB, err := db.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store := auth.NewStore(db.New(sqlDB))
	if _, err := store.Load(ctx); err != nil {
		if errors.Is(err, auth.ErrNoCredentials) {
			fmt.Println("Not connected to Strava.")
			return nil
		}
		logging.Logger.Debug().Err(err).Msg("stored credentials unreadable, removing them")
	}

	if err := store.Delete(ctx); err != nil {
		return fmt.Errorf("removing credentials: %w", err)
	}
	fmt.Println("Disconnected from Strava.")
	return nil
}
