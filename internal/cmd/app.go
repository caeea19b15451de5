package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joshdurbin/runtracker/internal/auth"
	"github.com/joshdurbin/runtracker/internal/config"
	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/db"
	"github.com/joshdurbin/runtracker/internal/loader"
	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/strava"
)

// app is the wiring shared by the commands that talk to Strava.
type app struct {
	db      *sql.DB
	client  *strava.Client
	session *auth.Session
	dash    *dashboard.Controller
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	sqlDB, err := db.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	states, err := auth.NewStateSigner(cfg.StateSecret)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating state signer: %w", err)
	}

	client := strava.NewClient()
	session := auth.NewSession(
		auth.StravaOAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL),
		auth.NewStore(db.New(sqlDB)),
		states,
		client,
	)

	ld := loader.New(client, loader.WithProgress(func(p loader.Progress) {
		logging.Logger.Debug().
			Int("page", p.Page).
			Int("fetched", p.Fetched).
			Int("kept", p.Kept).
			Int("total", p.Total).
			Msg("activity page loaded")
	}))

	return &app{
		db:      sqlDB,
		client:  client,
		session: session,
		dash:    dashboard.New(session, ld, dashboard.WithClock(cfg.Now)),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
