package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchlog/couchlog/internal/aggregates"
	"github.com/couchlog/couchlog/internal/config"
	"github.com/couchlog/couchlog/internal/dashboard"
	"github.com/couchlog/couchlog/internal/db"
	"github.com/couchlog/couchlog/internal/jellyfin"
	"github.com/couchlog/couchlog/internal/metrics"
	"github.com/couchlog/couchlog/internal/telegraph"
	"github.com/couchlog/couchlog/internal/telegraph/discord"
	"github.com/couchlog/couchlog/internal/telegraph/slack"
	"github.com/couchlog/couchlog/internal/tmdb"
	"github.com/couchlog/couchlog/internal/tracker"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Couchlog daemon",
		Long:  "Starts the playback tracker, the dashboard API, and chat notifications, and runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "couchlog.yaml", "path to Couchlog config file")
	cmd.Flags().BoolVar(&debug, "debug", false, "log sessions that cannot be resolved")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, debug bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	if err := prepareDB(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database ready (%s)\n", cfg.Database.Driver)

	var jf *jellyfin.Client
	if cfg.Jellyfin.Configured() {
		jf, err = jellyfin.New(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey)
		if err != nil {
			return err
		}
	}

	var catalog *tmdb.Client
	if cfg.TMDB.APIKey != "" {
		catalog, err = tmdb.New(cfg.TMDB.APIKey)
		if err != nil {
			return err
		}
	}

	m := metrics.New()

	var seriesCatalog aggregates.SeriesCatalog
	if catalog != nil {
		seriesCatalog = catalog
	}
	agg, err := aggregates.New(gormDB, seriesCatalog)
	if err != nil {
		return err
	}

	tg, err := telegraph.New(gormDB, out)
	if err != nil {
		return err
	}
	if cfg.Notify.Slack.BotToken != "" {
		adapter, err := slack.New(slack.AdapterOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return err
		}
		tg.AddAdapter(adapter)
	}
	if cfg.Notify.Discord.BotToken != "" {
		adapter, err := discord.New(discord.AdapterOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.Channel,
		})
		if err != nil {
			return err
		}
		tg.AddAdapter(adapter)
	}
	if err := tg.Start(cfg.Notify.DigestCron); err != nil {
		return err
	}
	defer tg.Stop()

	opts := tracker.Opts{
		DB:           gormDB,
		Aggregates:   agg,
		Announcer:    tg,
		Thresholds:   tracker.ThresholdsFromConfig(cfg.Tracker),
		PollInterval: time.Duration(cfg.Tracker.PollIntervalSeconds) * time.Second,
		Metrics:      m,
		Debug:        debug,
		Out:          out,
	}
	if jf != nil {
		opts.Source = jf
		opts.Meta = jf
	}
	if catalog != nil {
		opts.Catalog = catalog
	}
	trk, err := tracker.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := trk.Start(ctx); err != nil {
		return err
	}
	defer trk.Stop()

	fmt.Fprintf(out, "Dashboard listening on :%d\n", cfg.Dashboard.Port)
	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:      gormDB,
		Port:    cfg.Dashboard.Port,
		Tracker: trk,
		Metrics: m,
		Out:     out,
	})
}

// openDB connects to the configured database backend.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "mysql":
		return db.ConnectMySQL(cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	default:
		return db.Connect(cfg.Database.Path)
	}
}

// prepareDB migrates the schema and seeds the badge catalogue.
func prepareDB(gormDB *gorm.DB) error {
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	return db.SeedBadges(gormDB)
}
