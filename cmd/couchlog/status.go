package main

import (
	"fmt"
	"time"

	"github.com/couchlog/couchlog/internal/config"
	"github.com/couchlog/couchlog/internal/jellyfin"
	"github.com/couchlog/couchlog/internal/models"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show media server health and active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "couchlog.yaml", "path to Couchlog config file")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	var users, records int64
	gormDB.Model(&models.User{}).Count(&users)
	gormDB.Model(&models.WatchRecord{}).Count(&records)
	fmt.Fprintf(out, "Database:     %d users, %d watch records\n", users, records)

	if !cfg.Jellyfin.Configured() {
		fmt.Fprintln(out, "Media server: not configured")
		return nil
	}

	jf, err := jellyfin.New(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey)
	if err != nil {
		return err
	}
	if err := jf.Ping(ctx); err != nil {
		fmt.Fprintf(out, "Media server: UNREACHABLE (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Media server: OK (%s)\n", cfg.Jellyfin.URL)

	sessions, err := jf.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "Now playing:  nothing")
		return nil
	}

	fmt.Fprintf(out, "Now playing:  %d session(s)\n", len(sessions))
	for _, s := range sessions {
		state := "playing"
		if s.Paused {
			state = "paused"
		}
		pos := time.Duration(s.Position/jellyfin.TicksPerSecond) * time.Second
		fmt.Fprintf(out, "  %-16s %s (%s, %s in)\n", s.UserName, s.NowPlaying.Name, state, pos)
	}
	return nil
}
