package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/couchlog/couchlog/internal/config"
	"github.com/couchlog/couchlog/internal/dashboard"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		userID     uint
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent watch history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, configPath, userID, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "couchlog.yaml", "path to Couchlog config file")
	cmd.Flags().UintVarP(&userID, "user", "u", 0, "filter by user id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}

func runHistory(cmd *cobra.Command, configPath string, userID uint, limit int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}

	rows, err := dashboard.History(gormDB, dashboard.HistoryFilters{UserID: userID, Limit: limit})
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No watch history yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tUSER\tTITLE\tMINUTES\t")
	for _, r := range rows {
		title := r.Title
		if r.Season != nil && r.Episode != nil {
			title = fmt.Sprintf("%s S%02dE%02d", r.Title, *r.Season, *r.Episode)
		}
		flag := ""
		if r.Partial {
			flag = " (partial)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%s\t\n", r.WatchedAt.Format("2006-01-02"), r.User, title, r.Minutes, flag)
	}
	return w.Flush()
}
