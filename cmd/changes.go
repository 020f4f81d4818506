package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stoneage-light/stoneage/internal/utils"
	"github.com/stoneage-light/stoneage/pkg/storage"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent dataset changes (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		limit, _ := cmd.Flags().GetInt("limit")
		absPath, err := utils.GetAbsDBPath(dbPath)
		if err != nil {
			return err
		}
		if _, err := os.Stat(absPath); err != nil {
			return fmt.Errorf("database not found: %s", absPath)
		}
		db, err := storage.Open(absPath)
		if err != nil {
			return err
		}
		defer db.Close()
		changes, err := db.ListRecentChanges(context.Background(), limit)
		if err != nil {
			return err
		}
		for _, c := range changes {
			ts := c.OccurredAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-7s  %-10s  %s  %s\n", ts, c.ChangeType, c.Feed, c.Title, c.Link)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/stoneage/stoneage.sqlite)")
	changesCmd.Flags().Int("limit", 50, "Number of recent changes to show")
}
