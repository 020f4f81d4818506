package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stoneage-light/stoneage/internal/utils"
	"github.com/stoneage-light/stoneage/pkg/storage"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the feeds in the history database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		absPath, err := utils.GetAbsDBPath(dbPath)
		if err != nil {
			return err
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", absPath)
		}

		db, err := storage.Open(absPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(context.Background())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "FEED\tENTRIES\tCHANGES\tRUNS\tLAST RUN\t")

		var totalEntries, totalChanges, totalRuns int
		for _, s := range stats {
			last := "-"
			if !s.LastRun.IsZero() {
				last = s.LastRun.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t\n", s.Feed, s.EntryCount, s.ChangeCount, s.RunCount, last)
			totalEntries += s.EntryCount
			totalChanges += s.ChangeCount
			totalRuns += s.RunCount
		}

		fmt.Fprintln(w, " \t \t \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t%d\t%d\t \t\n", totalEntries, totalChanges, totalRuns)

		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/stoneage/stoneage.sqlite)")
}
