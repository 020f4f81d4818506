package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/stoneage-light/stoneage/internal/server"
	"github.com/stoneage-light/stoneage/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the datasets read-only, optionally re-crawling them on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		schedule, _ := cmd.Flags().GetString("schedule")
		user, _ := cmd.Flags().GetString("user")
		pass, _ := cmd.Flags().GetString("password")

		// History updates lock per run; the server only reads.
		runner, release, err := newRunner(cmd, crawlOptions(cmd))
		if err != nil {
			return err
		}
		defer release()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if schedule != "" {
			// One crawl at a time: a tick that fires while the previous crawl
			// still runs is skipped.
			c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
			_, err := c.AddFunc(schedule, func() {
				log := utils.Component("schedule")
				log.Infof("Scheduled crawl starting")
				results, err := runner.RunAll(ctx, site().ListingJobs())
				if err != nil {
					log.Warnf("Scheduled crawl finished with errors: %v", err)
				}
				log.Infof("Scheduled crawl done: %d datasets refreshed", len(results))
			})
			if err != nil {
				return fmt.Errorf("invalid --schedule %q: %w", schedule, err)
			}
			c.Start()
			defer func() { <-c.Stop().Done() }()
			utils.Log.Infof("Re-crawling on schedule %q", schedule)
		}

		srv := server.New(runner.OutputDir, runner.DB, user, pass, utils.Component("server"))
		return srv.Start(ctx, listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("schedule", "", `Cron expression for re-crawling every board feed (e.g. "0 */6 * * *"; empty disables)`)
	serveCmd.Flags().String("user", "", "Basic auth username (empty disables auth)")
	serveCmd.Flags().String("password", "", "Basic auth password")
	serveCmd.Flags().StringP("output", "o", "", "Dataset directory (default: crawl.output from config)")
	serveCmd.Flags().Bool("fail-fast", false, "Abort a scheduled detail crawl at the first failing entry")
	serveCmd.Flags().Bool("db", false, "Record scheduled crawls in the history database and serve /api/changes")
	serveCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/stoneage/stoneage.sqlite)")
}
