package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stoneage-light/stoneage/internal/utils"
	"github.com/stoneage-light/stoneage/pkg/crawler"
	"github.com/stoneage-light/stoneage/pkg/dataset"
	"github.com/stoneage-light/stoneage/pkg/pipeline"
	"github.com/stoneage-light/stoneage/pkg/storage"
	"github.com/stoneage-light/stoneage/pkg/whttp"
)

// crawlCmd implements: stoneage crawl <feed>
//
//	--output string   Dataset directory (default from crawl.output)
//	--pages int       Listing pages to visit (default per feed from config)
//	--fail-fast       Abort a detail crawl at the first failing entry
//	--db              Save entries to the history database and print changes
//	--dbpath string   Path to SQLite DB file
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl a forum board and rewrite its dataset",
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.PersistentFlags().StringP("output", "o", "", "Dataset directory (default: crawl.output from config)")
	crawlCmd.PersistentFlags().Int("pages", 0, "Number of listing pages to visit (default: feeds.<feed>.pages from config)")
	crawlCmd.PersistentFlags().Bool("fail-fast", false, "Abort at the first detail page that cannot be read")
	crawlCmd.PersistentFlags().Bool("db", false, "Save results to the history database and print changes")
	crawlCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/stoneage/stoneage.sqlite)")
}

func newFetcher(cmd *cobra.Command) (*crawler.HTTPFetcher, error) {
	proxy, _ := cmd.Flags().GetString("proxy")
	client, err := whttp.NewClient(whttp.Options{
		Proxy:     proxy,
		Retries:   viper.GetInt("crawl.retries"),
		Timeout:   viper.GetDuration("crawl.timeout"),
		UserAgent: viper.GetString("crawl.useragent"),
	})
	if err != nil {
		return nil, err
	}
	return &crawler.HTTPFetcher{Client: client, Log: utils.Component("fetch")}, nil
}

func site() pipeline.Site {
	return pipeline.Site{
		Origin:         viper.GetString("site.origin"),
		BoardPath:      viper.GetString("site.board"),
		NoticePages:    viper.GetInt("feeds.notices.pages"),
		PatchNotePages: viper.GetInt("feeds.patchnotes.pages"),
		QuestPages:     viper.GetInt("feeds.quests.pages"),
		PetPages:       viper.GetInt("feeds.pets.pages"),
		SameSite:       viper.GetBool("crawl.samesite"),
	}
}

// pagesFor returns --pages when given, else the configured page count of feed.
func pagesFor(cmd *cobra.Command, feed string) int {
	if n, _ := cmd.Flags().GetInt("pages"); n > 0 {
		return n
	}
	return viper.GetInt("feeds." + feed + ".pages")
}

// runOptions are the flags a command passes on to its runner.
type runOptions struct {
	output   string
	failFast bool
	db       bool
	dbPath   string
}

// crawlOptions reads the persistent flags of the crawl command.
func crawlOptions(cmd *cobra.Command) runOptions {
	var o runOptions
	o.output, _ = cmd.Flags().GetString("output")
	o.failFast, _ = cmd.Flags().GetBool("fail-fast")
	o.db, _ = cmd.Flags().GetBool("db")
	o.dbPath, _ = cmd.Flags().GetString("dbpath")
	return o
}

// historyDB opens the history database and prepares the lock guarding its
// updates. The returned release function closes the database.
func historyDB(dbPath string) (*storage.DB, *utils.FileLock, func(), error) {
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	lock, err := utils.NewFileLock(absPath)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := storage.Open(absPath)
	if err != nil {
		return nil, nil, nil, err
	}
	utils.Log.Debugf("Using history database %s", absPath)
	return db, lock, func() { db.Close() }, nil
}

// newRunner builds the runner shared by crawl, character and serve commands.
func newRunner(cmd *cobra.Command, opts runOptions) (*pipeline.Runner, func(), error) {
	fetcher, err := newFetcher(cmd)
	if err != nil {
		return nil, nil, err
	}
	output := opts.output
	if output == "" {
		output = viper.GetString("crawl.output")
	}
	policy := crawler.IsolateFailures
	if opts.failFast {
		policy = crawler.AbortOnFailure
	}

	r := &pipeline.Runner{
		Fetcher:   fetcher,
		OutputDir: output,
		Writer:    &dataset.Writer{},
		Policy:    policy,
		Log:       utils.Component("pipeline"),
		OnChanges: func(_ string, changes []storage.Change, isFirstRun bool) {
			if !isFirstRun {
				printChanges(changes)
			}
		},
	}

	release := func() {}
	if opts.db {
		db, lock, closeDB, err := historyDB(opts.dbPath)
		if err != nil {
			return nil, nil, err
		}
		r.DB = db
		r.Lock = lock
		release = closeDB
	}
	return r, release, nil
}

func runJob(cmd *cobra.Command, opts runOptions, job pipeline.Job) error {
	r, release, err := newRunner(cmd, opts)
	if err != nil {
		return err
	}
	defer release()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := r.Run(ctx, job)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d records -> %s\n", res.Feed, res.Count, res.Path)
	return nil
}

func printChanges(changes []storage.Change) {
	for _, c := range changes {
		var mark string
		switch c.ChangeType {
		case storage.ChangeAdded:
			mark = "+"
		case storage.ChangeRemoved:
			mark = "-"
		case storage.ChangeUpdated:
			mark = "~"
		}
		fmt.Printf("%s  %s  %s  %s\n", mark, c.Feed, c.Title, c.Link)
	}
}
