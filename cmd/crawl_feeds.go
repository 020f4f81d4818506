package cmd

import (
	"github.com/spf13/cobra"
	"github.com/stoneage-light/stoneage/pkg/pipeline"
)

var crawlNoticesCmd = &cobra.Command{
	Use:   "notices",
	Short: "Crawl the notice board into notices.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJob(cmd, crawlOptions(cmd), pipeline.ArticleJob(site().NoticesFeed(), pagesFor(cmd, "notices"), pipeline.NoticesFile))
	},
}

var crawlPatchNotesCmd = &cobra.Command{
	Use:   "patchnotes",
	Short: "Crawl the patch note board into patchnotes.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJob(cmd, crawlOptions(cmd), pipeline.ArticleJob(site().PatchNotesFeed(), pagesFor(cmd, "patchnotes"), pipeline.PatchNotesFile))
	},
}

var crawlQuestsCmd = &cobra.Command{
	Use:   "quests",
	Short: "Crawl the quest board into quest.json (questWithContent.json with --content)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		withContent, _ := cmd.Flags().GetBool("content")
		feed := site().QuestsFeed(withContent)
		pages := pagesFor(cmd, "quests")
		if withContent {
			return runJob(cmd, crawlOptions(cmd), pipeline.QuestContentJob(feed, pages, pipeline.QuestContentFile))
		}
		return runJob(cmd, crawlOptions(cmd), pipeline.ListingJob(feed, pages, pipeline.QuestsFile))
	},
}

var crawlPetsCmd = &cobra.Command{
	Use:   "pets",
	Short: "Crawl the pet gallery into petData.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJob(cmd, crawlOptions(cmd), pipeline.PetsJob(site().PetsFeed(), pagesFor(cmd, "pets"), pipeline.PetsFile))
	},
}

func init() {
	crawlCmd.AddCommand(crawlNoticesCmd)
	crawlCmd.AddCommand(crawlPatchNotesCmd)
	crawlCmd.AddCommand(crawlQuestsCmd)
	crawlCmd.AddCommand(crawlPetsCmd)

	crawlQuestsCmd.Flags().Bool("content", false, "Also fetch every quest page and write questWithContent.json")
}
