package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stoneage-light/stoneage/pkg/crawler"
	"github.com/stoneage-light/stoneage/pkg/pipeline"
)

var charactersCmd = &cobra.Command{
	Use:   "characters",
	Short: "Maintain the character dataset",
}

var charactersEnrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Attach recolor images and weapons to every character from its reference page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enricher := &crawler.CharacterEnricher{Delay: viper.GetDuration("characters.delay")}
		return runJob(cmd, charactersOptions(cmd), pipeline.CharactersJob(charactersPath(cmd), enricher))
	},
}

var charactersCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove recolor images and weapons from every character",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJob(cmd, charactersOptions(cmd), pipeline.CleanCharactersJob(charactersPath(cmd)))
	},
}

func charactersPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("file"); p != "" {
		return p
	}
	return viper.GetString("characters.path")
}

// charactersOptions reads the history flags; the character file is rewritten
// in place and enrichment always isolates failing characters.
func charactersOptions(cmd *cobra.Command) runOptions {
	var o runOptions
	o.db, _ = cmd.Flags().GetBool("db")
	o.dbPath, _ = cmd.Flags().GetString("dbpath")
	return o
}

func init() {
	rootCmd.AddCommand(charactersCmd)
	charactersCmd.AddCommand(charactersEnrichCmd)
	charactersCmd.AddCommand(charactersCleanCmd)

	charactersCmd.PersistentFlags().StringP("file", "f", "", "Character dataset (default: characters.path from config)")
	charactersCmd.PersistentFlags().Bool("db", false, "Save results to the history database and print changes")
	charactersCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/stoneage/stoneage.sqlite)")
}
