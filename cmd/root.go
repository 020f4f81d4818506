package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/stoneage-light/stoneage/internal/utils"
	"github.com/stoneage-light/stoneage/pkg/whttp"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	     _
	 ___| |_ ___  _ __   ___  __ _  __ _  ___
	/ __| __/ _ \| '_ \ / _ \/ _' |/ _' |/ _ \
	\__ \ || (_) | | | |  __/ (_| | (_| |  __/
	|___/\__\___/|_| |_|\___|\__,_|\__, |\___|
	                               |___/
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stoneage",
	Short: "Board crawler and push tooling for the stoneage-light companion app.",
	Long: LOGO + `stoneage refreshes the JSON datasets of the companion app (notices, patch notes,
quests, pets, characters) from the game forum, keeps an optional change history,
and can serve the datasets or simulate the push notification flow.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stoneage.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

func setDefaults() {
	viper.SetDefault("site.origin", "https://www.hwansoo.top")
	viper.SetDefault("site.board", "/bbs/board.php")

	viper.SetDefault("crawl.output", filepath.Join("src", "data"))
	viper.SetDefault("crawl.timeout", whttp.DefaultTimeout)
	viper.SetDefault("crawl.retries", 3)
	viper.SetDefault("crawl.useragent", whttp.DefaultUserAgent)
	viper.SetDefault("crawl.samesite", false)

	viper.SetDefault("feeds.notices.pages", 1)
	viper.SetDefault("feeds.patchnotes.pages", 1)
	viper.SetDefault("feeds.quests.pages", 5)
	viper.SetDefault("feeds.pets.pages", 31)

	viper.SetDefault("characters.path", filepath.Join("src", "data", "characters.json"))
	viper.SetDefault("characters.delay", "1s")

	viper.SetDefault("push.origin", "https://localhost")
	viper.SetDefault("push.base", "/stoneage-light/")
	viper.SetDefault("push.defaulturl", "/trade")
	viper.SetDefault("push.icon", "/pwa-192x192.png")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".stoneage")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".stoneage.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
