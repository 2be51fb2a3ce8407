package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lukman83/adscout/config"
	"github.com/lukman83/adscout/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "adscout",
	Short: "adscout - classified ad harvester with LLM enrichment",
	Long: "adscout crawls marketplace search results, stores every new listing, " +
		"classifies each description with a language model and serves the dataset " +
		"over HTTP and MCP.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("data-dir", "", "Directory for listings, config files and the browser profile (default: data)")
	rootCmd.PersistentFlags().Int("pages", 0, "Result pages per search URL (default: 3)")
	rootCmd.PersistentFlags().Bool("respect-robots", true, "Respect robots.txt rules")
	rootCmd.PersistentFlags().Bool("headless", true, "Run the browser headless")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json")
}

func initConfig() {
	cfg = config.DefaultConfig()
	cfg.LoadFromEnv()

	// Override from flags
	flags := rootCmd.PersistentFlags()
	if v, _ := flags.GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := flags.GetInt("pages"); v > 0 {
		cfg.PagesToScrape = v
	}
	if v, _ := flags.GetBool("respect-robots"); !v {
		cfg.RespectRobots = false
	}
	if flags.Changed("headless") {
		cfg.Headless, _ = flags.GetBool("headless")
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}

	logger = logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	for _, w := range cfg.Warnings {
		logger.Warn("config: " + w)
	}
}
