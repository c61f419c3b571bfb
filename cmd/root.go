/*
Copyright © 2025 zentala
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/database"
	"github.com/zentala/bookmark-index/service"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bookmark-index",
	Short: "Semantic search over your browser bookmarks",
	Long: `bookmark-index embeds a bookmark tree with an embedding provider,
keeps the vectors in a persistent store and answers free-text queries with
a blend of vector similarity and keyword matching.

Only bookmarks that are new or changed since the last run are embedded, and
you are asked before any provider call is made.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bookmark-index.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "embedding provider: openai, gemini, ollama or fake")
	rootCmd.PersistentFlags().String("model", "", "embedding model name")
	rootCmd.PersistentFlags().String("base-url", "", "base URL of the embedding provider")
	rootCmd.PersistentFlags().String("store", "", "embedding store: bolt, postgres, redis or weaviate")
	rootCmd.PersistentFlags().String("store-path", "", "path of the bolt database file")
	rootCmd.PersistentFlags().Int("max-bookmarks", 0, "stop after this many bookmarks (0 means no limit)")

	bindFlag("provider.kind", "provider")
	bindFlag("provider.model", "model")
	bindFlag("provider.base_url", "base-url")
	bindFlag("store.kind", "store")
	bindFlag("store.path", "store-path")
	bindFlag("indexer.max_bookmarks", "max-bookmarks")
}

func bindFlag(key, flag string) {
	cobra.CheckErr(viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".bookmark-index" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bookmark-index")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openIndexService loads the configuration, opens the configured store and
// initializes an index service on top of it.
func openIndexService(ctx context.Context, reg prometheus.Registerer, opts ...service.Option) (*service.IndexService, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := database.NewStore(cfg.Store, log.New(log.Writer(), "[STORE] ", log.LstdFlags))
	if err != nil {
		return nil, nil, err
	}

	opts = append([]service.Option{service.WithMetrics(service.NewMetrics(reg))}, opts...)
	indexService := service.NewIndexService(*cfg, store, opts...)
	if err := indexService.Initialize(ctx, cfg.Provider.Credential, cfg.Provider.Kind); err != nil {
		store.Close()
		return nil, nil, err
	}
	return indexService, cfg, nil
}
