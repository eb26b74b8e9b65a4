package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ISL270/multi-agent-ai-realtor/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "realtor",
	Short: "Conversational real estate assistant",
	Long: `realtor searches property listings and books viewings through a
conversation. It runs as an HTTP and NATS service (serve) or as an
interactive terminal session (chat).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "realtor.yaml", "config file path")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
