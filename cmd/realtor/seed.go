package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
)

type seedFile struct {
	Properties []listing.Property `yaml:"properties"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <properties.yaml>",
	Short: "Load property listings from a YAML file into the configured backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogging(cfg.LogLevel, os.Stderr)

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()

		props, skipped, err := parseSeed(f)
		if err != nil {
			return err
		}
		for _, id := range skipped {
			logger.Warn("listing skipped: missing id or image_url", "id", id)
		}

		be, closeBackend, err := openBackend(cmd.Context(), cfg.Storage, logger)
		if err != nil {
			return err
		}
		defer closeBackend()

		n, err := be.SeedProperties(cmd.Context(), props)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d properties (%d skipped) into %s\n", n, len(skipped), cfg.Storage.Backend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// parseSeed decodes a seed file and drops listings the UI cannot show.
func parseSeed(r io.Reader) (props []listing.Property, skipped []string, err error) {
	var sf seedFile
	if err := yaml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, nil, fmt.Errorf("decode seed file: %w", err)
	}
	for _, p := range sf.Properties {
		if !p.Usable() {
			skipped = append(skipped, p.ID)
			continue
		}
		props = append(props, p)
	}
	return props, skipped, nil
}
