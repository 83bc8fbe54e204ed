// Package main provides the entry point for the ATS analysis engine.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ats_agent",
	Short: "ATS analysis engine",
	Long: `Scores a stored CV against a job description through the analysis backend,
compares skills semantically and reveals the results phase by phase.

Configuration comes from --config, config.yaml in the working directory or
./config, and ATS_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (yaml, json or toml)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
