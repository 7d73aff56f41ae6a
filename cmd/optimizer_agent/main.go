// Package main provides the entry point for the Resume Optimizer.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "optimizer_agent",
	Short: "Resume Optimizer pipeline agent",
	Long:  "Resume Optimizer runs a staged research/write/critique/design pipeline with gatekeeper audits and scorecard-driven refinement, via CLI or REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
