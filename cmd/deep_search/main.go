// Package main provides the entry point for the deep-search research CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deep_search",
	Short: "Iterative web research agent",
	Long:  "Deep Search runs multi-round web research on a topic: it plans search queries, fetches and reads the results, feeds what it learned into the next round, and synthesizes a final report.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
