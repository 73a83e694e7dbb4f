package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "flowerdesk",
	Short: "Inventory analysis, marketing and KOL assistant for a flower shop",
	Long: `flowerdesk analyzes weather, social-media and holiday factors for a product,
turns them into an inventory and logistics strategy, and serves marketing,
document Q&A and KOL outreach helpers over HTTP and MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(marketingCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(kolCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		fmt.Fprintln(os.Stderr, "run 'flowerdesk --help' for usage")
		os.Exit(1)
	}
}
