// Package cmd contains the hellosure command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hellosure",
	Short: "Hello Sure - assistente AI per il sistema di antifurto",
	Long: `hellosure serves the Hello Sure security-system assistant: a
retrieval-augmented conversational API grounded in the product
documentation crawled from hellosure.app.

Run "hellosure serve" to start the HTTP API, "hellosure ingest" to
refresh the document corpus, or "hellosure ask" for a one-shot question
from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
