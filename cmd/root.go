package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailsort application
var rootCmd = &cobra.Command{
	Use:   "mailsort",
	Short: "Classifies Gmail messages into category labels",
	Long: `mailsort classifies the messages in a user's Gmail mailbox into a
fixed set of categories (work, personal, promotion, spam, finance,
security) and applies the matching Gmail labels.

It runs as two processes:
  - serve:  the HTTP API accepting login and classification jobs
  - worker: the queue consumer executing jobs against the Gmail API`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailsort version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mailsort version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newVersionCmd())
}
