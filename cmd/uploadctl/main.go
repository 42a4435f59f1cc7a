// uploadctl drives the chunk-upload HTTP API: it splits a local file into
// chunks, uploads them in parallel and completes or cancels the session.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:           "uploadctl",
		Short:         "Client for the chunked-upload service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "base URL of the uploads service")

	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCancelCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
