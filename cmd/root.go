package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocrarchive/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "ocrarchive",
	Short: "ocrarchive - review OCR results and archive them",
	Long: `ocrarchive extracts text from an image, lets a reviewer note recognition
errors and rate the result, and archives the image, the extracted text and the
rating in a folder named after a reference number. Every submission is also
recorded as one row in a ledger.

Review in the browser with "serve", in the terminal with "review", or submit
non-interactively with "archive".`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("ocrarchive executed")

		fmt.Println("Welcome to ocrarchive!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
