package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "threeds-gateway",
	Short: "3-D Secure payment gateway",
	Long:  "A card payment gateway orchestrating device data collection, 3DS challenges, and settlement against the upstream provider.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
