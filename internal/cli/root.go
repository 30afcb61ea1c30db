package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vistoria",
	Short: "Grounded visual discovery feed",
	Long:  "Vistoria serves a generated visual inspiration feed with pin lifecycle management, search grounding, and a 30-day trash. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}
