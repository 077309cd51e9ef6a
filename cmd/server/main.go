package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "henji-server",
	Short: "Media generation queue server",
	Long: `henji-server queues image, video and audio generation requests, dispatches
them to fal, PPIO, KIE and ModelScope, and keeps the results and their history.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default: ./config.yaml, ./configs/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
