package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henjicc/henji-server/internal/app"
)

func init() {
	rootCmd.AddCommand(gcCmd)
	gcCmd.Flags().BoolP("quiet", "q", false, "Only print the number of removed files")
}

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove stored files no task or preset refers to",
	Long: `Loads the task history and the presets, then unlinks every stored upload and
result that neither of them holds. Run it while the server is stopped.`,
	RunE: runGC,
}

func runGC(cmd *cobra.Command, _ []string) error {
	cfg, _, err := app.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer application.Stop()

	ctx := cmd.Context()
	if err := application.Start(ctx); err != nil {
		return err
	}
	removed, err := application.Dependencies().AssetManager.CollectOrphans(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		for _, p := range removed {
			fmt.Fprintln(out, p)
		}
	}
	fmt.Fprintf(out, "removed %d orphaned files\n", len(removed))
	return nil
}
