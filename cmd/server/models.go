package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	ginadapter "github.com/henjicc/henji-server/internal/adapter/inbound/gin"
	"github.com/henjicc/henji-server/internal/module/catalog"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringP("type", "t", "", "Only list models of this media type (image, video, audio)")
	modelsCmd.Flags().Bool("json", false, "Print JSON instead of a table")
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Print the model catalog",
	RunE:  runModels,
}

func runModels(cmd *cobra.Command, _ []string) error {
	registry, err := catalog.NewRegistry()
	if err != nil {
		return err
	}
	mediaType, _ := cmd.Flags().GetString("type")

	var models []*ginadapter.ModelResponse
	for _, cfg := range registry.List() {
		if mediaType != "" && string(cfg.MediaType) != mediaType {
			continue
		}
		models = append(models, ginadapter.NewModelResponse(cfg))
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPROVIDER\tNAME\tALIASES")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.MediaType, m.Provider, m.Name, strings.Join(m.Aliases, ","))
	}
	return w.Flush()
}
