package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var optionsJSON bool

var optionsCmd = &cobra.Command{
	Use:   "options <hash>",
	Short: "List the perk options of a weapon",
	Long: `List the selectable plugs of an item grouped into Barrel, Magazine,
Trait 1, Trait 2 and Origin columns. Empty columns are omitted.`,
	Args: cobra.ExactArgs(1),
	Run:  runOptions,
}

func init() {
	optionsCmd.Flags().BoolVar(&optionsJSON, "json", false, "Print JSON")
}

// optionResolver is the part of the engine the options command needs.
type optionResolver interface {
	GetFull(hash models.Hash) (*models.ItemDefinition, bool)
	ResolveOptions(ctx context.Context, hash models.Hash) ([]models.ResolvedColumn, bool)
}

func runOptions(cmd *cobra.Command, args []string) {
	hash := parseHashArg(args[0])

	c := initIndexedContext(cmd)
	defer c.Close()

	if err := doOptions(cmd.Context(), cmd.OutOrStdout(), c.Engine, hash, optionsJSON); err != nil {
		exitError("%v", err)
	}
}

type optionColumn struct {
	Column models.Column        `json:"column"`
	Items  []models.ItemSummary `json:"items"`
}

func doOptions(ctx context.Context, w io.Writer, eng optionResolver, hash models.Hash, asJSON bool) error {
	cols, ok := eng.ResolveOptions(ctx, hash)
	if !ok {
		return fmt.Errorf("item %s not found", hash)
	}

	if asJSON {
		out := make([]optionColumn, len(cols))
		for i, c := range cols {
			out[i] = optionColumn{Column: c.Column, Items: c.Summaries()}
		}
		return writeIndentedJSON(w, out)
	}

	if item, ok := eng.GetFull(hash); ok {
		color.New(color.Bold).Fprintf(w, "%s", item.Name)
		fmt.Fprintf(w, " (%s)\n\n", hash)
	}
	if len(cols) == 0 {
		fmt.Fprintln(w, "No options")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)
	for _, col := range cols {
		cyan.Fprintln(w, col.Column)
		for _, it := range col.Items {
			fmt.Fprint(w, "  ")
			yellow.Fprintf(w, "%-10s", it.Hash)
			fmt.Fprintf(w, " %s\n", it.Name)
		}
	}
	return nil
}
