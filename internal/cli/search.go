package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/JackyBoizy/D2Armory/internal/query"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	searchType     int
	searchAllTypes bool
	searchLimit    int
	searchOffset   int
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search items by name",
	Long: `Search indexed items by case-insensitive name substring.

Weapons are listed by default. Use --type to pick another item type or
--all-types to list everything.

Examples:
  d2armory search hawkmoon
  d2armory search --type 2 helm
  d2armory search --all-types --limit 50 --offset 100`,
	Run: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVar(&searchType, "type", int(query.DefaultItemType), "Item type code (3 weapon, 2 armor)")
	f.BoolVar(&searchAllTypes, "all-types", false, "Do not filter by item type")
	f.IntVar(&searchLimit, "limit", 25, "Maximum number of results")
	f.IntVar(&searchOffset, "offset", 0, "Number of results to skip")
	f.BoolVar(&searchJSON, "json", false, "Print JSON")
}

func runSearch(cmd *cobra.Command, args []string) {
	c := initIndexedContext(cmd)
	defer c.Close()

	itemType := models.ItemType(searchType)
	opts := query.Options{
		Text:     strings.Join(args, " "),
		ItemType: &itemType,
		AllTypes: searchAllTypes,
		Limit:    searchLimit,
		Offset:   searchOffset,
	}

	res := c.Engine.Search(opts)
	if err := printSearch(cmd.OutOrStdout(), res, opts.Offset, searchJSON); err != nil {
		exitError("%v", err)
	}
}

func printSearch(w io.Writer, res query.Result, offset int, asJSON bool) error {
	if asJSON {
		return writeIndentedJSON(w, res)
	}

	if len(res.Items) == 0 {
		fmt.Fprintf(w, "No items found (%d total)\n", res.Total)
		return nil
	}

	yellow := color.New(color.FgYellow)
	faint := color.New(color.Faint)
	for _, it := range res.Items {
		yellow.Fprintf(w, "%-10s", it.Hash)
		fmt.Fprintf(w, " %s", it.Name)
		if it.ItemTypeDisplayName != "" {
			faint.Fprintf(w, "  (%s)", it.ItemTypeDisplayName)
		}
		fmt.Fprintln(w)
	}
	if offset < 0 {
		offset = 0
	}
	fmt.Fprintf(w, "\nShowing %d-%d of %d\n", offset+1, offset+len(res.Items), res.Total)
	return nil
}

func writeIndentedJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
