package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/JackyBoizy/D2Armory/internal/models"
	"github.com/JackyBoizy/D2Armory/internal/store"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/theory/jsonpath"
)

var showCmd = &cobra.Command{
	Use:   "show <hash>",
	Short: "Print an item definition",
	Long: `Print the full manifest definition of an item as JSON.

The hash may be given unsigned or as the signed row id. --path selects
parts of the definition with a JSONPath expression, printing one match per
line.

Examples:
  d2armory show 3856705927
  d2armory show 3856705927 --path '$.displayProperties.name'
  d2armory show 3856705927 --path '$.sockets.socketEntries[*].singleInitialItemHash'`,
	Args: cobra.ExactArgs(1),
	Run:  runShow,
}

var showPath string

func init() {
	showCmd.Flags().StringVar(&showPath, "path", "", "JSONPath expression selecting parts of the definition")
}

func runShow(cmd *cobra.Command, args []string) {
	hash := parseHashArg(args[0])

	var path *jsonpath.Path
	if showPath != "" {
		p, err := jsonpath.Parse(showPath)
		if err != nil {
			exitError("invalid --path: %v", err)
		}
		path = p
	}

	c := initContext(cmd)
	defer c.Close()

	if err := doShow(cmd.Context(), cmd.OutOrStdout(), c.Store, c.Config.Tables.Items, hash, path); err != nil {
		exitError("%v", err)
	}
}

// doShow reads the record straight from the store, so no index is built.
// A nil path prints the whole definition.
func doShow(ctx context.Context, w io.Writer, st store.RecordStore, table string, hash models.Hash, path *jsonpath.Path) error {
	payload, ok, err := st.FetchOne(ctx, table, hash)
	if err != nil {
		return fmt.Errorf("failed to read item %s: %w", hash, err)
	}
	if !ok {
		return fmt.Errorf("item %s not found", hash)
	}

	if path != nil {
		var doc interface{}
		if err := json.Unmarshal(payload, &doc); err != nil {
			return fmt.Errorf("item %s has a malformed payload: %w", hash, err)
		}
		for _, node := range path.Select(doc) {
			if err := writeIndentedJSON(w, node); err != nil {
				return err
			}
		}
		return nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return fmt.Errorf("item %s has a malformed payload: %w", hash, err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}
