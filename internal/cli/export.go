package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/JackyBoizy/D2Armory/internal/config"
	"github.com/JackyBoizy/D2Armory/internal/store"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var exportTables []string

var exportCmd = &cobra.Command{
	Use:   "export <out.db>",
	Short: "Convert the manifest into a bolt database",
	Long: `Copy the manifest tables into a compressed bolt database that can be
served with --backend bolt.

By default the item, socket type and plug set tables from the config are
exported. --table accepts glob patterns matched against the manifest's tables.

Examples:
  d2armory export manifest.db
  d2armory export --table 'Destiny*ItemDefinition' --table DestinyPlugSetDefinition items.db
  d2armory serve --backend bolt --manifest manifest.db`,
	Args: cobra.ExactArgs(1),
	Run:  runExport,
}

func init() {
	exportCmd.Flags().StringSliceVar(&exportTables, "table", nil, "Table or glob pattern to export, repeat for multiple (default: configured tables)")
}

func runExport(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	tables := configuredTables(c.Config)
	if len(exportTables) > 0 {
		var err error
		if tables, err = expandTables(cmd.Context(), c.Store, exportTables); err != nil {
			exitError("%v", err)
		}
	}
	if err := doExport(cmd.Context(), cmd.OutOrStdout(), c.Store, args[0], tables); err != nil {
		exitError("%v", err)
	}
}

func configuredTables(cfg *config.Config) []string {
	return []string{cfg.Tables.Items, cfg.Tables.SocketTypes, cfg.Tables.PlugSets}
}

// expandTables resolves glob patterns against the store's tables. Plain
// names pass through unchanged. The result keeps first-match order without
// duplicates.
func expandTables(ctx context.Context, st store.RecordStore, patterns []string) ([]string, error) {
	var available []string
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			add(pattern)
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid table pattern %q", pattern)
		}
		if available == nil {
			lister, ok := st.(store.TableLister)
			if !ok {
				return nil, fmt.Errorf("table pattern %q: store cannot list tables", pattern)
			}
			tables, err := lister.Tables(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list tables: %w", err)
			}
			available = tables
		}
		matched := false
		for _, name := range available {
			if ok, _ := doublestar.Match(pattern, name); ok {
				add(name)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("table pattern %q matched no tables", pattern)
		}
	}
	return out, nil
}

func doExport(ctx context.Context, w io.Writer, st store.RecordStore, out string, tables []string) error {
	fmt.Fprintf(w, "Exporting %d tables to %s...\n", len(tables), out)

	stats, err := store.Export(ctx, st, out, tables)
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	names := make([]string, 0, len(stats.Tables))
	for name := range stats.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	green := color.New(color.FgGreen)
	for _, name := range names {
		fmt.Fprintf(w, "  %-36s %d rows\n", name, stats.Tables[name])
	}
	green.Fprintf(w, "\nWrote %s (%d bytes compressed)\n", out, stats.Bytes)
	return nil
}
