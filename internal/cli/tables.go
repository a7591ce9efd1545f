package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the manifest",
	Args:  cobra.NoArgs,
	Run:   runTables,
}

type tableLister interface {
	Tables(ctx context.Context) ([]string, error)
}

func runTables(cmd *cobra.Command, _ []string) {
	c := initContext(cmd)
	defer c.Close()

	if err := doTables(cmd.Context(), cmd.OutOrStdout(), c.Engine); err != nil {
		exitError("%v", err)
	}
}

func doTables(ctx context.Context, w io.Writer, l tableLister) error {
	tables, err := l.Tables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	for _, t := range tables {
		fmt.Fprintln(w, t)
	}
	return nil
}
