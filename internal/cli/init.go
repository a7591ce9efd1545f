package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/JackyBoizy/D2Armory/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default " + config.ConfigFile,
	Long: `Write a default ` + config.ConfigFile + ` into dir (the current directory by default).
Pass --manifest to record the manifest database path. Relative paths are
resolved against the directory holding the config file.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInit,
}

func runInit(cmd *cobra.Command, args []string) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := doInit(cmd.OutOrStdout(), dir, manifestPath); err != nil {
		exitError("%v", err)
	}
}

func doInit(w io.Writer, dir, manifest string) error {
	cfg, err := config.Initialize(dir, manifest)
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Fprintf(w, "Wrote %s\n", cfg.Path())
	path := cfg.ResolvedManifestPath()
	if _, err := os.Stat(path); err != nil {
		color.New(color.FgYellow).Fprintf(w, "Warning: manifest %s does not exist yet\n", path)
	} else {
		fmt.Fprintf(w, "Manifest: %s\n", path)
	}
	fmt.Fprintf(w, "\nRun 'd2armory serve' to start the browser API.\n")
	return nil
}
