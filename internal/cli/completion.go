package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for d2armory.

To load completions:

Bash:
  $ source <(d2armory completion bash)
  # Or add to ~/.bashrc:
  $ echo 'source <(d2armory completion bash)' >> ~/.bashrc

Zsh:
  $ source <(d2armory completion zsh)
  # Or add to ~/.zshrc:
  $ echo 'source <(d2armory completion zsh)' >> ~/.zshrc

Fish:
  $ d2armory completion fish | source
  # Or add to config:
  $ d2armory completion fish > ~/.config/fish/completions/d2armory.fish
`,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, args []string) {
			switch args[0] {
			case "bash":
				rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				rootCmd.GenFishCompletion(os.Stdout, true)
			}
		},
	})
}
