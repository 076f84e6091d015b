package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	path := configPath()
	cfg, err := config.LoadFile(path)
	if err != nil {
		// A broken file is replaced rather than blocking setup.
		fmt.Printf("  Ignoring unreadable config (%v)\n", err)
		cfg = config.DefaultConfig()
	}

	saved, err := tui.RunSetup(cfg, path)
	if err != nil {
		return err
	}
	if !saved {
		fmt.Println("  Setup cancelled, nothing written.")
		return nil
	}

	fmt.Printf("  Saved %s\n", path)
	fmt.Println("  Run `ocburn top` for the dashboard or `ocburn config` to review.")
	return nil
}
