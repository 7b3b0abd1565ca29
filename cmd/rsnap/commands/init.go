package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/rsnap/internal/config"
	"github.com/thoreinstein/rsnap/internal/errors"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a config file with default values to ~/.config/rsnap/config.yaml.

The target path and include list are left empty on purpose; fill them in
before the first backup. An existing config file is never overwritten.`,
	Example: `  rsnap init

  See Also:
    rsnap doctor - Validate the configuration`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(_ *cobra.Command, _ []string) error {
	return runInitWithWriter(os.Stdout)
}

func runInitWithWriter(w io.Writer) error {
	file, err := config.WriteDefault()
	if err != nil {
		return errors.NewUserError(err, "Edit the existing file instead, or move it away first")
	}

	fmt.Fprintf(w, "%s✓ wrote %s%s\n", colorGreen, file, colorReset)
	fmt.Fprintln(w, "Set target.path and includes, then run: rsnap doctor")
	return nil
}
