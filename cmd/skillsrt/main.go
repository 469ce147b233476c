// Command skillsrt is the CLI entry point for the skills runtime: indexing a
// skills root, printing the rendered tool catalog, and one-off sandboxed
// execution for local debugging.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:     "skillsrt",
		Short:   "Skills runtime CLI",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}

	root.AddCommand(buildIndexCmd())
	root.AddCommand(buildServeCheckCmd())
	root.AddCommand(buildExecCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
