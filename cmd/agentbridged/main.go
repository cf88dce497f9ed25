// Command agentbridged runs the agentbridge control-plane core: the
// command-dispatch and agent-coordination service of SPEC_FULL.md.
// Subcommand layout grounded on the teacher's cmd/cliaimonitor/main.go
// wiring order, restructured onto spf13/cobra per SPEC_FULL.md §2.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "agentbridged",
		Short: "agentbridge command-dispatch control plane",
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "configs/agentbridge.yaml", "configuration file path")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	root.AddCommand(newReloadPolicyCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
