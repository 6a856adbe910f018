// Package commands defines all Cobra CLI commands for the aicore binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/bankbot/aicore/internal/audit"
	"github.com/bankbot/aicore/internal/config"
	"github.com/bankbot/aicore/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aicore",
		Short: "aicore — retrieval-augmented banking assistant backend",
		Long: `aicore is the retrieval-augmented generation backend for the banking
assistant. It answers customer questions from a curated question/answer
knowledge base stored in Qdrant, with answer generation delegated to a
configurable LLM backend.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.aicore/config.yaml).
See 'aicore --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.aicore/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewLogCmd(),
		NewVersionCmd(),
	)

	return root
}
