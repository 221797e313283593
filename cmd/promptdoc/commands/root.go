// Package commands defines all Cobra CLI commands for the promptdoc binary.
package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/promptdoc-go/internal/audit"
	"github.com/54b3r/promptdoc-go/internal/config"
	"github.com/54b3r/promptdoc-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// startedAt records when the running command began, for the audit end record.
var startedAt time.Time

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "promptdoc",
		Short: "Chat with a PDF or text document",
		Long: `promptdoc answers questions about a single uploaded document.

Uploading a document indexes it into a local vector store and streams a
summary; every question is answered from the most relevant chunks of the
document plus the recent conversation.

Model provider is selected via the MODEL_PROVIDER environment variable,
a .env file, or a YAML config file (~/.promptdoc/config.yaml).
See 'promptdoc --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			startedAt = time.Now()

			// Values already in the environment win over the .env file.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			ctx := logging.WithLogger(cmd.Context(), log)
			cmd.SetContext(ctx)

			audit.LogCommandStart(ctx, log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.promptdoc/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file; missing files are ignored")

	root.AddCommand(
		NewServeCmd(),
		NewChatCmd(),
		NewVersionCmd(),
	)

	return root
}

// Execute runs the root command and records how the invoked subcommand ended.
func Execute() error {
	cmd, err := NewRootCmd().ExecuteC()
	if !startedAt.IsZero() {
		ctx := cmd.Context()
		audit.LogCommandEnd(ctx, logging.FromContext(ctx), cmd.Name(), time.Since(startedAt), err)
	}
	return err
}
