package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/promptdoc-go/internal/logging"
	"github.com/54b3r/promptdoc-go/internal/server"
	"github.com/54b3r/promptdoc-go/internal/tracing"
)

// NewServeCmd constructs the `promptdoc serve` command, which starts the HTTP
// server exposing document upload and chat over SSE.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the promptdoc HTTP server",
		Long: `Start the promptdoc HTTP server.

POST /api/documents uploads a PDF or text file and streams its summary.
POST /api/chat sends a question with the chat history and streams the
updated history while the answer is generated.

Examples:
  promptdoc serve
  promptdoc serve --port 9090
  MODEL_PROVIDER=ollama VECTOR_BACKEND=qdrant promptdoc serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			flush := tracing.Setup(tracing.ConfigFromEnv(), log)
			defer flush()

			a, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			if !cmd.Flags().Changed("host") {
				host = a.settings.Host
			}
			if !cmd.Flags().Changed("port") {
				port = a.settings.Port
			}

			srv, err := server.New(a.controller, &server.Config{
				Host:           host,
				Port:           port,
				MaxUploadBytes: a.settings.MaxUploadBytes,
				APIKey:         a.settings.APIKey,
				Logger:         log,
				Pingers:        a.pingers,
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind (overrides PROMPTDOC_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (overrides PROMPTDOC_PORT)")

	return cmd
}
