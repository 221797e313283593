package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/promptdoc-go/internal/logging"
	"github.com/54b3r/promptdoc-go/internal/server"
	"github.com/54b3r/promptdoc-go/internal/session"
	"github.com/54b3r/promptdoc-go/internal/tracing"
)

// NewChatCmd constructs the `promptdoc chat` command, a terminal session over
// a single document.
func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <file>",
		Short: "Summarise a document and answer questions about it in the terminal",
		Long: `Index a PDF or text file, stream its summary, then answer questions
read line by line from stdin. Enter "exit" or send EOF to quit.

Examples:
  promptdoc chat report.pdf
  MODEL_PROVIDER=ollama promptdoc chat notes.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			log := logging.FromContext(ctx)
			flush := tracing.Setup(tracing.ConfigFromEnv(), log)
			defer flush()

			a, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer a.Close()

			return runChat(ctx, a.controller, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runChat streams the summary of path to out, then answers each line of in
// until EOF, "exit" or "quit".
func runChat(ctx context.Context, a server.Assistant, path string, in io.Reader, out io.Writer) error {
	summary := a.ProcessAndSummarize(ctx, path)
	err := printDeltas(out, summary.Next)
	summary.Close()
	if err != nil {
		return err
	}

	var history []session.Turn
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "" {
			continue
		}

		hs := a.SendMessage(ctx, line, history)
		err := printDeltas(out, func() (string, error) {
			turns, _, err := hs.Next()
			if err != nil {
				return "", err
			}
			history = turns
			if n := len(turns); n > 0 && turns[n-1].Role == session.RoleAssistant {
				return turns[n-1].Content, nil
			}
			return "", nil
		})
		hs.Close()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// printDeltas writes the growth of each cumulative snapshot returned by next
// until io.EOF.
func printDeltas(out io.Writer, next func() (string, error)) error {
	var printed string
	for {
		snap, err := next()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		if strings.HasPrefix(snap, printed) {
			fmt.Fprint(out, snap[len(printed):])
		} else {
			fmt.Fprint(out, "\n"+snap)
		}
		printed = snap
	}
}
