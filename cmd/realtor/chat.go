package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ISL270/multi-agent-ai-realtor/internal/app"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long: `Starts an interactive session on stdin. Listings and calendar events come
from the configured backend; the conversation itself is kept in memory.

Type /state to print the conversation state, /quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogging("warn", os.Stderr)
		ctx := cmd.Context()

		be, closeBackend, err := openBackend(ctx, cfg.Storage, logger)
		if err != nil {
			return err
		}
		defer closeBackend()

		svc, err := buildService(cfg, be, app.NewMemorySessions(), nil, logger)
		if err != nil {
			return err
		}
		st, err := svc.CreateSession(ctx)
		if err != nil {
			return err
		}

		return repl(cmd.InOrStdin(), cmd.OutOrStdout(), func(line string) (bool, error) {
			switch line {
			case "/quit", "/exit":
				return true, nil
			case "/state":
				snap, err := svc.Session(ctx, st.SessionID)
				if err != nil {
					return false, err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return false, enc.Encode(snap)
			}

			reply, err := svc.Send(ctx, st.SessionID, line)
			if err != nil {
				return false, err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", reply.Text)
			if reply.Artifact != nil {
				if err := ui.WriteText(cmd.OutOrStdout(), *reply.Artifact); err != nil {
					return false, err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return reply.Status == state.TurnEnded, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// repl feeds non-empty lines to handle until it reports done or input ends.
// Handler errors are printed and the loop continues.
func repl(in io.Reader, out io.Writer, handle func(line string) (done bool, err error)) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		done, err := handle(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if done {
			return nil
		}
	}
}
