package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/kadirpekel/scout/pkg/assembler"
	"github.com/kadirpekel/scout/pkg/runtime"
	"github.com/kadirpekel/scout/pkg/session"
)

// ChatCmd runs an interactive conversation on one thread.
type ChatCmd struct {
	Thread string `help:"Conversation thread id." default:"1"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		_ = loader.Close()
	}

	cleanup, err := applyConfigLogger(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Runtime shutdown incomplete", "error", err)
		}
	}()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Printf("Chatting on thread %q with %d tools. Type 'clear' to reset, 'quit' to leave.\n\n", c.Thread, len(rt.Tools()))
	}
	return chatLoop(ctx, rt.Runner(), c.Thread, os.Stdin, os.Stdout, interactive)
}

// chatLoop reads one message per line and streams each reply. It returns
// at EOF, on quit or exit, or when ctx is cancelled.
func chatLoop(ctx context.Context, runner *session.Runner, threadID string, in io.Reader, out io.Writer, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, "User: ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(strings.TrimPrefix(input, "/")) {
		case "":
			continue
		case "quit", "exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "clear":
			if err := runner.Reset(ctx, threadID); err != nil {
				return err
			}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		fmt.Fprint(out, "Assistant: ")
		var b assembler.Builder
		for frag, err := range runner.Turn(ctx, threadID, input) {
			if err != nil {
				fmt.Fprintf(out, "\nError: %v\n", err)
				break
			}
			fmt.Fprint(out, b.Add(frag))
		}
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return nil
		}
	}
}
