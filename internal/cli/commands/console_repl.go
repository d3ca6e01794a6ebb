package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const consolePrompt = "leapdq> "
const consoleContinuation = "    ...> "

// runConsoleREPL starts an interactive read-eval-print loop against the
// state database. SQL statements may span multiple lines and execute
// once a line ends with a semicolon. Dot-commands are single-line.
func runConsoleREPL(cmd *cobra.Command, statePath string, opts *ConsoleOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	db, err := openConsoleDB(statePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// History lives next to a file-backed database; Postgres sessions
	// get no persistent history.
	historyFile := ""
	if !db.postgres {
		historyFile = filepath.Join(filepath.Dir(statePath), "console_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          consolePrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newConsoleCompleter(ctx, db),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Fprintln(out, "LeapDQ console (read-only)")
	fmt.Fprintln(out, "Type .help for commands, .quit to exit.")
	fmt.Fprintln(out)

	var buffer []string
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(buffer) > 0 {
				buffer = buffer[:0]
				rl.SetPrompt(consolePrompt)
			}
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" && len(buffer) == 0 {
			continue
		}

		if len(buffer) == 0 && strings.HasPrefix(trimmed, ".") {
			if quit := handleDotCommand(ctx, out, errOut, db, trimmed, opts.Format); quit {
				return nil
			}
			continue
		}

		buffer = append(buffer, line)
		statement := strings.TrimSpace(strings.Join(buffer, " "))
		if !strings.HasSuffix(statement, ";") {
			rl.SetPrompt(consoleContinuation)
			continue
		}

		buffer = buffer[:0]
		rl.SetPrompt(consolePrompt)

		statement = strings.TrimSuffix(statement, ";")
		if err := executeAndRenderQuery(cmd, db, statement, opts.Format); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}

	return nil
}

// handleDotCommand dispatches a console meta command. It reports
// whether the REPL should exit.
func handleDotCommand(ctx context.Context, out, errOut io.Writer, db *consoleDB, line, format string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return true
	case ".help":
		printConsoleHelp(out)
	case ".tables":
		if err := listTablesFromDB(ctx, out, db, format); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	case ".schema":
		if len(fields) < 2 {
			fmt.Fprintln(errOut, "usage: .schema <table>")
			return false
		}
		if err := showSchemaFromDB(ctx, out, db, fields[1], format); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	case ".clear":
		fmt.Fprint(out, "\033[H\033[2J")
	default:
		fmt.Fprintf(errOut, "unknown command %s (try .help)\n", fields[0])
	}
	return false
}

func printConsoleHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  .help             Show this help")
	fmt.Fprintln(out, "  .tables           List tables")
	fmt.Fprintln(out, "  .schema <table>   Show table schema")
	fmt.Fprintln(out, "  .clear            Clear the screen")
	fmt.Fprintln(out, "  .quit             Exit the console")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "SQL statements end with a semicolon and may span lines.")
}

// newConsoleCompleter builds tab completion from the dot-commands and
// the current table names.
func newConsoleCompleter(ctx context.Context, db *consoleDB) readline.AutoCompleter {
	names, err := tableNames(ctx, db)
	if err != nil {
		names = nil
	}

	tableItems := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, name := range names {
		tableItems = append(tableItems, readline.PcItem(name))
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema", tableItems...),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
		readline.PcItem("SELECT"),
		readline.PcItem("FROM", tableItems...),
	}
	items = append(items, tableItems...)

	return readline.NewPrefixCompleter(items...)
}
