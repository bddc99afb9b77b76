package commands

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// InteractiveCmd creates the interactive command
func InteractiveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session that keeps the database connection and Google
credentials open between commands. Type 'help' to list commands and 'exit' or
'quit' to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("\nInteractive session started. Type 'help' for commands, 'exit' to leave.")

			commands := sessionCommands(cmd.Parent())
			scanner := bufio.NewScanner(os.Stdin)

			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}

				parts, err := parseCommandLine(strings.TrimSpace(scanner.Text()))
				if err != nil {
					fmt.Printf("✗ %v\n\n", err)
					continue
				}
				if len(parts) == 0 {
					continue
				}

				switch parts[0] {
				case "exit", "quit":
					return nil
				case "help":
					printInteractiveHelp(commands)
					continue
				}

				target, ok := commands[parts[0]]
				if !ok {
					fmt.Printf("✗ Unknown command: %s (type 'help' for available commands)\n\n", parts[0])
					continue
				}
				if err := runInSession(target, parts[1:]); err != nil {
					fmt.Printf("✗ Error: %v\n\n", err)
				}
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("error reading input: %w", err)
			}
			return nil
		},
	}
}

func sessionCommands(root *cobra.Command) map[string]*cobra.Command {
	commands := make(map[string]*cobra.Command)
	for _, c := range root.Commands() {
		switch c.Name() {
		case "interactive", "completion", "help":
			continue
		}
		commands[c.Name()] = c
	}
	return commands
}

// runInSession runs a command's RunE without Execute, which would re-run the
// root PersistentPreRunE and reconnect everything
func runInSession(target *cobra.Command, args []string) error {
	target.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
		_ = flag.Value.Set(flag.DefValue)
	})
	if err := target.ParseFlags(args); err != nil {
		return err
	}

	args = target.Flags().Args()
	if target.Args != nil {
		if err := target.Args(target, args); err != nil {
			return err
		}
	}
	return target.RunE(target, args)
}

func printInteractiveHelp(commands map[string]*cobra.Command) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nAvailable commands:")
	for _, name := range names {
		fmt.Printf("  %-45s %s\n", commands[name].Use, commands[name].Short)
	}
	fmt.Printf("\n  %-45s %s\n", "help", "Show this help message")
	fmt.Printf("  %-45s %s\n\n", "exit, quit", "Leave the session")
}

// parseCommandLine splits a line into arguments. Single or double quotes group words.
func parseCommandLine(line string) ([]string, error) {
	var args []string
	var current strings.Builder
	var quote rune
	inArg := false

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case unicode.IsSpace(r):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unclosed quote: %c", quote)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
