package main

import (
	"fmt"
	"os"

	"github.com/aretw0/nova/internal/console"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [session-id]",
	Short: "Walk the steps interactively on the console",
	Long: `Opens a console session (resuming it from the journal when possible) and
reads commands from stdin: next, prev, goto <n>, steps, wizard, cancel,
finish [key=value ...], quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := "console"
		if len(args) > 0 {
			sessionID = args[0]
		}

		printer := console.NewPrinter(cmd.OutOrStdout())
		shell, wizard, cleanup, err := newShell(cmd, console.NewFactory(printer))
		if err != nil {
			return err
		}
		defer cleanup()

		sess, err := shell.Open(cmd.Context(), sessionID, console.NewView("nova", nil), console.NewShell(printer))
		if err != nil {
			return fmt.Errorf("open session: %w", err)
		}

		repl := &console.REPL{Session: sess, Printer: printer, Wizard: wizard}
		return repl.Run(cmd.Context(), os.Stdin)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
