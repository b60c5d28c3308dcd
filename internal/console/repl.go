package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/navigation"
)

// REPL drives a session from line commands:
//
//	next | prev | goto <n> | steps | wizard | cancel | finish [k=v ...] | quit
type REPL struct {
	Session *navigation.Session
	Printer *Printer
	// Wizard holds the steps stacked by the wizard command.
	Wizard []domain.StepInfo
}

// Run reads commands from in until quit, EOF or ctx is done.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		r.exec(ctx, fields[0], fields[1:])
	}
	return scanner.Err()
}

func (r *REPL) exec(ctx context.Context, cmd string, args []string) {
	var (
		ok  bool
		err error
	)
	switch cmd {
	case "next":
		ok, err = r.Session.Next(ctx)
	case "prev", "previous":
		ok, err = r.Session.Previous(ctx)
	case "goto":
		ok, err = r.gotoStep(ctx, args)
	case "steps":
		r.listSteps()
		return
	case "wizard":
		if len(r.Wizard) == 0 {
			r.Printer.Printf("no wizard configured")
			return
		}
		_, err = r.Session.StackWizard(ctx, "Wizard", r.Wizard)
		ok = err == nil
	case "cancel":
		ok, err = r.Session.Cancel(ctx)
	case "finish":
		ok, err = r.Session.Finish(ctx, parseEntries(args)...)
	default:
		r.Printer.Printf("unknown command %q", cmd)
		return
	}

	switch {
	case err != nil:
		r.Printer.Printf("error: %v", err)
	case !ok:
		r.Printer.Printf("%s was refused", cmd)
	}
}

func (r *REPL) gotoStep(ctx context.Context, args []string) (bool, error) {
	if len(args) != 1 {
		return false, errors.New("usage: goto <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return false, fmt.Errorf("goto: %w", err)
	}
	steps := r.Session.Active().Steps()
	if n < 1 || n > len(steps) {
		return false, fmt.Errorf("goto: step %d out of range 1..%d", n, len(steps))
	}
	return r.Session.Navigate(ctx, steps[n-1].ID())
}

func (r *REPL) listSteps() {
	seq := r.Session.Active()
	cur := seq.Current()
	for i, s := range seq.Steps() {
		marker := " "
		if s == cur {
			marker = "*"
		}
		r.Printer.Printf("%s %d. %s", marker, i+1, s.Title())
	}
}

// parseEntries turns k=v arguments into forwardable entries. Later keys win.
func parseEntries(args []string) []domain.Entry {
	seen := make(map[string]int)
	var entries []domain.Entry
	for _, arg := range args {
		k, v, found := strings.Cut(arg, "=")
		if !found || k == "" {
			continue
		}
		e := domain.NewEntry(k, v, true)
		if i, dup := seen[k]; dup {
			entries[i] = e
			continue
		}
		seen[k] = len(entries)
		entries = append(entries, e)
	}
	return entries
}
