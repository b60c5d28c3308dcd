package console_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/nova/internal/console"
	"github.com/aretw0/nova/pkg/affinity"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/hooks"
	"github.com/aretw0/nova/pkg/navigation"
	"github.com/aretw0/nova/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newREPL(t *testing.T, out *bytes.Buffer) *console.REPL {
	t.Helper()
	loop := affinity.NewLoop()
	loop.Start()
	sched := scheduler.New(loop, scheduler.WithHooks(hooks.NewRepository()), scheduler.WithWorkers(4))
	t.Cleanup(func() {
		sched.Stop()
		loop.Stop()
	})

	printer := console.NewPrinter(out)
	steps := []domain.StepInfo{
		domain.NewStepInfo("Home", "HomeView", ""),
		domain.NewStepInfo("Orders", "OrdersView", ""),
		domain.NewStepInfo("Reports", "ReportsView", ""),
	}
	sess, err := navigation.NewSession("console", sched, console.NewFactory(printer), steps,
		navigation.WithContent(console.NewView("shell", nil), console.NewShell(printer)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close(context.Background()) })

	ok, err := sess.Start(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	return &console.REPL{
		Session: sess,
		Printer: printer,
		Wizard:  []domain.StepInfo{domain.NewStepInfo("Confirm", "ConfirmView", "")},
	}
}

func TestREPL_Navigation(t *testing.T) {
	var out bytes.Buffer
	repl := newREPL(t, &out)

	script := "next\n\ngoto 3\nprev\nsteps\nfly\ngoto 9\nquit\nnext\n"
	require.NoError(t, repl.Run(context.Background(), strings.NewReader(script)))

	assert.Equal(t, strings.Join([]string{
		"> Home {}",
		"> Orders {}",
		"> Reports {}",
		"> Orders {}",
		"  1. Home",
		"* 2. Orders",
		"  3. Reports",
		`unknown command "fly"`,
		"error: goto: step 9 out of range 1..3",
	}, "\n")+"\n", out.String())
}

func TestREPL_Wizard(t *testing.T) {
	var out bytes.Buffer
	repl := newREPL(t, &out)

	script := "cancel\nwizard\nsteps\nfinish name=ada name=grace\nwizard\ncancel\n"
	require.NoError(t, repl.Run(context.Background(), strings.NewReader(script)))

	assert.Equal(t, strings.Join([]string{
		"> Home {}",
		"error: no active wizard",
		"> Confirm {}",
		"* 1. Confirm",
		"wizard finished {Cancelled=false name=grace}",
		"> Confirm {}",
		"wizard cancelled",
	}, "\n")+"\n", out.String())
}
