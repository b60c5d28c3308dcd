package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/aretw0/nova"
	"github.com/aretw0/nova/internal/logging"
	"github.com/aretw0/nova/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/nova/pkg/adapters/redis"
	"github.com/aretw0/nova/pkg/descriptor"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/aretw0/nova/pkg/ports"
	"github.com/aretw0/nova/pkg/scheduler"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nova",
	Short: "Nova runs module-based step navigation headless",
	Long: `Nova seeds a shell from a module manifest and drives its steps through the
action pipeline: hooks, blocking navigation, wizards and a navigation journal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("modules", "m", "nova.yaml", "Module manifest (YAML or JSON)")
	rootCmd.PersistentFlags().Int("workers", 0, "Background worker pool size (default $NOVA_WORKERS or 10)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for the navigation journal (default in-memory)")
	rootCmd.PersistentFlags().String("wizard-module", "wizard", "Manifest module stacked by the wizard command")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(slog.LevelWarn)
}

// workers resolves the pool size: flag, then NOVA_WORKERS, then the default.
func workers(cmd *cobra.Command) (int, error) {
	if cmd.Flags().Changed("workers") {
		n, _ := cmd.Flags().GetInt("workers")
		return n, nil
	}
	if env := os.Getenv("NOVA_WORKERS"); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			return 0, fmt.Errorf("invalid NOVA_WORKERS %q: %w", env, err)
		}
		return n, nil
	}
	return scheduler.DefaultWorkers, nil
}

func loadModules(cmd *cobra.Command) ([]domain.Module, error) {
	path, _ := cmd.Flags().GetString("modules")
	return descriptor.ParseFile(path)
}

// splitWizard separates the module named name from the content modules.
func splitWizard(modules []domain.Module, name string) ([]domain.Module, []domain.StepInfo) {
	var content []domain.Module
	var wizard []domain.StepInfo
	for _, m := range modules {
		if name != "" && m.Name == name {
			wizard = append(wizard, m.Steps...)
			continue
		}
		content = append(content, m)
	}
	return content, wizard
}

func newJournal(cmd *cobra.Command) (ports.JournalStore, func(), error) {
	addr, _ := cmd.Flags().GetString("redis")
	if addr == "" {
		return memory.NewStore(), func() {}, nil
	}
	store := redisAdapter.New(addr)
	if err := store.Ping(cmd.Context()); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return store, func() { _ = store.Close() }, nil
}

// newShell builds a shell over the content modules of the manifest and
// returns the wizard steps alongside.
func newShell(cmd *cobra.Command, factory ports.ViewFactory, extra ...nova.Option) (*nova.Shell, []domain.StepInfo, func(), error) {
	modules, err := loadModules(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	wizardName, _ := cmd.Flags().GetString("wizard-module")
	content, wizard := splitWizard(modules, wizardName)

	n, err := workers(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	journal, closeJournal, err := newJournal(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []nova.Option{
		nova.WithViewFactory(factory),
		nova.WithDescriptors(descriptor.Static(content)),
		nova.WithJournal(journal),
		nova.WithWorkers(n),
		nova.WithLogger(newLogger(cmd)),
	}
	shell, err := nova.New(append(opts, extra...)...)
	if err != nil {
		closeJournal()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = shell.Close(cmd.Context())
		closeJournal()
	}
	return shell, wizard, cleanup, nil
}
