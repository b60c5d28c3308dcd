package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWizard(t *testing.T) {
	modules := []domain.Module{
		{Name: "core", Steps: []domain.StepInfo{domain.NewStepInfo("Home", "HomeView", "")}},
		{Name: "wizard", Steps: []domain.StepInfo{domain.NewStepInfo("Confirm", "ConfirmView", "")}},
	}

	content, wizard := splitWizard(modules, "wizard")
	require.Len(t, content, 1)
	assert.Equal(t, "core", content[0].Name)
	require.Len(t, wizard, 1)
	assert.Equal(t, "Confirm", wizard[0].Title)

	content, wizard = splitWizard(modules, "")
	assert.Len(t, content, 2)
	assert.Empty(t, wizard)
}

func TestWorkers(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().Int("workers", 0, "")
		return cmd
	}

	t.Setenv("NOVA_WORKERS", "")
	n, err := workers(newCmd())
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	t.Setenv("NOVA_WORKERS", "3")
	n, err = workers(newCmd())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cmd := newCmd()
	require.NoError(t, cmd.Flags().Set("workers", "6"))
	n, err = workers(cmd)
	require.NoError(t, err)
	assert.Equal(t, 6, n, "the flag wins over the environment")

	t.Setenv("NOVA_WORKERS", "many")
	_, err = workers(newCmd())
	assert.Error(t, err)
}

func TestValidateAndGraphCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nova.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`modules:
  - name: core
    steps:
      - title: Home
        view: HomeView
      - title: Orders
        view: OrdersView
`), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "--modules", path})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "Manifest is valid: 1 modules, 2 steps\n", out.String())

	out.Reset()
	rootCmd.SetArgs([]string{"graph", "--modules", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "graph TD")
	assert.Contains(t, out.String(), "-->")
}
