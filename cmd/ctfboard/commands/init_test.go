package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/ctfboard/internal/scaffold"
)

func TestRunInit(t *testing.T) {
	quietPrinter(t)
	dir := t.TempDir()
	prevDir, prevForce := initDir, forceInit
	t.Cleanup(func() { initDir, forceInit = prevDir, prevForce })

	initDir, forceInit = dir, false
	require.NoError(t, runInit(initCmd, nil))
	_, err := os.Stat(filepath.Join(dir, scaffold.ConfigFile))
	require.NoError(t, err)

	err = runInit(initCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")

	forceInit = true
	assert.NoError(t, runInit(initCmd, nil))
}
