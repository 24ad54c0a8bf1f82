package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/ctfboard/pkg/board"
)

func setParseFlags(t *testing.T, file, mode string, render bool) {
	t.Helper()
	prevFile, prevMode, prevRender := parseFile, parseMode, parseRender
	parseFile, parseMode, parseRender = file, mode, render
	t.Cleanup(func() { parseFile, parseMode, parseRender = prevFile, prevMode, prevRender })
}

func sampleBoard(t *testing.T) string {
	t.Helper()
	sb := board.New()
	sb.Reset(board.ModeAttackDefense, []string{"web", "pwn"})
	require.NoError(t, sb.AddChallenge("web", "auth"))
	require.NoError(t, sb.AddVuln("web", "auth", "sqli"))
	require.NoError(t, sb.MarkSolved("web", "auth"))
	return sb.Render()
}

func TestRunParse(t *testing.T) {
	quietPrinter(t)
	text := sampleBoard(t)

	t.Run("stdin with render", func(t *testing.T) {
		setParseFlags(t, "", "ad", true)
		var out bytes.Buffer
		parseCmd.SetIn(strings.NewReader(text))
		parseCmd.SetOut(&out)
		t.Cleanup(func() { parseCmd.SetIn(nil); parseCmd.SetOut(nil) })

		require.NoError(t, runParse(parseCmd, nil))
		assert.Contains(t, out.String(), "no skipped lines")
		assert.True(t, strings.HasSuffix(out.String(), text+"\n"), "canonical rendering is printed last")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "board.txt")
		require.NoError(t, os.WriteFile(path, []byte(text+"\nbroken line"), 0644))
		setParseFlags(t, path, "ad", false)
		var out bytes.Buffer
		parseCmd.SetOut(&out)
		t.Cleanup(func() { parseCmd.SetOut(nil) })

		require.NoError(t, runParse(parseCmd, nil))
		assert.Contains(t, out.String(), "1 skipped lines")
		assert.Contains(t, out.String(), "broken line")
	})

	t.Run("missing file", func(t *testing.T) {
		setParseFlags(t, filepath.Join(t.TempDir(), "nope.txt"), "jeopardy", false)
		err := runParse(parseCmd, nil)
		require.Error(t, err)
		assert.Equal(t, "cannot read board", err.Error())
	})

	t.Run("bad mode", func(t *testing.T) {
		setParseFlags(t, "", "koth", false)
		err := runParse(parseCmd, nil)
		require.Error(t, err)
		assert.Equal(t, "invalid mode", err.Error())
	})
}
