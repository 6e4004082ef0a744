package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/keepsake/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestComposeWritesAllFiles(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "archive.db")
	outDir := filepath.Join(dir, "anna")

	out, err := run(t, "compose", "--mock", "--storage", "sqlite", "--sqlite-path", db,
		"--name", "Anna", "--relationship", "grandmother", "--detail", "smell of cinnamon",
		"--mood", "nostalgic", "--out", outDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Dear Anna")

	letter, err := os.ReadFile(filepath.Join(outDir, "letter.md"))
	require.NoError(t, err)
	assert.Contains(t, string(letter), "smell of cinnamon")

	image, err := os.ReadFile(filepath.Join(outDir, "image.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(image, []byte("\x89PNG")))

	wav, err := os.ReadFile(filepath.Join(outDir, "voice.wav"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(wav[:4]))

	raw, err := os.ReadFile(filepath.Join(outDir, "citations.json"))
	require.NoError(t, err)
	var cites []domain.Citation
	require.NoError(t, json.Unmarshal(raw, &cites))
	assert.Empty(t, cites)

	listed, err := run(t, "archive", "list", "--storage", "sqlite", "--sqlite-path", db, "--mock")
	require.NoError(t, err, listed)
	lines := strings.Split(strings.TrimSpace(listed), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Anna")
	assert.Contains(t, lines[1], "grandmother")
}

func TestComposeRejectsBadInput(t *testing.T) {
	_, err := run(t, "compose", "--mock", "--name", "Anna", "--relationship", "aunt", "--detail", "x", "--mood", "furious", "--out", t.TempDir())
	require.Error(t, err)

	_, err = run(t, "compose", "--mock", "--name", "Anna", "--mood", "hopeful", "--out", t.TempDir())
	require.ErrorIs(t, err, domain.ErrIncompleteInput)
}
