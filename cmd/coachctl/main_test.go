package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandsAgainstLocalDatabase(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "coachctl.db"))
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("RETRIEVER_BACKEND", "keyword")

	out, err := run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 30 exercises, 4 users, 3 events")

	out, err = run(t, "intervene", "auth0|alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[MANUAL_INTERVENTION]"), out)

	out, err = run(t, "events", "--limit", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "auth0|alice\tintervention\tMANUAL_INTERVENTION")

	out, err = run(t, "plan", "auth0|bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Recovery: 45/100")

	out, err = run(t, "ingest", "--builtin")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested")
}

func TestCommandArgumentValidation(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "coachctl.db"))
	t.Setenv("LLM_PROVIDER", "mock")

	_, err := run(t, "plan")
	assert.Error(t, err)

	_, err = run(t, "ingest")
	assert.Error(t, err)

	_, err = run(t, "events", "--limit", "0")
	assert.Error(t, err)

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "coachctl version dev\n", out)
}
