package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"notes-sync-client/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--offline"}, args...))
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "file")
	t.Setenv("STORE_PATH", t.TempDir())
	t.Setenv("REMOTE_BASE_URL", "http://127.0.0.1:1")
}

func TestNotesAddListSearchRemove(t *testing.T) {
	setupEnv(t)

	out := run(t, "notes", "add", "Buy", "milk", "-c", "todo", "-m", "two litres")
	require.True(t, strings.HasPrefix(out, "created "))
	id := strings.TrimSpace(strings.TrimPrefix(out, "created "))

	run(t, "notes", "add", "Quarterly plan", "-c", "work")

	out = run(t, "--json", "notes", "list")
	var notes []domain.Note
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	require.Len(t, notes, 2)
	assert.Equal(t, id, notes[0].ID)

	out = run(t, "notes", "search", "MILK")
	assert.Contains(t, out, "Buy milk")
	assert.NotContains(t, out, "Quarterly plan")

	out = run(t, "notes", "list", "-c", "work")
	assert.Contains(t, out, "Quarterly plan")
	assert.NotContains(t, out, "Buy milk")

	out = run(t, "notes", "rm", id)
	assert.Contains(t, out, "deleted "+id)

	out = run(t, "notes", "search", "milk")
	assert.Contains(t, out, "no notes")
}

func TestQueueAndStatusOffline(t *testing.T) {
	setupEnv(t)

	run(t, "notes", "add", "queued")

	out := run(t, "queue")
	assert.Contains(t, out, "CREATE")
	assert.Contains(t, out, "pending")

	out = run(t, "status")
	assert.Contains(t, out, "network:      offline")
	assert.Contains(t, out, "pending:      1")
	assert.Contains(t, out, "last sync:    never")

	out = run(t, "sync")
	assert.Contains(t, out, "offline, 1 operations waiting")

	out = run(t, "queue", "--dead")
	assert.Contains(t, out, "queue is empty")
}

func TestQueueRetryUnknown(t *testing.T) {
	setupEnv(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--offline", "queue", "retry", "nope"})
	assert.Error(t, root.Execute())
}
