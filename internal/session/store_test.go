package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorcontext/exectrace/internal/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndReplay(t *testing.T) {
	store := openTestStore(t)

	rec, err := store.Begin([]string{"/bin/sh", "-c", "true"})
	require.NoError(t, err)

	stream := []event.Event{
		event.RootSpawned{PID: 100},
		event.Exec{
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			PID:       100,
			Comm:      "sh",
			Data:      event.ExecData{Filename: "/bin/sh", Argv: []string{"sh", "-c", "true"}},
		},
		event.Exit{PID: 100, Status: 0},
		event.RootExit{ExitCode: 0},
	}
	for _, ev := range stream {
		require.NoError(t, rec.Record(ev))
	}
	require.NoError(t, rec.Finish(0))

	events, err := store.Events(rec.ID())
	require.NoError(t, err)
	require.Len(t, events, len(stream))

	assert.Equal(t, stream[0], events[0])
	assert.Equal(t, stream[2], events[2])
	assert.Equal(t, stream[3], events[3])

	exec, ok := events[1].(event.Exec)
	require.True(t, ok, "second event should replay as Exec")
	assert.Equal(t, "/bin/sh", exec.Data.Filename)
	assert.Equal(t, []string{"sh", "-c", "true"}, exec.Data.Argv)
	assert.Equal(t, 100, exec.PID)
}

func TestSessionsListNewestFirst(t *testing.T) {
	store := openTestStore(t)

	first, err := store.Begin([]string{"/bin/true"})
	require.NoError(t, err)
	require.NoError(t, first.Finish(0))

	second, err := store.Begin([]string{"/bin/false"})
	require.NoError(t, err)
	require.NoError(t, second.Record(event.RootSpawned{PID: 5}))
	require.NoError(t, second.Finish(1))

	sessions, err := store.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, second.ID(), sessions[0].ID)
	assert.Equal(t, []string{"/bin/false"}, sessions[0].Command)
	assert.Equal(t, 1, sessions[0].ExitCode)
	assert.Equal(t, 1, sessions[0].EventCount)

	assert.Equal(t, first.ID(), sessions[1].ID)
	assert.Equal(t, 0, sessions[1].EventCount)
}

func TestGet(t *testing.T) {
	store := openTestStore(t)

	rec, err := store.Begin([]string{"sleep", "1"})
	require.NoError(t, err)

	sess, err := store.Get(rec.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep", "1"}, sess.Command)
	assert.False(t, sess.StartedAt.IsZero())

	// Unfinished recordings carry sentinel values.
	assert.Equal(t, -1, sess.ExitCode)
	assert.True(t, sess.FinishedAt.IsZero())

	require.NoError(t, rec.Finish(7))
	sess, err = store.Get(rec.ID())
	require.NoError(t, err)
	assert.Equal(t, 7, sess.ExitCode)
	assert.False(t, sess.FinishedAt.IsZero())
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Events(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "sessions.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Begin([]string{"true"})
	require.NoError(t, err)
}

func TestReopenKeepsSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := Open(path)
	require.NoError(t, err)
	rec, err := store.Begin([]string{"/bin/echo", "hi"})
	require.NoError(t, err)
	require.NoError(t, rec.Record(event.RootExit{ExitCode: 0}))
	require.NoError(t, rec.Finish(0))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	sessions, err := store.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"/bin/echo", "hi"}, sessions[0].Command)

	events, err := store.Events(sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.RootExit{ExitCode: 0}, events[0])
}
