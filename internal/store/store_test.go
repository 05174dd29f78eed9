package store_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/eventlog"
	"github.com/riverglen/coursecraft/internal/store"
)

func createdEvent(taskID string) domain.Event {
	return domain.Event{
		EventID: "e-created",
		Type:    domain.EventTaskCreated,
		TaskID:  taskID,
		Payload: map[string]any{
			"entry_point": "scenario",
			"entry_data":  map[string]any{"scenario": "Test scenario"},
			"session_id":  "s1",
		},
	}
}

func TestStoreMutateAndGetRoundTrip(t *testing.T) {
	log, err := eventlog.New(t.TempDir())
	require.NoError(t, err)
	st := store.New(log)

	taskID := "task-1"
	task, event, err := st.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		require.Nil(t, current)
		return createdEvent(taskID), nil
	})
	require.NoError(t, err)
	require.Equal(t, domain.EventTaskCreated, event.Type)
	require.Equal(t, taskID, task.TaskID)

	fetched, err := st.Get(taskID)
	require.NoError(t, err)
	require.Equal(t, task, fetched)

	// Get must hand out a clone, not a shared pointer to internal state.
	fetched.Status = domain.TaskCompleted
	reFetched, err := st.Get(taskID)
	require.NoError(t, err)
	require.NotEqual(t, domain.TaskCompleted, reFetched.Status)
}

func TestStoreHydratesFromSnapshotAfterEviction(t *testing.T) {
	dir := t.TempDir()
	log, err := eventlog.New(dir)
	require.NoError(t, err)
	st := store.New(log)

	taskID := "task-2"
	original, _, err := st.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return createdEvent(taskID), nil
	})
	require.NoError(t, err)

	// Simulate the task falling out of memory (e.g. process restart) by
	// constructing a fresh in-memory Store against the same on-disk log.
	log2, err := eventlog.New(dir)
	require.NoError(t, err)
	st2 := store.New(log2)

	hydrated, err := st2.Get(taskID)
	require.NoError(t, err)
	require.Equal(t, original, hydrated)
}

func TestStoreGetUnknownTaskErrors(t *testing.T) {
	log, err := eventlog.New(t.TempDir())
	require.NoError(t, err)
	st := store.New(log)

	task, err := st.Get("does-not-exist")
	require.Error(t, err)
	require.Nil(t, task)
}

func TestStoreMutateErrorDoesNotPersist(t *testing.T) {
	log, err := eventlog.New(t.TempDir())
	require.NoError(t, err)
	st := store.New(log)

	taskID := "task-3"
	wantErr := errors.New("mutation refused")
	_, _, err = st.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return domain.Event{}, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	task, getErr := st.Get(taskID)
	require.Error(t, getErr)
	require.Nil(t, task)
}
