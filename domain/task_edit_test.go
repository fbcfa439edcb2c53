package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func editable() *Task {
	return &Task{
		ID:         "t1",
		OwnerID:    "alice",
		SharedWith: []string{"bob"},
		Subtasks:   []Subtask{{Text: "a"}, {Text: "b"}},
		Comments:   []Comment{{ID: "c1", UID: "bob", Text: "hi"}},
	}
}

func TestTaskEditKeysAreFieldScoped(t *testing.T) {
	first := TaskEdit{OwnerID: "alice", TaskID: "t1", Kind: EditSubtask, Index: 0}
	second := TaskEdit{OwnerID: "alice", TaskID: "t1", Kind: EditSubtask, Index: 1}
	done := TaskEdit{OwnerID: "alice", TaskID: "t1", Kind: EditCompletion}

	assert.Equal(t, "alice/t1#subtask:0", first.Key())
	assert.NotEqual(t, first.Key(), second.Key())
	assert.Equal(t, "alice/t1#completion", done.Key())
}

func TestTaskEditSetsStateAndKeepsOtherFields(t *testing.T) {
	task := editable()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	edit := TaskEdit{ActorID: "bob", Kind: EditSubtask, Index: 1, Completed: true, At: at}

	require.NoError(t, edit.Apply(task))
	require.NoError(t, edit.Apply(task))
	assert.True(t, task.Subtasks[1].Completed)
	assert.False(t, task.Subtasks[0].Completed)
	assert.Len(t, task.Comments, 1)
	assert.Equal(t, []string{"bob"}, task.SharedWith)
	assert.Equal(t, "bob", task.LastModifiedBy)
	assert.Equal(t, at, task.LastModifiedAt)
}

func TestTaskEditCompletionRules(t *testing.T) {
	task := editable()
	complete := TaskEdit{ActorID: "alice", Kind: EditCompletion, Completed: true}
	assert.ErrorIs(t, complete.Apply(task), ErrSubtasksIncomplete)

	for i := range task.Subtasks {
		require.NoError(t, TaskEdit{ActorID: "alice", Kind: EditSubtask, Index: i, Completed: true}.Apply(task))
	}
	require.NoError(t, complete.Apply(task))
	assert.True(t, task.Completed)

	require.NoError(t, TaskEdit{ActorID: "alice", Kind: EditSubtask, Index: 0}.Apply(task))
	assert.False(t, task.Completed)
}

func TestTaskEditRejections(t *testing.T) {
	task := editable()
	assert.ErrorIs(t, TaskEdit{ActorID: "carol", Kind: EditSubtask}.Apply(task), ErrNotCollaborator)
	assert.ErrorIs(t, TaskEdit{ActorID: "bob", Kind: EditSubtask, Index: 2}.Apply(task), ErrSubtaskIndex)
	assert.True(t, IsDomainError(TaskEdit{ActorID: "bob", Kind: "rename"}.Apply(task), ErrCodeInvalid))

	at := time.Now()
	task.Finalized = true
	task.FinalizedAt = &at
	assert.ErrorIs(t, TaskEdit{ActorID: "alice", Kind: EditSubtask}.Apply(task), ErrTaskFinalized)
}
