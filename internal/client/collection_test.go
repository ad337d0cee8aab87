package client

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow-io/taskflow/internal/domain"
)

func taskCollection() *Collection[domain.Task] {
	return NewCollection(func(t domain.Task) uuid.UUID { return t.ID })
}

func TestCollectionOptimisticCreate(t *testing.T) {
	t.Parallel()

	t.Run("confirm swaps temporary id for server id", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		tempID := uuid.New()
		serverID := uuid.New()

		m := c.StageCreate(domain.Task{ID: tempID, Title: "draft"})
		_, ok := c.Get(tempID)
		require.True(t, ok, "optimistic entry must be visible immediately")

		m.Confirm(domain.Task{ID: serverID, Title: "draft"})

		_, ok = c.Get(tempID)
		assert.False(t, ok, "temporary id must be gone after confirm")
		got, ok := c.Get(serverID)
		require.True(t, ok)
		assert.Equal(t, "draft", got.Title)
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, MutationConfirmed, m.State())
	})

	t.Run("broadcast after confirm does not duplicate", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		serverID := uuid.New()

		m := c.StageCreate(domain.Task{ID: uuid.New(), Title: "draft"})
		m.Confirm(domain.Task{ID: serverID, Title: "draft"})

		inserted := c.ApplyCreated(domain.Task{ID: serverID, Title: "draft"})
		assert.False(t, inserted, "own creation echoed back must be deduplicated")
		assert.Equal(t, 1, c.Len())
	})

	t.Run("broadcast before confirm then confirm converges", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		serverID := uuid.New()

		m := c.StageCreate(domain.Task{ID: uuid.New(), Title: "draft"})

		// Fan-out can outrun the write response.
		inserted := c.ApplyCreated(domain.Task{ID: serverID, Title: "draft"})
		assert.True(t, inserted)

		m.Confirm(domain.Task{ID: serverID, Title: "draft"})
		assert.Equal(t, 1, c.Len(), "exactly one entry per entity id")
	})
}

func TestCollectionRollback(t *testing.T) {
	t.Parallel()

	t.Run("create rollback restores snapshot exactly", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		existing := domain.Task{ID: uuid.New(), Title: "kept"}
		c.Replace([]domain.Task{existing})
		before := c.snapshot()

		m := c.StageCreate(domain.Task{ID: uuid.New(), Title: "doomed"})
		require.Equal(t, 2, c.Len())

		m.Rollback()
		assert.Equal(t, before, c.snapshot())
		assert.Equal(t, MutationRolledBack, m.State())
	})

	t.Run("update rollback restores previous value", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		task := domain.Task{ID: uuid.New(), Title: "original"}
		c.Replace([]domain.Task{task})

		task.Title = "edited"
		m := c.StageUpdate(task)
		got, _ := c.Get(task.ID)
		require.Equal(t, "edited", got.Title)

		m.Rollback()
		got, _ = c.Get(task.ID)
		assert.Equal(t, "original", got.Title)
	})

	t.Run("delete rollback restores the entity", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		task := domain.Task{ID: uuid.New(), Title: "restored"}
		c.Replace([]domain.Task{task})

		m := c.StageDelete(task.ID)
		_, ok := c.Get(task.ID)
		require.False(t, ok)

		m.Rollback()
		got, ok := c.Get(task.ID)
		require.True(t, ok)
		assert.Equal(t, "restored", got.Title)
	})

	t.Run("rollback after confirm is a no-op", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		serverID := uuid.New()

		m := c.StageCreate(domain.Task{ID: uuid.New()})
		m.Confirm(domain.Task{ID: serverID})
		m.Rollback()

		_, ok := c.Get(serverID)
		assert.True(t, ok, "settled mutation must not be undone")
		assert.Equal(t, MutationConfirmed, m.State())
	})
}

func TestCollectionBroadcastMerge(t *testing.T) {
	t.Parallel()

	t.Run("update is last write wins", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		id := uuid.New()
		c.Replace([]domain.Task{{ID: id, Title: "v1"}})

		c.ApplyUpdated(domain.Task{ID: id, Title: "v2"})
		got, _ := c.Get(id)
		assert.Equal(t, "v2", got.Title)
	})

	t.Run("delete of unknown id is harmless", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		c.ApplyDeleted(uuid.New())
		assert.Equal(t, 0, c.Len())
	})

	t.Run("replace swaps full contents", func(t *testing.T) {
		t.Parallel()

		c := taskCollection()
		c.Replace([]domain.Task{{ID: uuid.New()}, {ID: uuid.New()}})
		require.Equal(t, 2, c.Len())

		fresh := domain.Task{ID: uuid.New(), Title: "only"}
		c.Replace([]domain.Task{fresh})
		assert.Equal(t, 1, c.Len())
		_, ok := c.Get(fresh.ID)
		assert.True(t, ok)
	})
}
