package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelvane/ember/engine/core"
)

func TestSlotTableInsertAndAccess(t *testing.T) {
	table := NewSlotTable[string](4)

	h, err := table.Insert("cube")
	require.NoError(t, err)
	require.True(t, h.IsValid())

	called := false
	ok := table.With(h, func(v *string) {
		called = true
		assert.Equal(t, "cube", *v)
	})
	assert.True(t, ok)
	assert.True(t, called)
	assert.Equal(t, 1, table.Len())
}

func TestSlotTableZeroHandleIsInvalid(t *testing.T) {
	table := NewSlotTable[int](2)

	assert.False(t, NilHandle.IsValid())
	assert.False(t, table.Valid(NilHandle))
	assert.False(t, table.With(NilHandle, func(*int) {
		t.Fatal("accessor ran for the zero handle")
	}))
}

func TestSlotTableCapacity(t *testing.T) {
	table := NewSlotTable[int](2)

	_, err := table.Insert(1)
	require.NoError(t, err)
	_, err = table.Insert(2)
	require.NoError(t, err)

	h, err := table.Insert(3)
	assert.ErrorIs(t, err, core.ErrTableFull)
	assert.False(t, h.IsValid())
	assert.Equal(t, 2, table.Len())
}

func TestSlotTableStaleHandleRejected(t *testing.T) {
	table := NewSlotTable[string](1)

	old, err := table.Insert("first")
	require.NoError(t, err)

	removed, ok := table.Remove(old)
	require.True(t, ok)
	assert.Equal(t, "first", removed)

	// Same slot, new generation.
	fresh, err := table.Insert("second")
	require.NoError(t, err)
	assert.Equal(t, old.Index(), fresh.Index())

	assert.False(t, table.Valid(old))
	assert.False(t, table.With(old, func(*string) {
		t.Fatal("stale handle reached the new occupant")
	}))
	assert.True(t, table.Valid(fresh))

	_, ok = table.Remove(old)
	assert.False(t, ok)
}

func TestSlotTableFirstFreeScan(t *testing.T) {
	table := NewSlotTable[int](3)

	h0, _ := table.Insert(10)
	h1, _ := table.Insert(11)
	_, err := table.Insert(12)
	require.NoError(t, err)

	table.Remove(h0)
	reused, err := table.Insert(13)
	require.NoError(t, err)
	assert.Equal(t, h0.Index(), reused.Index())
	assert.True(t, table.Valid(h1))
}

func TestSlotTableRange(t *testing.T) {
	table := NewSlotTable[int](4)
	a, _ := table.Insert(1)
	table.Insert(2)
	table.Insert(3)
	table.Remove(a)

	var got []int
	table.Range(func(_ Handle, v *int) bool {
		got = append(got, *v)
		return true
	})
	assert.Equal(t, []int{2, 3}, got)
}
