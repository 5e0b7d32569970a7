package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelvane/ember/engine/containers"
)

func mintHandles(t *testing.T, count int) []containers.Handle {
	t.Helper()
	table := containers.NewSlotTable[struct{}](uint32(count))
	handles := make([]containers.Handle, count)
	for i := range handles {
		h, err := table.Insert(struct{}{})
		require.NoError(t, err)
		handles[i] = h
	}
	return handles
}

func materialSwitches(items []drawItem) int {
	switches := 0
	bound := containers.NilHandle
	for i := range items {
		if items[i].material != bound {
			switches++
			bound = items[i].material
		}
	}
	return switches
}

func TestSortDrawQueueBatchesByMaterial(t *testing.T) {
	handles := mintHandles(t, 3)
	a, b, c := handles[0], handles[1], handles[2]

	// Worst case interleaving: every draw would rebind.
	items := []drawItem{
		{material: a}, {material: b}, {material: c},
		{material: a}, {material: b}, {material: c},
		{material: a}, {material: b}, {material: c},
	}
	require.Equal(t, 9, materialSwitches(items))

	sortDrawQueue(items)
	assert.Equal(t, 3, materialSwitches(items))
}

func TestSortDrawQueueIsStable(t *testing.T) {
	handles := mintHandles(t, 2)
	a, b := handles[0], handles[1]

	items := []drawItem{
		{material: b, world: ident(1)},
		{material: a, world: ident(2)},
		{material: b, world: ident(3)},
		{material: a, world: ident(4)},
	}
	sortDrawQueue(items)

	// Same-material items keep their original relative order.
	assert.Equal(t, a, items[0].material)
	assert.Equal(t, float32(2), items[0].world[0])
	assert.Equal(t, float32(4), items[1].world[0])
	assert.Equal(t, b, items[2].material)
	assert.Equal(t, float32(1), items[2].world[0])
	assert.Equal(t, float32(3), items[3].world[0])
}

func ident(scale float32) (m [16]float32) {
	m[0] = scale
	return m
}
