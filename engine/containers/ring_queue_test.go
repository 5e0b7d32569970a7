package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[string](3)

	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	require.NoError(t, q.Enqueue("c"))
	require.NoError(t, q.Enqueue("d"))
	assert.True(t, q.IsFull())
	assert.Error(t, q.Enqueue("e"))

	for _, want := range []string{"b", "c", "d"} {
		v, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.True(t, q.IsEmpty())

	_, err = q.Dequeue()
	assert.Error(t, err)
}
