package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testItem(n int) Item {
	return Item{Fn: func() {}}
}

var initialCapacity = 2

func TestQueueResize(t *testing.T) {
	q := New(initialCapacity)
	require.Equal(t, 0, q.Len())
	require.Equal(t, false, q.Closed())

	for i := 0; i < initialCapacity; i++ {
		q.Add(testItem(i))
	}
	q.Add(testItem(99))
	require.Equal(t, initialCapacity*2, q.Cap())
	q.Remove()

	q.Add(testItem(100))
	require.Equal(t, initialCapacity*2, q.Cap())
	q.Add(testItem(101))
	require.Equal(t, initialCapacity*2, q.Cap())

	require.Equal(t, initialCapacity+2, q.Len())
}

func TestQueueWait(t *testing.T) {
	q := New(initialCapacity)
	var order []string
	q.Add(Item{Fn: func() { order = append(order, "1") }})
	q.Add(Item{Fn: func() { order = append(order, "2") }})

	ok := q.Wait()
	require.True(t, ok)
	item, ok := q.Remove()
	require.True(t, ok)
	item.Fn()

	ok = q.Wait()
	require.True(t, ok)
	item, ok = q.Remove()
	require.True(t, ok)
	item.Fn()

	require.Equal(t, []string{"1", "2"}, order)
}

func TestQueueClose(t *testing.T) {
	q := New(initialCapacity)
	q.Add(testItem(1))
	q.Close()
	require.True(t, q.Closed())
	ok := q.Add(testItem(2))
	require.False(t, ok)
	ok = q.Wait()
	require.False(t, ok)
}

func TestQueueRunsInOrder(t *testing.T) {
	q := New(initialCapacity)
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		q.Add(Item{Fn: func() { got = append(got, i) }})
	}
	for i := 0; i < 5; i++ {
		item, ok := q.Remove()
		require.True(t, ok)
		item.Fn()
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}
