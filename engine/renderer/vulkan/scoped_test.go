package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaseStackOrder(t *testing.T) {
	var released []int
	stack := &ReleaseStack{}
	for i := 1; i <= 3; i++ {
		Track(stack, i, func(n int) { released = append(released, n) })
	}
	assert.Equal(t, 3, stack.Len())

	stack.Release()
	assert.Equal(t, []int{3, 2, 1}, released)
	assert.Zero(t, stack.Len())

	// A released stack is empty.
	stack.Release()
	assert.Equal(t, []int{3, 2, 1}, released)
}

func TestReleaseStackDisarm(t *testing.T) {
	called := false
	stack := &ReleaseStack{}
	stack.Push(func() { called = true })
	stack.Disarm()
	stack.Release()
	assert.False(t, called)
}

func TestResourceReleaseOnce(t *testing.T) {
	calls := 0
	r := NewResource("module", func(string) { calls++ })
	r.Release()
	r.Release()
	assert.Equal(t, 1, calls)
	assert.Empty(t, r.Handle)

	var nilResource *Resource[int]
	assert.NotPanics(t, nilResource.Release)
}
