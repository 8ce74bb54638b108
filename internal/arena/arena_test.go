package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateReleasePartition(t *testing.T) {
	a := New[int](4)
	assert.Equal(t, 4, a.Free())
	assert.Equal(t, 0, a.Live())

	idx0, err := a.Allocate()
	require.NoError(t, err)
	idx1, err := a.Allocate()
	require.NoError(t, err)

	assert.Equal(t, 2, a.Live())
	assert.Equal(t, 2, a.Free())
	assert.NotEqual(t, idx0, idx1)

	a.Release(idx0)
	assert.Equal(t, 1, a.Live())
	assert.Equal(t, 3, a.Free())
}

func TestAllocateExhaustion(t *testing.T) {
	a := New[int](2)
	_, err := a.Allocate()
	require.NoError(t, err)
	_, err = a.Allocate()
	require.NoError(t, err)

	_, err = a.Allocate()
	assert.ErrorIs(t, err, ErrFull)
}

func TestReleaseZeroesSlot(t *testing.T) {
	a := New[int](2)
	idx, err := a.Allocate()
	require.NoError(t, err)
	*a.Get(idx) = 42
	a.Release(idx)

	idx2, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 0, *a.Get(idx2))
}

func TestAllocateAfterFullCycleReusesCapacity(t *testing.T) {
	a := New[int](3)
	var allocated []uint32
	for i := 0; i < 3; i++ {
		idx, err := a.Allocate()
		require.NoError(t, err)
		allocated = append(allocated, idx)
	}
	for _, idx := range allocated {
		a.Release(idx)
	}
	assert.Equal(t, 3, a.Free())
	for i := 0; i < 3; i++ {
		_, err := a.Allocate()
		require.NoError(t, err)
	}
	_, err := a.Allocate()
	assert.ErrorIs(t, err, ErrFull)
}
