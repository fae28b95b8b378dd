package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, []int{3, 4, 5}, r.Slice())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.Dropped())
	assert.Equal(t, []int{4, 5}, r.Last(2))
	assert.Equal(t, []int{3, 4, 5}, r.Last(10))
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[string](0)
	r.Push("a")
	r.Push("b")
	assert.Equal(t, 1, r.Cap())
	assert.Equal(t, []string{"b"}, r.Slice())
}

func TestFence(t *testing.T) {
	var f Fence
	first := f.Next()
	assert.True(t, f.IsLatest(first))
	second := f.Next()
	assert.False(t, f.IsLatest(first))
	assert.True(t, f.IsLatest(second))
	assert.Equal(t, second, f.Current())
}

func TestGetAbsolutePath(t *testing.T) {
	_, err := GetAbsolutePath("")
	assert.Error(t, err)

	dir := t.TempDir()
	missing := filepath.Join(dir, "fresh.db")
	got, err := GetAbsolutePath(missing)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err = GetAbsolutePath("~/haven-does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "haven-does-not-exist"), got)
}
