package sandbox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitedBuffer(t *testing.T) {
	t.Run("UnderLimit", func(t *testing.T) {
		b := &limitedBuffer{limit: 10}
		n, err := b.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", b.String())
		assert.False(t, b.truncated)
	})

	t.Run("CrossesLimit", func(t *testing.T) {
		b := &limitedBuffer{limit: 8}
		_, _ = b.Write([]byte("hello"))
		n, err := b.Write([]byte(" world"))
		require.NoError(t, err)
		assert.Equal(t, 6, n, "writes always report full length")
		assert.Equal(t, "hello wo", b.String())
		assert.True(t, b.truncated)
	})

	t.Run("AfterLimit", func(t *testing.T) {
		b := &limitedBuffer{limit: 3}
		_, _ = b.Write([]byte("abc"))
		assert.False(t, b.truncated)
		_, _ = b.Write([]byte("d"))
		assert.Equal(t, "abc", b.String())
		assert.True(t, b.truncated)
	})

	t.Run("Unlimited", func(t *testing.T) {
		b := &limitedBuffer{}
		_, _ = b.Write(make([]byte, 4096))
		assert.Len(t, b.String(), 4096)
		assert.False(t, b.truncated)
	})
}

func TestRealFileSystem(t *testing.T) {
	fs := RealFileSystem{}
	dir := filepath.Join(t.TempDir(), "nested", "dir")

	require.NoError(t, fs.MkdirAll(dir, DirPermission))

	path := filepath.Join(dir, "harness-1.py")
	exists, err := fs.FileExists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.WriteFile(path, []byte("print(1)"), HarnessPermission))
	exists, err = fs.FileExists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	err = fs.WriteFile(path, []byte("print(2)"), HarnessPermission)
	assert.Error(t, err, "existing harness must not be overwritten")

	require.NoError(t, fs.Remove(path))
	exists, err = fs.FileExists(path)
	require.NoError(t, err)
	assert.False(t, exists)
}
