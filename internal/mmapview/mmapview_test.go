package mmapview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAndAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	v, err := Open(path)
	require.NoError(t, err)
	defer v.Close()

	require.Equal(t, 11, v.Len())
	b, err := v.At(6, 5)
	require.NoError(t, err)
	require.Equal(t, "world", string(b))

	_, err = v.At(6, 100)
	require.Error(t, err)
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	v, err := Open(path)
	require.NoError(t, err)
	defer v.Close()
	require.Equal(t, 0, v.Len())
}
