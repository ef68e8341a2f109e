package applog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDiscardsByDefault(t *testing.T) {
	require.NoError(t, Init(Options{}))
	Info("should not panic or write anywhere visible")
}

func TestInitWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, Init(Options{Verbose: true, File: path}))
	Info("hello", "zip", 55105)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, string(data), "55105")

	require.NoError(t, Init(Options{}))
}
