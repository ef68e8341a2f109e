package pagedfile

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadBlockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	pf, err := Create(path, 16, 64)
	require.NoError(t, err)
	defer pf.Close()

	block := bytes.Repeat([]byte{0xAB}, 64)
	require.NoError(t, pf.WriteBlock(1, block))

	got, err := pf.ReadBlock(1)
	require.NoError(t, err)
	require.Equal(t, block, got)
}

func TestMultipleBlocksDoNotOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	pf, err := Create(path, 8, 32)
	require.NoError(t, err)
	defer pf.Close()

	b1 := bytes.Repeat([]byte{0x01}, 32)
	b2 := bytes.Repeat([]byte{0x02}, 32)
	require.NoError(t, pf.WriteBlock(1, b1))
	require.NoError(t, pf.WriteBlock(2, b2))

	got1, err := pf.ReadBlock(1)
	require.NoError(t, err)
	got2, err := pf.ReadBlock(2)
	require.NoError(t, err)
	require.Equal(t, b1, got1)
	require.Equal(t, b2, got2)
}

func TestReadBlockRBNZeroRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	pf, err := Create(path, 8, 32)
	require.NoError(t, err)
	defer pf.Close()

	_, err = pf.ReadBlock(0)
	require.Error(t, err)
}

func TestReadBlockShortRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	pf, err := Create(path, 8, 32)
	require.NoError(t, err)
	defer pf.Close()

	_, err = pf.ReadBlock(5)
	require.Error(t, err)
}

func TestOpenMappedReadsBackWrittenBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	pf, err := Create(path, 8, 32)
	require.NoError(t, err)
	block := bytes.Repeat([]byte{0x42}, 32)
	require.NoError(t, pf.WriteBlock(1, block))
	require.NoError(t, pf.Close())

	mapped, err := OpenMapped(path)
	require.NoError(t, err)
	defer mapped.Close()
	mapped.SetHeaderSize(8)
	mapped.SetBlockSize(32)

	got, err := mapped.ReadBlock(1)
	require.NoError(t, err)
	require.Equal(t, block, got)

	size, err := mapped.Size()
	require.NoError(t, err)
	require.Equal(t, int64(40), size)
}

func TestOpenMappedRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	pf, err := Create(path, 8, 32)
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	mapped, err := OpenMapped(path)
	require.NoError(t, err)
	defer mapped.Close()

	require.Error(t, mapped.WriteBlock(1, bytes.Repeat([]byte{0x01}, 32)))
	require.Error(t, mapped.WriteAt(0, []byte{0x01}))
	require.Error(t, mapped.Truncate(100))
}

func TestHeaderRegionUntouchedByBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")
	pf, err := Create(path, 16, 32)
	require.NoError(t, err)
	defer pf.Close()

	header := bytes.Repeat([]byte{0xFE}, 16)
	require.NoError(t, pf.WriteAt(0, header))

	block := bytes.Repeat([]byte{0x07}, 32)
	require.NoError(t, pf.WriteBlock(1, block))

	gotHeader, err := pf.ReadAt(0, 16)
	require.NoError(t, err)
	require.Equal(t, header, gotHeader)
}
