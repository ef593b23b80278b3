package blockstream

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/miretskiy/blockstream/locator"
)

func TestBlockStore_LocalBlock(t *testing.T) {
	data := blockData(4096)
	path := writeBlockFile(t, data)

	store, err := NewBlockStore(locator.NewMemLocator(), WithReadBufferSize(512))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Register(1, locator.Location{
		Kind:     locator.KindLocal,
		Size:     int64(len(data)),
		Checksum: BlockChecksum(data),
		Path:     path,
	}))

	stream, err := store.OpenStream(1)
	require.NoError(t, err)
	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.NoError(t, stream.Close())
}

func TestBlockStore_RemoteBlock(t *testing.T) {
	worker := startWorker(t)
	data := blockData(30_000)
	placeBlock(t, worker, 2, data)

	store, err := NewBlockStore(locator.NewMemLocator(), WithReadBufferSize(1024))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Register(2, locator.Location{
		Kind: locator.KindRemote,
		Size: int64(len(data)),
		Addr: worker.Addr(),
	}))

	stream, err := store.OpenStream(2)
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Seek(25_000))
	buf := make([]byte, 5000)
	n, err := stream.ReadInto(buf, 0, len(buf))
	require.NoError(t, err)
	require.Equal(t, 5000, n)
	require.Equal(t, data[25_000:], buf)
}

func TestBlockStore_UnknownBlock(t *testing.T) {
	store, err := NewBlockStore(locator.NewMemLocator())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.OpenStream(12345)
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestBlockStore_ReadBlockVerifiesChecksum(t *testing.T) {
	data := blockData(2048)
	path := writeBlockFile(t, data)

	store, err := NewBlockStore(locator.NewMemLocator(), WithVerifyOnRead(true))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Register(1, locator.Location{
		Kind:     locator.KindLocal,
		Size:     int64(len(data)),
		Checksum: BlockChecksum(data),
		Path:     path,
	}))
	require.NoError(t, store.Register(2, locator.Location{
		Kind:     locator.KindLocal,
		Size:     int64(len(data)),
		Checksum: 1, // wrong on purpose
		Path:     path,
	}))

	got, err := store.ReadBlock(1)
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, err = store.ReadBlock(2)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestBlockStore_ReadBlockSkipsVerifyWhenDisabled(t *testing.T) {
	data := blockData(1024)
	path := writeBlockFile(t, data)

	store, err := NewBlockStore(locator.NewMemLocator())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Register(1, locator.Location{
		Kind:     locator.KindLocal,
		Size:     int64(len(data)),
		Checksum: 1, // wrong, but VerifyOnRead is off
		Path:     path,
	}))

	got, err := store.ReadBlock(1)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestBlockStore_DeregisteredBlock(t *testing.T) {
	data := blockData(100)
	path := writeBlockFile(t, data)

	store, err := NewBlockStore(locator.NewMemLocator())
	require.NoError(t, err)
	defer store.Close()

	entry := locator.Location{Kind: locator.KindLocal, Size: 100, Path: path}
	require.NoError(t, store.Register(1, entry))
	require.NoError(t, store.Deregister(1))

	// The bloom filter may still say yes; the locator must say no
	_, err = store.OpenStream(1)
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestBlockStore_BloomPrimedFromLocator(t *testing.T) {
	dir := t.TempDir()
	data := blockData(256)
	path := writeBlockFile(t, data)

	loc, err := locator.NewBitcaskLocator(dir)
	require.NoError(t, err)
	require.NoError(t, loc.Put(55, locator.Location{
		Kind: locator.KindLocal, Size: 256, Path: path,
	}))
	require.NoError(t, loc.Close())

	reopened, err := locator.NewBitcaskLocator(dir)
	require.NoError(t, err)
	store, err := NewBlockStore(reopened)
	require.NoError(t, err)
	defer store.Close()

	// Registered in a previous process, found through the primed filter
	got, err := store.ReadBlock(55)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestBlockStore_RegisterValidation(t *testing.T) {
	store, err := NewBlockStore(locator.NewMemLocator())
	require.NoError(t, err)
	defer store.Close()

	err = store.Register(1, locator.Location{Kind: locator.KindLocal, Size: -1})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBlockStore_StatsAggregateAcrossStreams(t *testing.T) {
	data := blockData(1000)
	path := writeBlockFile(t, data)

	store, err := NewBlockStore(locator.NewMemLocator(), WithReadBufferSize(256))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Register(1, locator.Location{
		Kind: locator.KindLocal, Size: 1000, Path: path,
	}))

	for i := 0; i < 3; i++ {
		stream, err := store.OpenStream(1)
		require.NoError(t, err)
		_, err = io.ReadAll(stream)
		require.NoError(t, err)
		require.NoError(t, stream.Close())
	}

	stats := store.Stats()
	require.Equal(t, int64(3), stats.StreamsOpened)
	require.Equal(t, int64(3000), stats.BytesRead)
}

func TestBlockStore_MissingLocalFile(t *testing.T) {
	store, err := NewBlockStore(locator.NewMemLocator())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Register(1, locator.Location{
		Kind: locator.KindLocal,
		Size: 10,
		Path: "/nonexistent/blocks/1.blk",
	}))

	_, err = store.OpenStream(1)
	require.ErrorIs(t, err, os.ErrNotExist)
}
