package blockstream

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// startWorker serves blocks from a temp dir and returns the worker plus a
// helper for placing block files where it looks for them.
func startWorker(t *testing.T) *Worker {
	t.Helper()
	worker := NewWorker(t.TempDir())
	require.NoError(t, worker.Listen("127.0.0.1:0"))
	t.Cleanup(func() { worker.Close() })
	return worker
}

func placeBlock(t *testing.T, worker *Worker, id BlockID, data []byte) {
	t.Helper()
	paths := worker.Paths()
	require.NoError(t, paths.EnsureShardDir(id))
	require.NoError(t, os.WriteFile(paths.BlockPath(id), data, 0o644))
}

func TestRemoteTransport_StreamReads(t *testing.T) {
	worker := startWorker(t)
	data := blockData(1 << 16)
	placeBlock(t, worker, 9, data)

	transport, err := DialRemoteTransport(worker.Addr(), 9)
	require.NoError(t, err)

	stream := NewBlockInStream(9, int64(len(data)), transport, WithReadBufferSize(4096))
	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.NoError(t, stream.Close())
}

func TestRemoteTransport_SeekAndBypass(t *testing.T) {
	worker := startWorker(t)
	data := blockData(50_000)
	placeBlock(t, worker, 3, data)

	transport, err := DialRemoteTransport(worker.Addr(), 3)
	require.NoError(t, err)

	stream := NewBlockInStream(3, int64(len(data)), transport, WithReadBufferSize(1024))
	defer stream.Close()

	// Buffered read after a seek
	require.NoError(t, stream.Seek(40_000))
	b, err := stream.ReadByte()
	require.NoError(t, err)
	require.Equal(t, data[40_000], b)

	// Large read bypasses the buffer, served by the same connection
	require.NoError(t, stream.Seek(10_000))
	buf := make([]byte, 20_000)
	n, err := stream.ReadInto(buf, 0, len(buf))
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, data[10_000:30_000], buf)
}

func TestRemoteTransport_BlockNotFound(t *testing.T) {
	worker := startWorker(t)

	transport, err := DialRemoteTransport(worker.Addr(), 404)
	require.NoError(t, err)
	defer transport.Close()

	buf := make([]byte, 16)
	_, err = transport.Refill(buf, 0)
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestRemoteTransport_ConnectionSurvivesNotFound(t *testing.T) {
	worker := startWorker(t)
	data := blockData(256)
	placeBlock(t, worker, 1, data)

	missing, err := DialRemoteTransport(worker.Addr(), 404)
	require.NoError(t, err)
	defer missing.Close()

	buf := make([]byte, 16)
	_, err = missing.Refill(buf, 0)
	require.ErrorIs(t, err, ErrBlockNotFound)

	// A separate transport on the same worker still works
	transport, err := DialRemoteTransport(worker.Addr(), 1)
	require.NoError(t, err)
	defer transport.Close()
	n, err := transport.Refill(buf, 100)
	require.NoError(t, err)
	require.Equal(t, 16, n)
	require.Equal(t, data[100:116], buf)
}

func TestRemoteTransport_ShortFillAtEndOfBlock(t *testing.T) {
	worker := startWorker(t)
	data := blockData(1000)
	placeBlock(t, worker, 5, data)

	transport, err := DialRemoteTransport(worker.Addr(), 5)
	require.NoError(t, err)
	defer transport.Close()

	buf := make([]byte, 100)
	n, err := transport.ReadDirect(buf, 950)
	require.NoError(t, err)
	require.Equal(t, 50, n)
	require.Equal(t, data[950:], buf[:n])
}

func TestWorker_CloseIdempotent(t *testing.T) {
	worker := NewWorker(t.TempDir())
	require.NoError(t, worker.Listen("127.0.0.1:0"))
	require.NoError(t, worker.Close())
	require.NoError(t, worker.Close())
}
