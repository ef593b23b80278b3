package blockstream

import (
	"bytes"
	"io"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestVerifyingReader_ValidChecksum(t *testing.T) {
	data := []byte("hello block")
	reader := NewVerifyingReader(bytes.NewReader(data), xxhash.Sum64(data))

	result, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, data, result)
}

func TestVerifyingReader_InvalidChecksum(t *testing.T) {
	data := []byte("hello block")
	reader := NewVerifyingReader(bytes.NewReader(data), 12345) // Intentionally wrong

	// Fails on the read that hits EOF, but the data is still delivered
	result, err := io.ReadAll(reader)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.Equal(t, data, result)
}

func TestVerifyingReader_SubsequentReadsAfterError(t *testing.T) {
	data := []byte("test")
	reader := NewVerifyingReader(bytes.NewReader(data), 99999)

	buf := make([]byte, 100)
	var totalRead int
	var checksumErr error
	for {
		n, err := reader.Read(buf[totalRead:])
		totalRead += n
		if err != nil {
			checksumErr = err
			break
		}
	}
	require.ErrorIs(t, checksumErr, ErrChecksumMismatch)
	require.Equal(t, 4, totalRead) // All data delivered before the error

	// The mismatch is cached and returned by every later read
	n, err := reader.Read(buf)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.Zero(t, n)
}

func TestVerifyingReader_OneByteAtATime(t *testing.T) {
	data := []byte("incremental checksum test")
	reader := NewVerifyingReader(bytes.NewReader(data), xxhash.Sum64(data))

	var result []byte
	buf := make([]byte, 1)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			result = append(result, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	require.Equal(t, data, result)
}

func TestVerifyingReader_EmptyData(t *testing.T) {
	var data []byte
	reader := NewVerifyingReader(bytes.NewReader(data), xxhash.Sum64(data))

	buf := make([]byte, 10)
	n, err := reader.Read(buf)
	require.Zero(t, n)
	require.Equal(t, io.EOF, err)
}

func TestVerifyingReader_EmptyData_WrongChecksum(t *testing.T) {
	var data []byte
	reader := NewVerifyingReader(bytes.NewReader(data), 999)

	buf := make([]byte, 10)
	n, err := reader.Read(buf)
	require.Zero(t, n)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestVerifyingReader_OverBlockStream(t *testing.T) {
	data := blockData(10_000)
	transport := &memTransport{data: data}
	stream := NewBlockInStream(11, int64(len(data)), transport, WithReadBufferSize(512))

	reader := NewVerifyingReader(stream, BlockChecksum(data))
	result, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, data, result)
}
