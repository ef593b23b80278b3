package blockstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Worker serves block files out of a local directory to RemoteTransport
// clients. Open block files are cached per worker; connections are handled
// concurrently, one goroutine each.
type Worker struct {
	paths BlockPaths

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool

	cache sync.Map // BlockID -> *os.File
	wg    sync.WaitGroup
}

// NewWorker creates a worker serving blocks from dir, laid out by
// BlockPaths with the default shard fan-out.
func NewWorker(dir string) *Worker {
	return &Worker{
		paths: NewBlockPaths(dir, DefaultShards),
		conns: make(map[net.Conn]struct{}),
	}
}

// Paths exposes the on-disk layout so callers can place block files where
// this worker will find them.
func (w *Worker) Paths() BlockPaths {
	return w.paths
}

// Listen binds addr and starts accepting connections in the background.
// Use Addr to discover the bound address when addr uses port 0.
func (w *Worker) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		ln.Close()
		return errors.New("worker is closed")
	}
	w.ln = ln
	w.mu.Unlock()

	w.wg.Add(1)
	go w.acceptLoop(ln)
	return nil
}

// Addr returns the listener address, or "" before Listen.
func (w *Worker) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ln == nil {
		return ""
	}
	return w.ln.Addr().String()
}

func (w *Worker) acceptLoop(ln net.Listener) {
	defer w.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !w.isClosed() {
				log.Error("block worker accept failed", "error", err)
			}
			return
		}
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			conn.Close()
			return
		}
		w.conns[conn] = struct{}{}
		w.mu.Unlock()

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() {
				w.mu.Lock()
				delete(w.conns, conn)
				w.mu.Unlock()
			}()
			w.handleConn(conn)
		}()
	}
}

func (w *Worker) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Worker) handleConn(conn net.Conn) {
	defer conn.Close()

	var req [reqFrameSize]byte
	for {
		if _, err := io.ReadFull(conn, req[:]); err != nil {
			// EOF is the client hanging up between requests.
			if !errors.Is(err, io.EOF) && !w.isClosed() {
				log.Error("block worker request read failed", "error", err)
			}
			return
		}

		op, blockID, off, length := decodeRequest(&req)
		if op != opRead || off < 0 || length < 0 || length > maxRequestBytes {
			w.writeFailure(conn, statusError, fmt.Sprintf("malformed request: op %d, offset %d, length %d", op, off, length))
			return
		}

		if err := w.serveRead(conn, blockID, off, length); err != nil {
			log.Error("block worker response write failed", "block", blockID, "error", err)
			return
		}
	}
}

func (w *Worker) serveRead(conn net.Conn, blockID BlockID, off int64, length int) error {
	file, err := w.blockFile(blockID)
	if err != nil {
		if os.IsNotExist(err) {
			return w.writeFailure(conn, statusNotFound, fmt.Sprintf("block %d", blockID))
		}
		return w.writeFailure(conn, statusError, err.Error())
	}

	payload := make([]byte, length)
	n, err := file.ReadAt(payload, off)
	if err != nil && err != io.EOF {
		return w.writeFailure(conn, statusError, err.Error())
	}
	payload = payload[:n]

	var hdr [respHeaderSize]byte
	hdr[0] = statusOK
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(n))
	if _, err := conn.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := conn.Write(payload); err != nil {
		return err
	}

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(payload))
	_, err = conn.Write(sum[:])
	return err
}

func (w *Worker) writeFailure(conn net.Conn, status byte, msg string) error {
	var hdr [respHeaderSize]byte
	hdr[0] = status
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(msg)))
	if _, err := conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := io.WriteString(conn, msg)
	return err
}

// blockFile returns a cached handle or opens the block file.
func (w *Worker) blockFile(blockID BlockID) (*os.File, error) {
	if cached, ok := w.cache.Load(blockID); ok {
		return cached.(*os.File), nil
	}

	file, err := os.Open(w.paths.BlockPath(blockID))
	if err != nil {
		return nil, err
	}

	// LoadOrStore handles the race with a concurrent open
	actual, loaded := w.cache.LoadOrStore(blockID, file)
	if loaded {
		file.Close()
		return actual.(*os.File), nil
	}
	return file, nil
}

// Close stops the listener, waits for in-flight connections, and closes
// all cached block files.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	ln := w.ln
	for conn := range w.conns {
		conn.Close()
	}
	w.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	w.wg.Wait()

	w.cache.Range(func(key, value any) bool {
		if file, ok := value.(*os.File); ok {
			file.Close()
		}
		w.cache.Delete(key)
		return true
	})
	return nil
}
