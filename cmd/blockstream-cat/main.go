package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/miretskiy/blockstream"
)

func main() {
	// Define flags
	file := flag.String("file", "", "Path to a local block file")
	addr := flag.String("addr", "", "Address of a block worker (host:port)")
	block := flag.Uint64("block", 0, "Block ID to fetch (required with --addr)")
	size := flag.Int64("size", 0, "Block size in bytes (required with --addr)")
	bufSize := flag.Int("buffer", 0, "Stream buffer size in bytes (0 = default)")
	direct := flag.Bool("direct", false, "Use O_DIRECT for local block reads")
	flag.Parse()

	if (*file == "") == (*addr == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of --file or --addr is required")
		fmt.Fprintln(os.Stderr, "\nUsage:")
		fmt.Fprintln(os.Stderr, "  blockstream-cat --file=/path/to/123.blk")
		fmt.Fprintln(os.Stderr, "  blockstream-cat --addr=host:port --block=123 --size=67108864")
		fmt.Fprintln(os.Stderr, "\nReads one block and writes its bytes to stdout.")
		os.Exit(1)
	}

	var opts []blockstream.Option
	if *bufSize > 0 {
		opts = append(opts, blockstream.WithReadBufferSize(*bufSize))
	}
	if *direct {
		opts = append(opts, blockstream.WithDirectIO(true))
	}

	var transport blockstream.Transport
	var blockSize int64

	if *file != "" {
		local, err := blockstream.OpenLocalTransport(*file, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open block file: %v\n", err)
			os.Exit(1)
		}
		transport = local
		blockSize = local.Size()
	} else {
		if *size <= 0 {
			fmt.Fprintln(os.Stderr, "Error: --size is required with --addr")
			os.Exit(1)
		}
		remote, err := blockstream.DialRemoteTransport(*addr, *block, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to dial worker: %v\n", err)
			os.Exit(1)
		}
		transport = remote
		blockSize = *size
	}

	stream := blockstream.NewBlockInStream(*block, blockSize, transport, opts...)
	defer stream.Close()

	if _, err := io.Copy(os.Stdout, stream); err != nil {
		fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		os.Exit(1)
	}
}
