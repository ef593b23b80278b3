package blockstream

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// BlockPaths encapsulates basePath and sharding configuration for on-disk
// block storage. Block files are fanned out across shard directories so a
// worker serving millions of blocks never puts them all in one directory.
type BlockPaths struct {
	basePath string
	shards   int
}

// DefaultShards is the shard directory fan-out used when none is specified.
const DefaultShards = 256

// NewBlockPaths creates a path generator with sharding configuration.
// Shards <= 0 falls back to DefaultShards.
func NewBlockPaths(basePath string, shards int) BlockPaths {
	if shards <= 0 {
		shards = DefaultShards
	}
	return BlockPaths{basePath: basePath, shards: shards}
}

// shard computes the shard directory for a block. Block IDs are often
// sequential, so they are hashed first to keep the fan-out even.
func (p BlockPaths) shard(id BlockID) int {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], id)
	return int(xxhash.Sum64(raw[:]) % uint64(p.shards))
}

// BlockPath returns the path for a block file
func (p BlockPaths) BlockPath(id BlockID) string {
	return filepath.Join(p.basePath, "blocks",
		fmt.Sprintf("shard-%03d", p.shard(id)),
		fmt.Sprintf("%d.blk", id))
}

// ShardDir returns the shard directory path for a block
func (p BlockPaths) ShardDir(id BlockID) string {
	return filepath.Join(p.basePath, "blocks", fmt.Sprintf("shard-%03d", p.shard(id)))
}

// EnsureShardDir creates the shard directory for a block if missing
func (p BlockPaths) EnsureShardDir(id BlockID) error {
	return os.MkdirAll(p.ShardDir(id), 0o755)
}
