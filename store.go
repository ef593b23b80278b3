package blockstream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/miretskiy/blockstream/locator"
)

// BlockStore resolves block IDs to transports and hands out streams.
// Placement comes from the injected Locator; a bloom filter in front of it
// answers most lookups for unregistered blocks without touching the
// locator at all.
//
// The store only reads blocks. Writing block data and deciding placement
// belong to whoever populates the locator.
type BlockStore struct {
	config
	opts    []Option
	loc     locator.Locator
	filter  *bloom.BloomFilter
	metrics *Metrics
}

// NewBlockStore creates a store over an existing locator. The bloom filter
// is primed from the locator's current contents.
func NewBlockStore(loc locator.Locator, opts ...Option) (*BlockStore, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &Metrics{}
		opts = append(opts, WithMetrics(metrics))
	}

	filter := bloom.NewWithEstimates(uint(cfg.BloomEstimatedKeys), cfg.BloomFPRate)
	primed := 0
	err := loc.ForEach(func(id locator.BlockID, _ locator.Location) error {
		filter.Add(bloomKey(id))
		primed++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prime bloom filter: %w", err)
	}
	if primed > 0 {
		log.Debug("primed block store bloom filter", "blocks", primed)
	}

	return &BlockStore{
		config:  cfg,
		opts:    opts,
		loc:     loc,
		filter:  filter,
		metrics: metrics,
	}, nil
}

func bloomKey(id BlockID) []byte {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], id)
	return raw[:]
}

// Register records where a block lives. All placement updates must go
// through the store so the bloom filter stays a superset of the locator.
func (s *BlockStore) Register(id BlockID, loc locator.Location) error {
	if loc.Size < 0 {
		return fmt.Errorf("%w: negative block size %d", ErrInvalidArgument, loc.Size)
	}
	if err := s.loc.Put(id, loc); err != nil {
		return err
	}
	s.filter.Add(bloomKey(id))
	return nil
}

// Deregister forgets a block's placement. The bloom filter cannot unlearn
// the ID, so later lookups may still hit the locator and miss there.
func (s *BlockStore) Deregister(id BlockID) error {
	return s.loc.Delete(id)
}

// Location fills loc with the registered placement for a block.
func (s *BlockStore) Location(id BlockID, loc *locator.Location) error {
	if !s.filter.Test(bloomKey(id)) {
		return fmt.Errorf("%w: block %d", ErrBlockNotFound, id)
	}
	if err := s.loc.Get(id, loc); err != nil {
		if errors.Is(err, locator.ErrNotFound) {
			return fmt.Errorf("%w: block %d", ErrBlockNotFound, id)
		}
		return err
	}
	return nil
}

// OpenStream resolves a block's location and returns a stream over it.
// The caller owns the stream and must Close it (or drain it byte-wise,
// which auto-closes at end of block).
func (s *BlockStore) OpenStream(id BlockID) (*BlockInStream, error) {
	var entry locator.Location
	if err := s.Location(id, &entry); err != nil {
		return nil, err
	}
	return s.openStream(id, entry)
}

func (s *BlockStore) openStream(id BlockID, entry locator.Location) (*BlockInStream, error) {
	var transport Transport
	var err error
	switch entry.Kind {
	case locator.KindLocal:
		transport, err = OpenLocalTransport(entry.Path, s.opts...)
	case locator.KindRemote:
		transport, err = DialRemoteTransport(entry.Addr, id, s.opts...)
	default:
		return nil, fmt.Errorf("unknown location kind %d for block %d", entry.Kind, id)
	}
	if err != nil {
		return nil, err
	}

	return NewBlockInStream(id, entry.Size, transport, s.opts...), nil
}

// ReadBlock reads a whole block into memory. When VerifyOnRead is set and
// the block has a registered checksum, the content is verified before it
// is returned.
func (s *BlockStore) ReadBlock(id BlockID) ([]byte, error) {
	var entry locator.Location
	if err := s.Location(id, &entry); err != nil {
		return nil, err
	}

	stream, err := s.openStream(id, entry)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var r io.Reader = stream
	if s.VerifyOnRead && entry.Checksum != 0 {
		r = NewVerifyingReader(stream, entry.Checksum)
	}

	data := make([]byte, 0, entry.Size)
	buf := bytes.NewBuffer(data)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stats returns a snapshot of the store's stream metrics.
func (s *BlockStore) Stats() MetricsSnapshot {
	return s.metrics.Stats()
}

// Close closes the locator. Streams already handed out stay usable; they
// own their transports.
func (s *BlockStore) Close() error {
	return s.loc.Close()
}
