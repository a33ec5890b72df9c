// Package hashmap implements the persistent open-addressed hashmap that maps
// payload values to sorted lists of point ids. The whole map is a single
// immutable flat file, built offline from a pre-collected set of entries and
// opened read-only afterwards.
//
// File layout:
//
//	Header (64 bytes):
//	  - Magic: "FCHM" (4 bytes)
//	  - Version: uint32
//	  - Hash seed: uint64
//	  - Bucket count: uint64 (power of two)
//	  - Keys count: uint64
//	  - Payload size: uint64
//	  - Reserved: 24 bytes
//
//	Buckets (bucket count × uint64):
//	  Each slot holds 1 + the entry's offset into the payload region, or the
//	  zero sentinel for an empty slot.
//
//	Payload (entries in ascending key order, each 4-byte aligned):
//	  - Key length: uint32
//	  - Key bytes, padded to a multiple of 4
//	  - Values count: uint32
//	  - Values: count × uint32, sorted ascending, deduplicated
//
// Keys are assigned to buckets by seeded xxHash with linear probing. The
// bucket array is sized for a bounded probe sequence; lookups cost one hash
// plus a short scan. Entries are serialized in ascending key order so that a
// sequential walk of the payload region yields deterministic iteration, and
// so identical inputs produce byte-identical files.
package hashmap

import (
	"bytes"
	"encoding/binary"
	"math/bits"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/iamNilotpal/facet/internal/mmapx"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/errors"
)

const (
	magic      = "FCHM"
	version    = uint32(1)
	headerSize = 64

	// defaultSeed keeps builds deterministic: two builds from identical inputs
	// produce byte-identical files.
	defaultSeed = uint64(0x9E3779B97F4A7C15)

	// emptySlot marks an unoccupied bucket. Occupied slots store offset+1.
	emptySlot = uint64(0)
)

// ReadEntryOverhead is the fixed cost charged per lookup: the bucket slot and
// the entry header touched before any value bytes are materialized.
const ReadEntryOverhead = 3 * 8

// Entry is one key with its point id list, as handed to Build.
type Entry struct {
	Key    []byte
	Values []types.PointOffsetType
}

// Map is the opened read-only view.
type Map struct {
	region      *mmapx.Region
	seed        uint64
	bucketCount uint64
	keysCount   uint64
	buckets     []uint64
	payload     []byte
}

// Build materializes the hashmap file at path from the given entries. Value
// lists are sorted and deduplicated here, so every stored list satisfies the
// ascending-unique invariant no matter how the entries were collected.
func Build(path string, entries []Entry) error {
	// Deterministic layout: entries are serialized in ascending key order.
	slices.SortFunc(entries, func(a, b Entry) int {
		return bytes.Compare(a.Key, b.Key)
	})

	for i := range entries {
		slices.Sort(entries[i].Values)
		entries[i].Values = slices.Compact(entries[i].Values)
	}

	bucketCount := bucketCountFor(len(entries))

	// Serialize the payload region and remember each entry's offset.
	var payload bytes.Buffer
	offsets := make([]uint64, len(entries))
	scratch := make([]byte, 4)
	for i, entry := range entries {
		offsets[i] = uint64(payload.Len())

		binary.LittleEndian.PutUint32(scratch, uint32(len(entry.Key)))
		payload.Write(scratch)
		payload.Write(entry.Key)
		for pad := padTo4(len(entry.Key)); pad > 0; pad-- {
			payload.WriteByte(0)
		}

		binary.LittleEndian.PutUint32(scratch, uint32(len(entry.Values)))
		payload.Write(scratch)
		for _, v := range entry.Values {
			binary.LittleEndian.PutUint32(scratch, v)
			payload.Write(scratch)
		}
	}

	// Place every entry into the in-memory bucket array via linear probing.
	buckets := make([]uint64, bucketCount)
	mask := bucketCount - 1
	for i, entry := range entries {
		slot := hashKey(defaultSeed, entry.Key) & mask
		for buckets[slot] != emptySlot {
			slot = (slot + 1) & mask
		}
		buckets[slot] = offsets[i] + 1
	}

	totalSize := int64(headerSize) + int64(8*bucketCount) + int64(payload.Len())
	region, err := mmapx.Create(path, totalSize)
	if err != nil {
		return err
	}

	data := region.Bytes()
	copy(data[:4], magic)
	binary.LittleEndian.PutUint32(data[4:], version)
	binary.LittleEndian.PutUint64(data[8:], defaultSeed)
	binary.LittleEndian.PutUint64(data[16:], bucketCount)
	binary.LittleEndian.PutUint64(data[24:], uint64(len(entries)))
	binary.LittleEndian.PutUint64(data[32:], uint64(payload.Len()))

	bucketBytes := data[headerSize : headerSize+8*int(bucketCount)]
	for i, b := range buckets {
		binary.LittleEndian.PutUint64(bucketBytes[8*i:], b)
	}
	copy(data[headerSize+8*int(bucketCount):], payload.Bytes())

	if err := region.Flush(); err != nil {
		region.Close()
		return err
	}
	return region.Close()
}

// Open maps the hashmap file and validates its header.
func Open(path string, populate bool) (*Map, error) {
	region, err := mmapx.Open(path, false, populate)
	if err != nil {
		return nil, err
	}

	data := region.Bytes()
	if len(data) < headerSize || string(data[:4]) != magic {
		region.Close()
		return nil, errors.NewCorruptionError("Open", nil).
			WithDetail("path", path).
			WithDetail("reason", "bad magic or truncated header")
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != version {
		region.Close()
		return nil, errors.NewCorruptionError("Open", nil).
			WithDetail("path", path).
			WithDetail("unsupportedVersion", v)
	}

	m := &Map{
		region:      region,
		seed:        binary.LittleEndian.Uint64(data[8:]),
		bucketCount: binary.LittleEndian.Uint64(data[16:]),
		keysCount:   binary.LittleEndian.Uint64(data[24:]),
	}
	payloadSize := binary.LittleEndian.Uint64(data[32:])

	bucketsEnd := uint64(headerSize) + 8*m.bucketCount
	if m.bucketCount == 0 || bits.OnesCount64(m.bucketCount) != 1 ||
		bucketsEnd+payloadSize > uint64(len(data)) {
		region.Close()
		return nil, errors.NewCorruptionError("Open", nil).
			WithDetail("path", path).
			WithDetail("reason", "header geometry exceeds file size")
	}

	m.buckets = mmapx.WordsOf(data[headerSize:bucketsEnd])
	m.payload = data[bucketsEnd : bucketsEnd+payloadSize]
	return m, nil
}

// KeysCount returns the number of distinct keys.
func (m *Map) KeysCount() int {
	return int(m.keysCount)
}

// Get returns the sorted point id list stored for key, zero-copy from the
// mmap, or nil when the key is absent. A structurally invalid entry yields a
// corruption error.
func (m *Map) Get(key []byte) ([]types.PointOffsetType, error) {
	if m.keysCount == 0 {
		return nil, nil
	}

	mask := m.bucketCount - 1
	slot := hashKey(m.seed, key) & mask
	for probes := uint64(0); probes <= mask; probes++ {
		stored := m.buckets[slot]
		if stored == emptySlot {
			return nil, nil
		}

		entryKey, values, err := m.entryAt(stored - 1)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(entryKey, key) {
			return values, nil
		}
		slot = (slot + 1) & mask
	}
	return nil, nil
}

// All iterates every entry in ascending key order by walking the payload
// region sequentially. Iteration stops early on a corrupted entry.
func (m *Map) All() func(yield func([]byte, []types.PointOffsetType) bool) {
	return func(yield func([]byte, []types.PointOffsetType) bool) {
		offset := uint64(0)
		for i := uint64(0); i < m.keysCount; i++ {
			key, values, err := m.entryAt(offset)
			if err != nil {
				return
			}
			if !yield(key, values) {
				return
			}
			offset += entrySize(len(key), len(values))
		}
	}
}

// entryAt decodes the entry starting at the given payload offset, returning
// zero-copy views of the key and value list.
func (m *Map) entryAt(offset uint64) ([]byte, []types.PointOffsetType, error) {
	if offset+4 > uint64(len(m.payload)) {
		return nil, nil, m.corrupted(offset, "entry header out of bounds")
	}

	keyLen := uint64(binary.LittleEndian.Uint32(m.payload[offset:]))
	keyStart := offset + 4
	countStart := keyStart + keyLen + uint64(padTo4(int(keyLen)))
	if countStart+4 > uint64(len(m.payload)) {
		return nil, nil, m.corrupted(offset, "key exceeds payload region")
	}

	count := uint64(binary.LittleEndian.Uint32(m.payload[countStart:]))
	valuesStart := countStart + 4
	valuesEnd := valuesStart + 4*count
	if valuesEnd > uint64(len(m.payload)) {
		return nil, nil, m.corrupted(offset, "value list exceeds payload region")
	}

	key := m.payload[keyStart : keyStart+keyLen]
	values := mmapx.U32SliceOf(m.payload[valuesStart:valuesEnd])
	return key, values, nil
}

func (m *Map) corrupted(offset uint64, reason string) error {
	return errors.NewCorruptionError("Get", nil).
		WithDetail("path", m.region.Path()).
		WithDetail("payloadOffset", offset).
		WithDetail("reason", reason)
}

// Populate blocks until all pages of the map are resident.
func (m *Map) Populate() {
	m.region.Populate()
}

// ClearCache hints the kernel to drop this map's cached pages.
func (m *Map) ClearCache() error {
	return m.region.ClearCache()
}

// Close unmaps the file.
func (m *Map) Close() error {
	return m.region.Close()
}

func hashKey(seed uint64, key []byte) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(key)
	return d.Sum64()
}

// bucketCountFor sizes the bucket array at a load factor of at most 0.5,
// which bounds expected probe sequences to a handful of slots.
func bucketCountFor(entries int) uint64 {
	need := uint64(entries) * 2
	if need < 4 {
		need = 4
	}
	return 1 << bits.Len64(need-1)
}

func entrySize(keyLen, valuesCount int) uint64 {
	return uint64(4 + keyLen + padTo4(keyLen) + 4 + 4*valuesCount)
}

func padTo4(n int) int {
	return (4 - n%4) % 4
}
