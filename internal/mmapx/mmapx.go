// Package mmapx provides the memory-mapped file backing for the index
// structures: the persistent hashmap, the point-to-values map, the tombstone
// bitmap and the numeric key file all live in regions managed here.
//
// A Region owns both the file handle and the mapping. Regions opened for an
// index that lives in RAM are populated eagerly so queries never stall on
// page faults; on-disk regions are left cold and faulted in on demand. The
// region can also hint the kernel to drop its cached pages, which the engine
// uses when an index is demoted from the working set.
package mmapx

import (
	"os"
	"path/filepath"
	"unsafe"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"

	"github.com/iamNilotpal/facet/pkg/errors"
)

const pageSize = 4096

// Region is a memory-mapped view of a single index file.
type Region struct {
	path string
	file *os.File
	data mmap.MMap
}

// Create creates (or truncates) the file at path, extends it to size bytes
// and maps it read-write. A zero size still produces a valid empty mapping
// target; callers that need one page of headroom must size it themselves.
func Create(path string, size int64) (*Region, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, filepath.Base(path))
	}

	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to size index file").
			WithPath(path).
			WithDetail("requestedSize", size)
	}

	// Zero-length files cannot be mapped; an empty region still supports
	// Flush/Close so callers don't need a special case.
	if size == 0 {
		return &Region{path: path, file: file}, nil
	}

	data, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to map index file").
			WithPath(path)
	}

	return &Region{path: path, file: file, data: data}, nil
}

// Open maps an existing file. Writable regions are mapped shared read-write
// (the tombstone bitmap mutates in place); read-only regions protect the
// immutable structures from stray writes. When populate is set, every page is
// touched before Open returns.
func Open(path string, writable bool, populate bool) (*Region, error) {
	flags := os.O_RDONLY
	prot := mmap.RDONLY
	if writable {
		flags = os.O_RDWR
		prot = mmap.RDWR
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, filepath.Base(path))
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to stat index file").
			WithPath(path)
	}
	if stat.Size() == 0 {
		return &Region{path: path, file: file}, nil
	}

	data, err := mmap.Map(file, prot, 0)
	if err != nil {
		file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to map index file").
			WithPath(path)
	}

	r := &Region{path: path, file: file, data: data}
	if populate {
		r.Populate()
	}
	return r, nil
}

// Bytes returns the mapped content. The slice aliases the mapping directly;
// it is valid until Close.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the mapped length in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Path returns the backing file path.
func (r *Region) Path() string {
	return r.path
}

// Flush writes dirty pages back to the file and syncs.
func (r *Region) Flush() error {
	if r.data == nil {
		return r.file.Sync()
	}
	if err := r.data.Flush(); err != nil {
		return errors.ClassifySyncError(err, filepath.Base(r.path), r.path)
	}
	return nil
}

// Populate walks every page of the mapping, blocking until the whole region
// is resident.
func (r *Region) Populate() {
	var sink byte
	for i := 0; i < len(r.data); i += pageSize {
		sink ^= r.data[i]
	}
	_ = sink
}

// ClearCache hints the kernel to drop the cached pages of this region. The
// mapping stays valid; subsequent reads fault the pages back in.
func (r *Region) ClearCache() error {
	if len(r.data) == 0 {
		return nil
	}
	if err := unix.Madvise(r.data, unix.MADV_DONTNEED); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to drop page cache").
			WithPath(r.path)
	}
	return nil
}

// Close unmaps the region and closes the file.
func (r *Region) Close() error {
	if r.data == nil {
		return r.file.Close()
	}
	if err := r.data.Unmap(); err != nil {
		r.file.Close()
		return errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to unmap index file").
			WithPath(r.path)
	}
	return r.file.Close()
}

// ClearDiskCache drops the page cache for a file without keeping a mapping
// around: it maps the file briefly just to issue the advice. Used for files
// that are currently opened elsewhere in read-only mode.
func ClearDiskCache(path string) error {
	exists, err := fileExists(path)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	r, err := Open(path, false, false)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.ClearCache()
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// WordsOf reinterprets a byte slice as machine words. The slice must be
// 8-byte aligned and a multiple of 8 bytes long, which holds for whole
// mappings (page aligned) and for word-rounded regions inside them.
func WordsOf(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

// U32SliceOf reinterprets a byte slice as little-endian uint32 values. The
// slice must be 4-byte aligned and a multiple of 4 bytes long; the hashmap
// payload layout guarantees that for value lists.
func U32SliceOf(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}
