// This file provides in-memory collaborator implementations. The real
// firmware talks to a hardware board API; host-side tools and tests run the
// same synthesizer against these.

package ghostfat

import (
	"github.com/dsoprea/go-logging"
)

// MemoryFlash simulates the flashable firmware region in RAM.
type MemoryFlash struct {
	base       uint32
	data       []byte
	flushCount int
}

// NewMemoryFlash returns a zero-filled flash region of the given size,
// addressed starting at base.
func NewMemoryFlash(base, size uint32) *MemoryFlash {
	return &MemoryFlash{
		base: base,
		data: make([]byte, size),
	}
}

// Capacity returns the region size in bytes.
func (mf *MemoryFlash) Capacity() (size uint32, err error) {
	return uint32(len(mf.data)), nil
}

func (mf *MemoryFlash) checkRange(addr uint32, count int) (offset uint32, err error) {
	if addr < mf.base {
		return 0, log.Errorf("address (0x%08x) below flash base (0x%08x)", addr, mf.base)
	}

	offset = addr - mf.base
	if int(offset)+count > len(mf.data) {
		return 0, log.Errorf("range (0x%08x)+(%d) exceeds flash size (%d)", addr, count, len(mf.data))
	}

	return offset, nil
}

// ReadAt fills data from the given flash address.
func (mf *MemoryFlash) ReadAt(addr uint32, data []byte) (err error) {
	offset, err := mf.checkRange(addr, len(data))
	if err != nil {
		return err
	}

	copy(data, mf.data[offset:])

	return nil
}

// WriteAt programs data at the given flash address.
func (mf *MemoryFlash) WriteAt(addr uint32, data []byte) (err error) {
	offset, err := mf.checkRange(addr, len(data))
	if err != nil {
		return err
	}

	copy(mf.data[offset:], data)

	return nil
}

// Flush records the durability barrier.
func (mf *MemoryFlash) Flush() (err error) {
	mf.flushCount++

	return nil
}

// FlushCount is the number of barriers issued so far.
func (mf *MemoryFlash) FlushCount() int {
	return mf.flushCount
}

// Bytes exposes the backing region.
func (mf *MemoryFlash) Bytes() []byte {
	return mf.data
}

// MemoryBlobStore is a map-backed key-value persistence store.
type MemoryBlobStore struct {
	blobs map[string][]byte
}

// NewMemoryBlobStore returns an empty store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs: make(map[string][]byte),
	}
}

// GetBlob returns a copy of the stored value, or ErrBlobNotFound.
func (mbs *MemoryBlobStore) GetBlob(key string) (data []byte, err error) {
	stored, found := mbs.blobs[key]
	if !found {
		return nil, ErrBlobNotFound
	}

	data = make([]byte, len(stored))
	copy(data, stored)

	return data, nil
}

// SetBlob stores a copy of the value.
func (mbs *MemoryBlobStore) SetBlob(key string, data []byte) (err error) {
	stored := make([]byte, len(data))
	copy(stored, data)

	mbs.blobs[key] = stored

	return nil
}

// MemoryMeasurementSource serves measurement data from a byte slice. Reads
// past the end of the slice yield zeros, mirroring an erased flash
// partition.
type MemoryMeasurementSource struct {
	data []byte
}

// NewMemoryMeasurementSource wraps the given data.
func NewMemoryMeasurementSource(data []byte) *MemoryMeasurementSource {
	return &MemoryMeasurementSource{
		data: data,
	}
}

// ReadAt fills data from the given offset.
func (mms *MemoryMeasurementSource) ReadAt(offset uint32, data []byte) (err error) {
	for i := range data {
		data[i] = 0
	}

	if int(offset) < len(mms.data) {
		copy(data, mms.data[offset:])
	}

	return nil
}

// RestartFunc adapts a plain function to the Restarter interface.
type RestartFunc func()

// Restart invokes the function.
func (rf RestartFunc) Restart() {
	rf()
}
