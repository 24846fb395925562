// This package synthesizes a FAT16 volume on the fly ("GhostFAT"): every
// sector a host reads is generated from a small table of logical files, and
// incoming sector writes are interpreted as UF2 firmware blocks. No
// filesystem metadata is ever stored anywhere.

package ghostfat

import (
	"errors"
	"time"
)

const (
	// BlobKeySerialNumber is the persistence-store key holding the six-byte
	// device serial number.
	BlobKeySerialNumber = "serialnum"

	// BlobKeyMeasurementSize is the persistence-store key holding the
	// little-endian uint32 size of the measurement-data region. The spelling
	// is wire-compatible with the deployed firmware and must not be fixed.
	BlobKeyMeasurementSize = "measurment_data_size"
)

// ErrBlobNotFound is returned by BlobStore implementations when the requested
// key has never been written.
var ErrBlobNotFound = errors.New("blob not found")

// FlashDevice is the raw firmware-storage driver. The synthesizer treats all
// calls as synchronous and never retries them.
type FlashDevice interface {
	// Capacity returns the size in bytes of the flashable region.
	Capacity() (size uint32, err error)

	// ReadAt fills data from the given flash address.
	ReadAt(addr uint32, data []byte) (err error)

	// WriteAt programs data at the given flash address.
	WriteAt(addr uint32, data []byte) (err error)

	// Flush is the durability barrier issued once a firmware image is
	// completely written.
	Flush() (err error)
}

// MeasurementSource supplies the bytes of the externally-sourced
// measurement-data file.
type MeasurementSource interface {
	ReadAt(offset uint32, data []byte) (err error)
}

// BlobStore is the key-value persistence store (NVS on the original
// hardware). GetBlob returns ErrBlobNotFound for absent keys.
type BlobStore interface {
	GetBlob(key string) (data []byte, err error)
	SetBlob(key string, data []byte) (err error)
}

// Restarter triggers a device reset. It is invoked after a new serial number
// has been persisted, so that the device comes back up using it.
type Restarter interface {
	Restart()
}

// Board bundles the external collaborators a Volume talks to. Flash and
// Blobs are mandatory; Measurements and Restart may be nil, in which case
// the measurement file reads as zeros and no reset is triggered.
type Board struct {
	Flash        FlashDevice
	Measurements MeasurementSource
	Blobs        BlobStore
	Restart      Restarter
}

// Config holds the board-specific constants the volume is derived from.
// All geometry checks against it are fatal at construction time.
type Config struct {
	// SectorsPerCluster must be a power of two and keep the cluster at or
	// under 32KiB.
	SectorsPerCluster uint8

	// ReservedSectors precede the first FAT copy. Always 1 on the hardware.
	ReservedSectors uint16

	// RootDirEntries is the root-directory capacity; it must fill whole
	// sectors (a multiple of 16).
	RootDirEntries uint16

	// TotalSectors is the advertised size of the virtual disk.
	TotalSectors uint32

	VolumeLabel        string
	OEMInfo            string
	VolumeSerialNumber uint32

	// FamilyID identifies the device target; UF2 blocks carrying any other
	// family are rejected.
	FamilyID uint32

	// FlashAppStart is the flash address the synthesized firmware image
	// starts at, FlashAddrZero the base of the addressable flash range.
	FlashAppStart uint32
	FlashAddrZero uint32

	// Identity strings embedded into INFO_UF2.TXT.
	BootloaderVersion string
	ProductName       string
	BoardID           string
	IndexURL          string

	// BuildTime is the compiled-in timestamp stamped onto every directory
	// entry.
	BuildTime time.Time
}

// DefaultConfig returns the Enerty Module M (ESP32-S2) parameters.
func DefaultConfig() Config {
	return Config{
		SectorsPerCluster:  1,
		ReservedSectors:    1,
		RootDirEntries:     64,
		TotalSectors:       0x10109,
		VolumeLabel:        "ENERTYMBOOT",
		OEMInfo:            "UF2 UF2 ",
		VolumeSerialNumber: 0x00420042,
		FamilyID:           0xbfdd4eee,
		FlashAppStart:      0x00000000,
		FlashAddrZero:      0x00000000,
		BootloaderVersion:  "0.20.1",
		ProductName:        "FTDI USB-RS485 Cable",
		BoardID:            "ESP32S2FN4R2-ModuleM-1-0-0",
		IndexURL:           "https://www.google.com/search?q=ENERTY+module+m",
		BuildTime:          time.Date(2024, 5, 17, 9, 41, 26, 0, time.UTC),
	}
}
