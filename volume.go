// This file assembles the volume: it queries the external collaborators
// once, finalizes the file sizes that depend on them, allocates clusters,
// and then freezes. Everything after construction is read-only except the
// caller-owned write-session state.

package ghostfat

import (
	"fmt"

	"github.com/dsoprea/go-logging"
)

// Volume is a synthesized FAT16 volume. Construct with NewVolume; all
// methods assume single-call-at-a-time use (a multi-threaded transport must
// serialize externally).
type Volume struct {
	cfg   Config
	geo   Geometry
	board Board

	bootSector BootSector
	files      []FileContent

	flashSize       uint32
	measurementSize uint32
	serialNumber    [SerialNumberLength]byte
}

// NewVolume derives the geometry, finalizes the file table against the
// board collaborators, and allocates clusters. Configuration-invariant
// violations panic out of NewGeometry and checkFileTable; collaborator
// failures come back as wrapped errors.
func NewVolume(cfg Config, board Board) (v *Volume, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if board.Flash == nil {
		log.Panicf("a flash device is required")
	} else if board.Blobs == nil {
		log.Panicf("a blob store is required")
	}

	geo := NewGeometry(cfg)

	files := newFileTable(cfg)
	checkFileTable(files, geo)

	v = &Volume{
		cfg:   cfg,
		geo:   geo,
		board: board,

		bootSector: newBootSector(cfg, geo),
		files:      files,
	}

	err = v.finalizeSizes()
	log.PanicIf(err)

	allocateClusters(v.files, v.geo)

	return v, nil
}

func (v *Volume) fidFirmware() int {
	return len(v.files) - 1
}

func (v *Volume) fidMeasurement() int {
	return len(v.files) - 2
}

// finalizeSizes queries the collaborators for everything the allocator
// needs: the flash capacity (firmware-image size), the persisted
// measurement-data size, and the serial number embedded into the info file.
// It must complete before allocateClusters runs.
func (v *Volume) finalizeSizes() (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	flashSize, err := v.board.Flash.Capacity()
	log.PanicIf(err)

	v.flashSize = flashSize

	// Firmware is packaged as one sector per FirmwareBytesPerSector payload
	// bytes, so the image on the volume is twice the flash region size.
	v.files[v.fidFirmware()].Size = flashSize / FirmwareBytesPerSector * SectorSize

	v.serialNumber = readSerialNumber(v.board.Blobs)

	v.measurementSize = readMeasurementSize(v.board.Blobs)
	v.files[v.fidMeasurement()].Size = v.measurementSize / FirmwareBytesPerSector * SectorSize

	info := v.renderInfoText()
	v.files[fidInfo].Content = info
	v.files[fidInfo].Size = uint32(len(info))

	return nil
}

// Serial-number fallback patterns. Each recoverable failure class gets a
// distinct value so a technician can tell them apart on the volume.
var (
	serialFallbackEmpty     = [SerialNumberLength]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0x00}
	serialFallbackAbsent    = [SerialNumberLength]byte{0x10, 0x10, 0x10, 0x10, 0x10, 0x00}
	serialFallbackWrongSize = [SerialNumberLength]byte{0x10, 0x11, 0x10, 0x11, 0x10, 0x00}
	serialFallbackError     = [SerialNumberLength]byte{0x11, 0x00, 0x11, 0x00, 0x11, 0x00}
)

// readSerialNumber never fails: a bad or missing stored value substitutes
// one of the documented fallback patterns.
func readSerialNumber(blobs BlobStore) [SerialNumberLength]byte {
	data, err := blobs.GetBlob(BlobKeySerialNumber)
	if err == ErrBlobNotFound {
		return serialFallbackAbsent
	} else if err != nil {
		return serialFallbackError
	}

	if len(data) == 0 {
		return serialFallbackEmpty
	} else if len(data) != SerialNumberLength {
		return serialFallbackWrongSize
	}

	var serialNumber [SerialNumberLength]byte
	copy(serialNumber[:], data)

	return serialNumber
}

// defaultMeasurementDataSize is substituted whenever the persisted size is
// absent, malformed, or unreadable. Deliberate policy: the measurement file
// then still appears with a small, harmless size.
const defaultMeasurementDataSize = 512

func readMeasurementSize(blobs BlobStore) uint32 {
	data, err := blobs.GetBlob(BlobKeyMeasurementSize)
	if err != nil {
		return defaultMeasurementDataSize
	}

	if len(data) != 4 {
		return defaultMeasurementDataSize
	}

	return defaultEncoding.Uint32(data)
}

// SerialText is the eleven-character human-readable serial number: the
// hardware-identifier character followed by the remaining five bytes in
// uppercase hex.
func (v *Volume) SerialText() string {
	return string(v.serialNumber[0]) + hexBytes(v.serialNumber[1:])
}

func (v *Volume) renderInfoText() []byte {
	text := fmt.Sprintf(
		"EnertyUF2 Bootloader %s\r\n"+
			"Model: %s\r\n"+
			"Board-ID: %s\r\n"+
			"Date: %s\r\n"+
			"Serial Number: %s\r\n"+
			"Flash Size: 0x%s bytes",
		v.cfg.BootloaderVersion,
		v.cfg.ProductName,
		v.cfg.BoardID,
		v.cfg.BuildTime.Format("Jan _2 2006"),
		v.SerialText(),
		hexUint32(v.flashSize))

	return []byte(text)
}

// Geometry returns the computed volume layout.
func (v *Volume) Geometry() Geometry {
	return v.geo
}

// BootSector returns the packed boot-sector head values.
func (v *Volume) BootSector() BootSector {
	return v.bootSector
}

// FlashSize is the byte size of the flashable region, as reported by the
// flash device at construction.
func (v *Volume) FlashSize() uint32 {
	return v.flashSize
}

// Files returns a copy of the file table in directory order.
func (v *Volume) Files() []FileContent {
	files := make([]FileContent, len(v.files))
	copy(files, v.files)

	return files
}
