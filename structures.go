// This file manages the low-level, packed storage and wire structures: the
// FAT16 boot sector, directory entries, and the 512-byte UF2/control blocks
// shared with the transport. All of them are encoded with explicit
// little-endian field order; nothing is overlaid on raw memory.

package ghostfat

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

var defaultEncoding = binary.LittleEndian

const (
	bootSectorHeadSize = 62

	// UF2 wire constants, per the published UF2 family specification.
	uf2MagicStart0 = 0x0a324655
	uf2MagicStart1 = 0x9e5d5157
	uf2MagicEnd    = 0x0ab16f30

	uf2FlagNoFlash         = 0x00000001
	uf2FlagFamilyIDPresent = 0x00002000

	uf2PayloadCapacity = 476

	// FirmwareBytesPerSector is the UF2 payload size used when packaging
	// firmware: each synthesized 512-byte sector carries 256 payload bytes.
	FirmwareBytesPerSector = 256

	// Control-block magic triple. The deployed firmware's header for these
	// is not public; the values are fixed project constants.
	controlMagicStart0 = 0x0a4e5253
	controlMagicStart1 = 0x9d83a2b7
	controlMagicEnd    = 0x0ab75c44

	// SerialNumberLength is the size of the persisted serial-number blob.
	SerialNumberLength = 6
)

// BootSector is the packed head of sector 0. The boot-code padding and the
// 0x55AA signature are appended at synthesis time, so only the meaningful 62
// bytes are modeled.
type BootSector struct {
	JumpInstruction      [3]byte
	OEMInfo              [8]byte
	SectorSize           uint16
	SectorsPerCluster    uint8
	ReservedSectors      uint16
	FatCopies            uint8
	RootDirectoryEntries uint16
	TotalSectors16       uint16
	MediaDescriptor      uint8
	SectorsPerFat        uint16
	SectorsPerTrack      uint16
	Heads                uint16
	HiddenSectors        uint32
	TotalSectors32       uint32
	PhysicalDriveNum     uint8
	Reserved             uint8
	ExtendedBootSig      uint8
	VolumeSerialNumber   uint32
	VolumeLabel          [11]byte
	FilesystemIdentifier [8]byte
}

func newBootSector(cfg Config, geo Geometry) BootSector {
	bs := BootSector{
		JumpInstruction:      [3]byte{0xeb, 0x3c, 0x90},
		SectorSize:           SectorSize,
		SectorsPerCluster:    geo.SectorsPerCluster,
		ReservedSectors:      geo.ReservedSectors,
		FatCopies:            fatCopies,
		RootDirectoryEntries: geo.RootDirEntries,
		MediaDescriptor:      mediaDescriptor,
		SectorsPerFat:        uint16(geo.SectorsPerFat),
		SectorsPerTrack:      1,
		Heads:                1,

		// 0x80 matches the hard-disk media descriptor.
		PhysicalDriveNum: 0x80,

		ExtendedBootSig:    0x29,
		VolumeSerialNumber: cfg.VolumeSerialNumber,
	}

	if geo.TotalSectors > 0xffff {
		bs.TotalSectors32 = geo.TotalSectors
	} else {
		bs.TotalSectors16 = uint16(geo.TotalSectors)
	}

	copy(bs.OEMInfo[:], paddedName(cfg.OEMInfo, 8))
	copy(bs.VolumeLabel[:], paddedName(cfg.VolumeLabel, 11))
	copy(bs.FilesystemIdentifier[:], paddedName("FAT16", 8))

	return bs
}

// Pack encodes the boot-sector head as its 62 on-disk bytes.
func (bs BootSector) Pack() (data []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	data, err = restruct.Pack(defaultEncoding, &bs)
	log.PanicIf(err)

	return data, nil
}

// String returns a description of the boot sector.
func (bs BootSector) String() string {
	return fmt.Sprintf("BootSector<LABEL=[%s] SN=(0x%08x) CLUSTER-SECTORS=(%d)>",
		string(bs.VolumeLabel[:]), bs.VolumeSerialNumber, bs.SectorsPerCluster)
}

// Dump prints the boot-sector parameters.
func (bs BootSector) Dump() {
	fmt.Printf("Boot Sector\n")
	fmt.Printf("===========\n")
	fmt.Printf("\n")

	fmt.Printf("OEMInfo: [%s]\n", string(bs.OEMInfo[:]))
	fmt.Printf("SectorSize: (%d)\n", bs.SectorSize)
	fmt.Printf("SectorsPerCluster: (%d)\n", bs.SectorsPerCluster)
	fmt.Printf("ReservedSectors: (%d)\n", bs.ReservedSectors)
	fmt.Printf("FatCopies: (%d)\n", bs.FatCopies)
	fmt.Printf("RootDirectoryEntries: (%d)\n", bs.RootDirectoryEntries)
	fmt.Printf("TotalSectors16: (%d)\n", bs.TotalSectors16)
	fmt.Printf("TotalSectors32: (%d)\n", bs.TotalSectors32)
	fmt.Printf("MediaDescriptor: (0x%02x)\n", bs.MediaDescriptor)
	fmt.Printf("SectorsPerFat: (%d)\n", bs.SectorsPerFat)
	fmt.Printf("VolumeSerialNumber: (0x%08x)\n", bs.VolumeSerialNumber)
	fmt.Printf("VolumeLabel: [%s]\n", string(bs.VolumeLabel[:]))
	fmt.Printf("FilesystemIdentifier: [%s]\n", string(bs.FilesystemIdentifier[:]))
	fmt.Printf("\n")
}

// DirEntry is one packed 32-byte FAT directory entry. Name spans the full
// eleven 8.3 characters; there is no separate extension field because the
// synthesizer always space-pads names in place.
type DirEntry struct {
	Name             [11]byte
	Attrs            uint8
	Reserved         uint8
	CreateTimeFine   uint8
	CreateTime       uint16
	CreateDate       uint16
	LastAccessDate   uint16
	HighStartCluster uint16
	UpdateTime       uint16
	UpdateDate       uint16
	StartCluster     uint16
	Size             uint32
}

const attrVolumeLabel = 0x28

// Pack encodes the directory entry as its 32 on-disk bytes.
func (de DirEntry) Pack() (data []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	data, err = restruct.Pack(defaultEncoding, &de)
	log.PanicIf(err)

	return data, nil
}

// UF2Block is the 512-byte firmware-flashing wire record.
type UF2Block struct {
	MagicStart0 uint32
	MagicStart1 uint32
	Flags       uint32
	TargetAddr  uint32
	PayloadSize uint32
	BlockNo     uint32
	NumBlocks   uint32
	FamilyID    uint32
	Data        [uf2PayloadCapacity]byte
	MagicEnd    uint32
}

// IsFirmwareBlock reports whether the record is a flashable UF2 firmware
// block: all three magics present, a family ID carried, and the no-flash
// flag clear.
func (bl UF2Block) IsFirmwareBlock() bool {
	return bl.MagicStart0 == uf2MagicStart0 &&
		bl.MagicStart1 == uf2MagicStart1 &&
		bl.MagicEnd == uf2MagicEnd &&
		bl.Flags&uf2FlagFamilyIDPresent != 0 &&
		bl.Flags&uf2FlagNoFlash == 0
}

// Pack encodes the block as its 512 wire bytes.
func (bl UF2Block) Pack() (data []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	data, err = restruct.Pack(defaultEncoding, &bl)
	log.PanicIf(err)

	return data, nil
}

// UnpackUF2Block decodes a 512-byte transport block. Validity is checked
// separately via IsFirmwareBlock.
func UnpackUF2Block(data []byte) (bl UF2Block, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if len(data) != SectorSize {
		log.Panicf("UF2 block must be exactly one sector: (%d) bytes", len(data))
	}

	err = restruct.Unpack(data, defaultEncoding, &bl)
	log.PanicIf(err)

	return bl, nil
}

// String returns a description of the block.
func (bl UF2Block) String() string {
	return fmt.Sprintf("UF2Block<NO=(%d)/(%d) ADDR=(0x%08x) LEN=(%d) FAMILY=(0x%08x)>",
		bl.BlockNo, bl.NumBlocks, bl.TargetAddr, bl.PayloadSize, bl.FamilyID)
}

// ControlBlock shares the 512-byte transport slot with UF2Block but carries
// a small out-of-band control payload instead of firmware.
type ControlBlock struct {
	MagicStart0  uint32
	MagicStart1  uint32
	SerialNumber [SerialNumberLength]byte
	Reserved     [494]byte
	MagicEnd     uint32
}

// IsControlBlock reports whether the record carries the control magic
// triple.
func (cb ControlBlock) IsControlBlock() bool {
	return cb.MagicStart0 == controlMagicStart0 &&
		cb.MagicStart1 == controlMagicStart1 &&
		cb.MagicEnd == controlMagicEnd
}

// Pack encodes the block as its 512 wire bytes.
func (cb ControlBlock) Pack() (data []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	data, err = restruct.Pack(defaultEncoding, &cb)
	log.PanicIf(err)

	return data, nil
}

// NewControlBlock returns a control block carrying the given serial number.
func NewControlBlock(serialNumber [SerialNumberLength]byte) ControlBlock {
	return ControlBlock{
		MagicStart0:  controlMagicStart0,
		MagicStart1:  controlMagicStart1,
		SerialNumber: serialNumber,
		MagicEnd:     controlMagicEnd,
	}
}

// UnpackControlBlock decodes a 512-byte transport block as a control block.
func UnpackControlBlock(data []byte) (cb ControlBlock, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	if len(data) != SectorSize {
		log.Panicf("control block must be exactly one sector: (%d) bytes", len(data))
	}

	err = restruct.Unpack(data, defaultEncoding, &cb)
	log.PanicIf(err)

	return cb, nil
}

func init() {
	// The packed sizes are part of the on-disk/wire contract; a drift in
	// the struct definitions above must fail immediately.
	for _, fixture := range []struct {
		value interface{}
		size  int
	}{
		{&BootSector{}, bootSectorHeadSize},
		{&DirEntry{}, dirEntrySize},
		{&UF2Block{}, SectorSize},
		{&ControlBlock{}, SectorSize},
	} {
		size, err := restruct.SizeOf(fixture.value)
		log.PanicIf(err)

		if size != fixture.size {
			log.Panicf("packed size of [%s] not correct: (%d) != (%d)",
				reflect.TypeOf(fixture.value).Elem().Name(), size, fixture.size)
		}
	}
}
