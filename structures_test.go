package ghostfat

import (
	"bytes"
	"testing"
)

func TestBootSector_Pack(t *testing.T) {
	cfg := DefaultConfig()
	geo := NewGeometry(cfg)

	bs := newBootSector(cfg, geo)

	data, err := bs.Pack()
	if err != nil {
		panic(err)
	}

	if len(data) != bootSectorHeadSize {
		t.Fatalf("packed boot-sector size not correct: (%d)", len(data))
	}

	if !bytes.Equal(data[:3], []byte{0xeb, 0x3c, 0x90}) {
		t.Fatalf("jump instruction not correct: %x", data[:3])
	}

	// Sector size at offset 11, little-endian.
	if data[11] != 0x00 || data[12] != 0x02 {
		t.Fatalf("sector-size field not correct: %x %x", data[11], data[12])
	}

	if data[21] != mediaDescriptor {
		t.Fatalf("media descriptor not correct: (0x%02x)", data[21])
	}

	if data[38] != 0x29 {
		t.Fatalf("extended boot signature not correct: (0x%02x)", data[38])
	}

	if !bytes.Equal(data[43:54], []byte("ENERTYMBOOT")) {
		t.Fatalf("volume label not correct: [%s]", string(data[43:54]))
	}

	if !bytes.Equal(data[54:62], []byte("FAT16   ")) {
		t.Fatalf("filesystem identifier not correct: [%s]", string(data[54:62]))
	}
}

func TestBootSector_TotalSectorsSplit(t *testing.T) {
	cfg := DefaultConfig()
	geo := NewGeometry(cfg)

	// The default volume exceeds 0xFFFF sectors, so the 32-bit field must
	// carry the count and the 16-bit one must be zero.
	bs := newBootSector(cfg, geo)

	if bs.TotalSectors16 != 0 {
		t.Fatalf("16-bit total-sectors should be zero: (%d)", bs.TotalSectors16)
	}

	if bs.TotalSectors32 != cfg.TotalSectors {
		t.Fatalf("32-bit total-sectors not correct: (%d)", bs.TotalSectors32)
	}
}

func TestUF2Block_FirmwareValidation(t *testing.T) {
	bl := UF2Block{
		MagicStart0: uf2MagicStart0,
		MagicStart1: uf2MagicStart1,
		MagicEnd:    uf2MagicEnd,
		Flags:       uf2FlagFamilyIDPresent,
	}

	if !bl.IsFirmwareBlock() {
		t.Fatalf("valid firmware block not recognized")
	}

	noFamily := bl
	noFamily.Flags = 0

	if noFamily.IsFirmwareBlock() {
		t.Fatalf("block without family flag accepted")
	}

	noFlash := bl
	noFlash.Flags |= uf2FlagNoFlash

	if noFlash.IsFirmwareBlock() {
		t.Fatalf("no-flash block accepted")
	}

	badMagic := bl
	badMagic.MagicEnd = 0

	if badMagic.IsFirmwareBlock() {
		t.Fatalf("block with bad end magic accepted")
	}
}

func TestUF2Block_PackUnpack(t *testing.T) {
	bl := UF2Block{
		MagicStart0: uf2MagicStart0,
		MagicStart1: uf2MagicStart1,
		MagicEnd:    uf2MagicEnd,
		Flags:       uf2FlagFamilyIDPresent,
		TargetAddr:  0x1000,
		PayloadSize: FirmwareBytesPerSector,
		BlockNo:     7,
		NumBlocks:   10,
		FamilyID:    0xbfdd4eee,
	}

	copy(bl.Data[:], "firmware payload")

	data, err := bl.Pack()
	if err != nil {
		panic(err)
	}

	if len(data) != SectorSize {
		t.Fatalf("packed UF2 block size not correct: (%d)", len(data))
	}

	recovered, err := UnpackUF2Block(data)
	if err != nil {
		panic(err)
	}

	if recovered != bl {
		t.Fatalf("UF2 block did not survive the wire: %s != %s", recovered, bl)
	}
}

func TestControlBlock_PackUnpack(t *testing.T) {
	serialNumber := [SerialNumberLength]byte{'E', 0xab, 0xcd, 0x01, 0x02, 0x03}

	cb := NewControlBlock(serialNumber)

	data, err := cb.Pack()
	if err != nil {
		panic(err)
	}

	if len(data) != SectorSize {
		t.Fatalf("packed control block size not correct: (%d)", len(data))
	}

	recovered, err := UnpackControlBlock(data)
	if err != nil {
		panic(err)
	}

	if !recovered.IsControlBlock() {
		t.Fatalf("control block not recognized after unpack")
	}

	if recovered.SerialNumber != serialNumber {
		t.Fatalf("serial number not correct: %x", recovered.SerialNumber)
	}

	// A firmware block must never validate as a control block.
	firmware := UF2Block{
		MagicStart0: uf2MagicStart0,
		MagicStart1: uf2MagicStart1,
		MagicEnd:    uf2MagicEnd,
		Flags:       uf2FlagFamilyIDPresent,
	}

	firmwareData, err := firmware.Pack()
	if err != nil {
		panic(err)
	}

	asControl, err := UnpackControlBlock(firmwareData)
	if err != nil {
		panic(err)
	}

	if asControl.IsControlBlock() {
		t.Fatalf("firmware block validated as control block")
	}
}

func TestDirEntry_Pack(t *testing.T) {
	de := DirEntry{
		Attrs:        attrVolumeLabel,
		StartCluster: 2,
		Size:         1234,
	}

	copy(de.Name[:], paddedName("INFO_UF2TXT", 11))

	data, err := de.Pack()
	if err != nil {
		panic(err)
	}

	if len(data) != dirEntrySize {
		t.Fatalf("packed directory-entry size not correct: (%d)", len(data))
	}

	if string(data[:11]) != "INFO_UF2TXT" {
		t.Fatalf("name not correct: [%s]", string(data[:11]))
	}

	if data[11] != attrVolumeLabel {
		t.Fatalf("attributes not correct: (0x%02x)", data[11])
	}

	if got := defaultEncoding.Uint32(data[28:]); got != 1234 {
		t.Fatalf("size field not correct: (%d)", got)
	}
}
