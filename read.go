// This file synthesizes sectors on demand. ReadBlock is total: every sector
// in the volume produces a full 512 bytes, zero-filled wherever nothing is
// known, and identical bytes on every call for unchanged backing state.

package ghostfat

import (
	"github.com/dsoprea/go-logging"
)

// ReadBlock returns the 512 bytes of the given sector. The only error
// sources are the flash and measurement collaborators; every purely
// synthesized sector always succeeds.
func (v *Volume) ReadBlock(blockNo uint32) (data []byte, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	data = make([]byte, SectorSize)

	switch {
	case blockNo == 0:
		v.readBootSector(data)
	case blockNo >= v.geo.Fat0StartSector && blockNo < v.geo.RootDirStartSector:
		v.readFatSector(blockNo-v.geo.Fat0StartSector, data)
	case blockNo >= v.geo.RootDirStartSector && blockNo < v.geo.DataStartSector:
		v.readRootDirSector(blockNo-v.geo.RootDirStartSector, data)
	case blockNo >= v.geo.DataStartSector && blockNo < v.geo.TotalSectors:
		v.readDataSector(blockNo-v.geo.DataStartSector, data)
	}

	// Anything else (extra reserved sectors, out-of-contract sector
	// numbers) stays zero-filled.

	return data, nil
}

func (v *Volume) readBootSector(data []byte) {
	packed, err := v.bootSector.Pack()
	log.PanicIf(err)

	copy(data, packed)

	// The legacy signature sits at offsets 510/511 regardless of sector
	// size.
	data[510] = 0x55
	data[511] = 0xaa
}

// readFatSector generates one sector of either FAT copy (both are
// byte-identical). Because every file occupies a contiguous cluster run,
// the chain entry for an in-use cluster defaults to cluster+1, and only two
// corrections apply on top: the reserved clusters 0/1, and an end-of-chain
// marker at each file's last cluster. That keeps synthesis at
// O(entries-per-sector + files) with no stored chain.
func (v *Volume) readFatSector(relSector uint32, data []byte) {
	if relSector >= v.geo.SectorsPerFat {
		relSector -= v.geo.SectorsPerFat
	}

	sectorFirstCluster := relSector * fatEntriesPerSector
	firstUnused := firstUnusedCluster(v.files)

	for i := uint32(0); i < fatEntriesPerSector; i++ {
		cluster := sectorFirstCluster + i

		var entry uint16
		if cluster < firstUnused {
			entry = uint16(cluster + 1)
		}

		defaultEncoding.PutUint16(data[i*fatEntrySize:], entry)
	}

	if relSector == 0 {
		// Cluster 0 carries the media descriptor; cluster 1 is reserved.
		data[0] = mediaDescriptor
		data[1] = 0xff
		defaultEncoding.PutUint16(data[2:], endOfChain)
	}

	for _, fc := range v.files {
		lastCluster := uint32(fc.clusterEnd)
		if lastCluster < sectorFirstCluster {
			continue
		}

		if idx := lastCluster - sectorFirstCluster; idx < fatEntriesPerSector {
			defaultEncoding.PutUint16(data[idx*fatEntrySize:], endOfChain)
		}
	}
}

// readRootDirSector generates one root-directory sector. The first entry of
// sector 0 is always the volume label; file entries follow in table order,
// exactly one directory entry per file.
func (v *Volume) readRootDirSector(relSector uint32, data []byte) {
	slot := 0

	var fileIndex int

	if relSector == 0 {
		label := DirEntry{Attrs: attrVolumeLabel}
		copy(label.Name[:], paddedName(v.cfg.VolumeLabel, 11))

		v.writeDirEntry(data, slot, label)
		slot++

		fileIndex = 0
	} else {
		// -1 accounts for the volume label occupying a slot in sector 0.
		fileIndex = int(relSector)*dirEntriesPerSector - 1
	}

	createDate := dosDate(v.cfg.BuildTime)
	createTime := dosTime(v.cfg.BuildTime)

	for ; slot < dirEntriesPerSector && fileIndex < len(v.files); slot, fileIndex = slot+1, fileIndex+1 {
		fc := v.files[fileIndex]

		de := DirEntry{
			CreateTimeFine: dosTimeFine(v.cfg.BuildTime),
			CreateTime:     createTime,
			CreateDate:     createDate,
			LastAccessDate: createDate,
			UpdateTime:     createTime,
			UpdateDate:     createDate,
			StartCluster:   fc.clusterStart,
			Size:           fc.Size,
		}

		copy(de.Name[:], fc.Name)

		v.writeDirEntry(data, slot, de)
	}
}

func (v *Volume) writeDirEntry(data []byte, slot int, de DirEntry) {
	packed, err := de.Pack()
	log.PanicIf(err)

	copy(data[slot*dirEntrySize:], packed)
}

// readDataSector resolves the owning file for a data-region sector and
// dispatches on its backing kind.
func (v *Volume) readDataSector(relSector uint32, data []byte) {
	// Plus 2 for the first data cluster offset.
	cluster := 2 + relSector/uint32(v.geo.SectorsPerCluster)

	fid := locateFile(v.files, cluster)
	fc := v.files[fid]

	fileRelSector := relSector - uint32(fc.clusterStart-2)*uint32(v.geo.SectorsPerCluster)

	switch fid {
	case v.fidFirmware():
		v.readFirmwareSector(fileRelSector, data)
	case v.fidMeasurement():
		v.readMeasurementSector(fileRelSector, fc, data)
	default:
		readStaticSector(fileRelSector, fc, data)
	}
}

// readStaticSector copies one sector-sized window out of a static backing
// buffer, clipped to the file's remaining length. Padding sectors within
// the final cluster stay zero.
func readStaticSector(fileRelSector uint32, fc FileContent, data []byte) {
	offset := fileRelSector * SectorSize
	if offset >= fc.Size {
		return
	}

	count := fc.Size - offset
	if count > SectorSize {
		count = SectorSize
	}

	copy(data, fc.Content[offset:offset+count])
}

// readFirmwareSector emits one UF2 block of the live firmware image,
// reading the payload straight from flash. Sectors whose target address
// falls outside the flash range stay all-zero.
func (v *Volume) readFirmwareSector(fileRelSector uint32, data []byte) {
	addr := v.cfg.FlashAppStart + fileRelSector*FirmwareBytesPerSector
	if addr >= v.cfg.FlashAddrZero+v.flashSize {
		return
	}

	bl := UF2Block{
		MagicStart0: uf2MagicStart0,
		MagicStart1: uf2MagicStart1,
		MagicEnd:    uf2MagicEnd,
		Flags:       uf2FlagFamilyIDPresent,
		TargetAddr:  addr,
		PayloadSize: FirmwareBytesPerSector,
		BlockNo:     fileRelSector,
		NumBlocks:   v.flashSize / FirmwareBytesPerSector,
		FamilyID:    v.cfg.FamilyID,
	}

	err := v.board.Flash.ReadAt(addr, bl.Data[:FirmwareBytesPerSector])
	log.PanicIf(err)

	packed, err := bl.Pack()
	log.PanicIf(err)

	copy(data, packed)
}

// readMeasurementSector windows into the externally-sourced measurement
// data; same clipping rules as static content, but the bytes come from the
// measurement collaborator.
func (v *Volume) readMeasurementSector(fileRelSector uint32, fc FileContent, data []byte) {
	offset := fileRelSector * SectorSize
	if offset >= fc.Size {
		return
	}

	if v.board.Measurements == nil {
		return
	}

	count := fc.Size - offset
	if count > SectorSize {
		count = SectorSize
	}

	err := v.board.Measurements.ReadAt(offset, data[:count])
	log.PanicIf(err)
}
