// This file derives the FAT16 disk geometry from the board configuration.
// Everything here is a pure function of Config; a configuration that cannot
// produce a valid FAT16 volume is a build defect, so violations panic rather
// than return errors.

package ghostfat

import (
	"github.com/dsoprea/go-logging"
)

const (
	// SectorSize is the only sector size GhostFAT supports.
	SectorSize = 512

	fatCopies           = 2
	fatEntrySize        = 2
	fatEntriesPerSector = SectorSize / fatEntrySize
	dirEntrySize        = 32
	dirEntriesPerSector = SectorSize / dirEntrySize

	mediaDescriptor = 0xf8
	endOfChain      = uint16(0xffff)

	// The nominal FAT16 cluster-count range is [0x0FF5, 0xFFF5). Many
	// deployed FAT readers have small off-by-one errors at the boundaries,
	// so the volume must stay at least 32 clusters inside them.
	minClusterCount = 0x1015
	maxClusterCount = 0xffd5
)

// Geometry is the computed FAT16 volume layout. It is immutable once
// derived; every synthesizer consults it for region boundaries.
type Geometry struct {
	SectorsPerCluster uint8
	ReservedSectors   uint16
	RootDirEntries    uint16
	TotalSectors      uint32

	// Derived values.
	SectorsPerFat  uint32
	RootDirSectors uint32
	ClusterCount   uint32

	// Region start offsets, in sectors from the beginning of the volume.
	Fat0StartSector    uint32
	Fat1StartSector    uint32
	RootDirStartSector uint32
	DataStartSector    uint32
}

func divCeil(v, d uint32) uint32 {
	return (v + d - 1) / d
}

// NewGeometry derives the volume layout from cfg. Invariant violations are
// fatal: they identify an impossible board configuration, not a runtime
// condition.
func NewGeometry(cfg Config) Geometry {
	spc := uint32(cfg.SectorsPerCluster)

	if spc == 0 || spc&(spc-1) != 0 {
		log.Panicf("sectors-per-cluster must be a nonzero power of two: (%d)", spc)
	}

	if spc*SectorSize > 32*1024 {
		log.Panicf("cluster size exceeds 32KiB: (%d) sectors per cluster", spc)
	}

	if cfg.ReservedSectors == 0 {
		log.Panicf("at least one reserved sector is required")
	}

	if cfg.RootDirEntries == 0 || cfg.RootDirEntries%dirEntriesPerSector != 0 {
		log.Panicf("root-directory entries must fill whole sectors: (%d)", cfg.RootDirEntries)
	}

	// The FAT is sized for the rounded-up cluster count; FAT16 permits a
	// FAT larger than necessary.
	totalClustersRoundUp := divCeil(cfg.TotalSectors, spc)
	sectorsPerFat := divCeil(totalClustersRoundUp, fatEntriesPerSector)
	rootDirSectors := divCeil(uint32(cfg.RootDirEntries), dirEntriesPerSector)

	metaSectors := uint32(cfg.ReservedSectors) + fatCopies*sectorsPerFat + rootDirSectors
	if cfg.TotalSectors <= metaSectors {
		log.Panicf("volume too small: (%d) total sectors, (%d) consumed by metadata", cfg.TotalSectors, metaSectors)
	}

	dataSectors := cfg.TotalSectors - metaSectors
	clusterCount := dataSectors / spc

	if clusterCount < minClusterCount || clusterCount >= maxClusterCount {
		log.Panicf("cluster count (0x%04x) outside the compatible FAT16 range [0x%04x, 0x%04x)",
			clusterCount, minClusterCount, maxClusterCount)
	}

	fat0 := uint32(cfg.ReservedSectors)
	fat1 := fat0 + sectorsPerFat
	rootDir := fat1 + sectorsPerFat

	return Geometry{
		SectorsPerCluster: cfg.SectorsPerCluster,
		ReservedSectors:   cfg.ReservedSectors,
		RootDirEntries:    cfg.RootDirEntries,
		TotalSectors:      cfg.TotalSectors,

		SectorsPerFat:  sectorsPerFat,
		RootDirSectors: rootDirSectors,
		ClusterCount:   clusterCount,

		Fat0StartSector:    fat0,
		Fat1StartSector:    fat1,
		RootDirStartSector: rootDir,
		DataStartSector:    rootDir + rootDirSectors,
	}
}

// BytesPerCluster returns the allocation-unit size in bytes.
func (g Geometry) BytesPerCluster() uint32 {
	return uint32(g.SectorsPerCluster) * SectorSize
}
