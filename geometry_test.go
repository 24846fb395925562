package ghostfat

import (
	"testing"
)

func TestNewGeometry(t *testing.T) {
	geo := NewGeometry(DefaultConfig())

	if geo.SectorsPerFat != 258 {
		t.Fatalf("sectors-per-FAT not correct: (%d)", geo.SectorsPerFat)
	}

	if geo.RootDirSectors != 4 {
		t.Fatalf("root-directory sector count not correct: (%d)", geo.RootDirSectors)
	}

	if geo.Fat0StartSector != 1 {
		t.Fatalf("FAT0 start not correct: (%d)", geo.Fat0StartSector)
	}

	if geo.Fat1StartSector != geo.Fat0StartSector+geo.SectorsPerFat {
		t.Fatalf("FAT1 start not correct: (%d)", geo.Fat1StartSector)
	}

	if geo.RootDirStartSector != geo.Fat1StartSector+geo.SectorsPerFat {
		t.Fatalf("root-directory start not correct: (%d)", geo.RootDirStartSector)
	}

	if geo.DataStartSector != geo.RootDirStartSector+geo.RootDirSectors {
		t.Fatalf("data-region start not correct: (%d)", geo.DataStartSector)
	}

	if geo.ClusterCount != 0xff00 {
		t.Fatalf("cluster count not correct: (0x%04x)", geo.ClusterCount)
	}
}

func TestNewGeometry_ClusterCountRange(t *testing.T) {
	for _, fixture := range []struct {
		sectorsPerCluster uint8
		totalSectors      uint32
	}{
		{1, 0x10109},
		{2, 131079},
		{4, 246247},
	} {
		cfg := DefaultConfig()
		cfg.SectorsPerCluster = fixture.sectorsPerCluster
		cfg.TotalSectors = fixture.totalSectors

		geo := NewGeometry(cfg)

		if geo.ClusterCount < minClusterCount || geo.ClusterCount >= maxClusterCount {
			t.Fatalf("cluster count (0x%04x) outside compatible range for (%d) sectors per cluster",
				geo.ClusterCount, fixture.sectorsPerCluster)
		}
	}
}

func expectGeometryPanic(t *testing.T, cfg Config, name string) {
	t.Helper()

	defer func() {
		if recover() == nil {
			t.Fatalf("[%s] configuration was accepted", name)
		}
	}()

	NewGeometry(cfg)
}

func TestNewGeometry_InvalidConfigurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SectorsPerCluster = 3
	expectGeometryPanic(t, cfg, "non-power-of-two sectors-per-cluster")

	cfg = DefaultConfig()
	cfg.SectorsPerCluster = 0
	expectGeometryPanic(t, cfg, "zero sectors-per-cluster")

	cfg = DefaultConfig()
	cfg.SectorsPerCluster = 128
	expectGeometryPanic(t, cfg, "cluster over 32KiB")

	cfg = DefaultConfig()
	cfg.RootDirEntries = 60
	expectGeometryPanic(t, cfg, "root entries not sector-aligned")

	cfg = DefaultConfig()
	cfg.ReservedSectors = 0
	expectGeometryPanic(t, cfg, "no reserved sector")

	// Too few clusters.
	cfg = DefaultConfig()
	cfg.TotalSectors = 0x2000
	expectGeometryPanic(t, cfg, "cluster count below minimum")

	// Too many clusters.
	cfg = DefaultConfig()
	cfg.TotalSectors = 0x10000 + 0xfff0
	expectGeometryPanic(t, cfg, "cluster count above maximum")
}

func TestGeometry_BytesPerCluster(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SectorsPerCluster = 4
	cfg.TotalSectors = 246247

	geo := NewGeometry(cfg)

	if geo.BytesPerCluster() != 2048 {
		t.Fatalf("bytes-per-cluster not correct: (%d)", geo.BytesPerCluster())
	}
}
