// This file owns the logical file table: the fixed, ordered set of files the
// host sees in the root directory, and the assignment of contiguous cluster
// runs to each of them.

package ghostfat

import (
	"fmt"

	"github.com/dsoprea/go-logging"
)

// Fixed table positions. The firmware image must be the last entry and the
// measurement-data file the one before it.
const (
	fidInfo  = 0
	fidIndex = 1
)

const testCsvContent = "time,CT1,CT2,CT3\n" +
	"0,0,0,0\n" +
	"1,1,1,1\n" +
	"2,2,2,2\n" +
	"3,3,3,3\n" +
	"4,4,4,4\n" +
	"5,5,5,5\n" +
	"6,6,6,6\n" +
	"7,7,7,7\n" +
	"8,8,8,8\n" +
	"9,9,9,9\n"

// Clusters at or beyond this value can never belong to an allocated file;
// lookups for them fall through to the firmware-image entry.
const pastEndOfVolumeCluster = 0xfff0

// FileContent is one logical file: an 8.3 name, a size, and optionally a
// static backing buffer. Entries with a nil Content are synthesized at read
// time (the firmware image and the measurement-data file). The cluster range
// is assigned by allocateClusters.
type FileContent struct {
	// Name is the 8.3 name, exactly eleven space-padded characters.
	Name string

	// Content is the static backing buffer, or nil for synthesized entries.
	Content []byte

	// Size in bytes. For the two synthesized entries this is only known
	// after the external collaborators have been queried.
	Size uint32

	clusterStart uint16
	clusterEnd   uint16
}

// String returns a description of the entry.
func (fc FileContent) String() string {
	return fmt.Sprintf("FileContent<NAME=[%s] SIZE=(%d) CLUSTERS=(%d)-(%d)>",
		fc.Name, fc.Size, fc.clusterStart, fc.clusterEnd)
}

// newFileTable returns the table in its fixed order. The sizes of the info,
// measurement-data, and firmware entries are finalized during volume
// construction, before cluster allocation.
func newFileTable(cfg Config) []FileContent {
	indexContent := "<!doctype html>\n" +
		"<html>" +
		"<body>" +
		"<script>\n" +
		"location.replace(\"" + cfg.IndexURL + "\");\n" +
		"</script>" +
		"</body>" +
		"</html>\n"

	return []FileContent{
		{Name: "INFO_UF2TXT"},
		{Name: "INDEX   HTM", Content: []byte(indexContent), Size: uint32(len(indexContent))},
		{Name: "TEST    CSV", Content: []byte(testCsvContent), Size: uint32(len(testCsvContent))},
		{Name: "MEASDAT CSV"},
		{Name: "CURRENT UF2"},
	}
}

// checkFileTable enforces the table invariants. Violations are fatal: the
// table is fixed at build time, so a bad one is a programming error.
func checkFileTable(files []FileContent, geo Geometry) {
	if len(files) < 3 {
		log.Panicf("file table too small: (%d) entries", len(files))
	}

	// One root-directory entry per file plus the volume label.
	dirEntries := len(files) + 1

	if dirEntries >= int(geo.RootDirEntries) {
		log.Panicf("too many files for the root directory: (%d) entries, capacity (%d)",
			dirEntries, geo.RootDirEntries)
	}

	// All entries must also fit in the first root-directory sector; several
	// FAT readers in the field only scan that far for small volumes.
	if dirEntries >= dirEntriesPerSector {
		log.Panicf("too many files for one root-directory sector: (%d) entries", dirEntries)
	}

	if files[len(files)-1].Content != nil {
		log.Panicf("the last file entry is the synthesized firmware image and must have no static content")
	}

	for i, fc := range files {
		if len(fc.Name) != 11 {
			log.Panicf("file (%d) name not exactly eleven characters: [%s]", i, fc.Name)
		}
	}
}

// allocateClusters walks the table in order and assigns each entry a
// contiguous cluster run starting at cluster 2 (clusters 0 and 1 are
// reserved by FAT convention). A zero-size entry reserves no clusters and
// the next entry inherits its start. Deterministic and idempotent for the
// same sizes; it must be re-run whenever a size changes.
func allocateClusters(files []FileContent, geo Geometry) {
	start := uint16(2)

	for i := range files {
		files[i].clusterStart = start
		files[i].clusterEnd = start + uint16(divCeil(files[i].Size, geo.BytesPerCluster())) - 1

		start = files[i].clusterEnd + 1
	}
}

// locateFile returns the index of the file whose cluster run contains the
// given cluster. Clusters past the end of the volume, or past all allocated
// runs, resolve to the firmware-image entry: its reader bounds-checks
// against the real flash range and yields zeros, which is exactly right for
// padding and unused clusters.
func locateFile(files []FileContent, cluster uint32) int {
	fidFirmware := len(files) - 1

	if cluster >= pastEndOfVolumeCluster {
		return fidFirmware
	}

	for i, fc := range files {
		if uint32(fc.clusterStart) <= cluster && cluster <= uint32(fc.clusterEnd) {
			return i
		}
	}

	return fidFirmware
}

// firstUnusedCluster is the first cluster past the highest allocated run.
func firstUnusedCluster(files []FileContent) uint32 {
	return uint32(files[len(files)-1].clusterEnd) + 1
}
