package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/enerty-dev/go-ghostfat"
)

type rootParameters struct {
	FlashSize string `short:"s" long:"flash-size" description:"Size of the simulated flash region (e.g. 256KiB)" default:"256KiB"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	flashSize, err := humanize.ParseBytes(rootArguments.FlashSize)
	log.PanicIf(err)

	cfg := ghostfat.DefaultConfig()

	board := ghostfat.Board{
		Flash: ghostfat.NewMemoryFlash(cfg.FlashAddrZero, uint32(flashSize)),
		Blobs: ghostfat.NewMemoryBlobStore(),
	}

	v, err := ghostfat.NewVolume(cfg, board)
	log.PanicIf(err)

	v.BootSector().Dump()

	geo := v.Geometry()

	fmt.Printf("Geometry\n")
	fmt.Printf("========\n")
	fmt.Printf("\n")

	fmt.Printf("SectorsPerFat: (%d)\n", geo.SectorsPerFat)
	fmt.Printf("RootDirSectors: (%d)\n", geo.RootDirSectors)
	fmt.Printf("ClusterCount: (0x%04x)\n", geo.ClusterCount)
	fmt.Printf("Fat0StartSector: (%d)\n", geo.Fat0StartSector)
	fmt.Printf("Fat1StartSector: (%d)\n", geo.Fat1StartSector)
	fmt.Printf("RootDirStartSector: (%d)\n", geo.RootDirStartSector)
	fmt.Printf("DataStartSector: (%d)\n", geo.DataStartSector)
	fmt.Printf("\n")

	fmt.Printf("Files\n")
	fmt.Printf("=====\n")
	fmt.Printf("\n")

	for _, fc := range v.Files() {
		fmt.Printf("[%s] %15s bytes\n", fc.Name, humanize.Comma(int64(fc.Size)))
	}
}
