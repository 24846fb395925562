package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/enerty-dev/go-ghostfat"
)

type rootParameters struct {
	FirmwareFilepath string `short:"f" long:"firmware-filepath" description:"File-path of a raw firmware image to seed the flash with"`
	OutputFilepath   string `short:"o" long:"output-filepath" description:"File-path to write the volume image to ('-' for STDOUT)" required:"true"`
	FlashSize        string `short:"s" long:"flash-size" description:"Size of the simulated flash region (e.g. 256KiB)" default:"256KiB"`
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

	flash := ghostfat.NewMemoryFlash(cfg.FlashAddrZero, uint32(flashSize))

	if rootArguments.FirmwareFilepath != "" {
		firmware, err := ioutil.ReadFile(rootArguments.FirmwareFilepath)
		log.PanicIf(err)

		err = flash.WriteAt(cfg.FlashAddrZero, firmware)
		log.PanicIf(err)
	}

	board := ghostfat.Board{
		Flash: flash,
		Blobs: ghostfat.NewMemoryBlobStore(),
	}

	v, err := ghostfat.NewVolume(cfg, board)
	log.PanicIf(err)

	var g *os.File

	if rootArguments.OutputFilepath == "-" {
		g = os.Stdout
	} else {
		var err error

		g, err = os.Create(rootArguments.OutputFilepath)
		log.PanicIf(err)

		defer func() {
			g.Close()
		}()
	}

	geo := v.Geometry()

	for blockNo := uint32(0); blockNo < geo.TotalSectors; blockNo++ {
		data, err := v.ReadBlock(blockNo)
		log.PanicIf(err)

		_, err = g.Write(data)
		log.PanicIf(err)
	}

	if rootArguments.OutputFilepath != "-" {
		fmt.Printf("(%s) bytes written.\n", humanize.Comma(int64(geo.TotalSectors)*ghostfat.SectorSize))
	}
}
