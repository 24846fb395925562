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
	Uf2Filepath    string `short:"f" long:"uf2-filepath" description:"File-path of the UF2 file to apply" required:"true"`
	OutputFilepath string `short:"o" long:"output-filepath" description:"File-path to write the resulting flash contents to"`
	FlashSize      string `short:"s" long:"flash-size" description:"Size of the simulated flash region (e.g. 256KiB)" default:"256KiB"`
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

	raw, err := ioutil.ReadFile(rootArguments.Uf2Filepath)
	log.PanicIf(err)

	if len(raw)%ghostfat.SectorSize != 0 {
		fmt.Printf("UF2 file is not a whole number of 512-byte blocks.\n")
		os.Exit(2)
	}

	flashSize, err := humanize.ParseBytes(rootArguments.FlashSize)
	log.PanicIf(err)

	cfg := ghostfat.DefaultConfig()

	flash := ghostfat.NewMemoryFlash(cfg.FlashAddrZero, uint32(flashSize))

	board := ghostfat.Board{
		Flash: flash,
		Blobs: ghostfat.NewMemoryBlobStore(),
	}

	v, err := ghostfat.NewVolume(cfg, board)
	log.PanicIf(err)

	ws := new(ghostfat.WriteState)

	accepted := 0
	rejected := 0

	for offset := 0; offset < len(raw); offset += ghostfat.SectorSize {
		outcome, err := v.WriteBlock(uint32(offset/ghostfat.SectorSize), raw[offset:offset+ghostfat.SectorSize], ws)
		log.PanicIf(err)

		if outcome == ghostfat.WriteAccepted {
			accepted++
		} else {
			rejected++
		}
	}

	fmt.Printf("(%d) blocks accepted, (%d) rejected.\n", accepted, rejected)

	if expected, known := ws.ExpectedBlocks(); known {
		fmt.Printf("(%d) of (%d) expected blocks written.\n", ws.BlocksWritten(), expected)
	} else {
		fmt.Printf("(%d) blocks written; total not declared.\n", ws.BlocksWritten())
	}

	fmt.Printf("Flashed payload: (%s) bytes.\n", humanize.Comma(int64(ws.BlocksWritten())*ghostfat.FirmwareBytesPerSector))

	if rootArguments.OutputFilepath != "" {
		err := ioutil.WriteFile(rootArguments.OutputFilepath, flash.Bytes(), 0644)
		log.PanicIf(err)
	}
}
