package ghostfat

const (
	testFlashBase = 0x00000000
	testFlashSize = 0x40000
)

type testBoard struct {
	flash        *MemoryFlash
	blobs        *MemoryBlobStore
	measurements *MemoryMeasurementSource
	restarts     int
}

func newTestBoard() *testBoard {
	return &testBoard{
		flash:        NewMemoryFlash(testFlashBase, testFlashSize),
		blobs:        NewMemoryBlobStore(),
		measurements: NewMemoryMeasurementSource([]byte("time,CT1\n0,42\n")),
	}
}

func (tb *testBoard) board() Board {
	return Board{
		Flash:        tb.flash,
		Measurements: tb.measurements,
		Blobs:        tb.blobs,
		Restart: RestartFunc(func() {
			tb.restarts++
		}),
	}
}

func newTestVolume() (*Volume, *testBoard) {
	tb := newTestBoard()

	v, err := NewVolume(DefaultConfig(), tb.board())
	if err != nil {
		panic(err)
	}

	return v, tb
}
