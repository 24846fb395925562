// This file interprets incoming sector writes: UF2 firmware blocks are
// flashed and tracked to completion, control blocks carry a new serial
// number, and everything else is rejected without side effects.

package ghostfat

import (
	"fmt"

	"github.com/dsoprea/go-logging"
)

// WriteOutcome is the result of one WriteBlock call. The three values map
// onto the transport contract (-1 / 0 / 512 processed bytes).
type WriteOutcome int

const (
	// WriteRejected : the block validated as neither firmware nor control
	// data, carried the wrong family, or a collaborator call failed.
	WriteRejected WriteOutcome = iota

	// WriteBusy : the block could not be processed right now; the transport
	// must resubmit the identical request later. The state machine is safe
	// to re-enter with the same input.
	WriteBusy

	// WriteAccepted : the full sector was durably accepted.
	WriteAccepted
)

// String returns a description of the outcome.
func (wo WriteOutcome) String() string {
	switch wo {
	case WriteRejected:
		return "REJECTED"
	case WriteBusy:
		return "BUSY"
	case WriteAccepted:
		return "ACCEPTED"
	}

	return fmt.Sprintf("WriteOutcome(%d)", int(wo))
}

// ProcessedBytes maps the outcome onto the byte count the block-storage
// transport reports upward.
func (wo WriteOutcome) ProcessedBytes() int {
	switch wo {
	case WriteAccepted:
		return SectorSize
	case WriteBusy:
		return 0
	}

	return -1
}

const (
	// MaxWriteBlocks is the largest firmware image the completion tracker
	// supports: 8192 blocks of 256 payload bytes, or 2MiB.
	MaxWriteBlocks = 8192

	// unknownBlockCount disables the automatic flush-on-completion when the
	// declared totals were inconsistent or oversized. Not an error; the
	// transport can still flush by other means.
	unknownBlockCount = 0xffffffff
)

// WriteState tracks one write session. It is owned by the caller: create
// one per session and Reset it at session boundaries (new write sequence or
// device reset). WriteBlock never resets it.
type WriteState struct {
	numBlocks   uint32
	numWritten  uint32
	writtenMask [MaxWriteBlocks/8 + 1]byte
}

// Reset returns the state to "no blocks seen, total unknown".
func (ws *WriteState) Reset() {
	*ws = WriteState{}
}

// BlocksWritten is the count of distinct accepted block indices.
func (ws *WriteState) BlocksWritten() uint32 {
	return ws.numWritten
}

// ExpectedBlocks returns the adopted total block count and whether one is
// currently known.
func (ws *WriteState) ExpectedBlocks() (count uint32, known bool) {
	if ws.numBlocks == 0 || ws.numBlocks == unknownBlockCount {
		return 0, false
	}

	return ws.numBlocks, true
}

// markWritten records the block index and reports whether it was new. A
// resent index is a no-op: transports legitimately retry blocks.
func (ws *WriteState) markWritten(blockNo uint32) (isNew bool) {
	mask := byte(1 << (blockNo % 8))
	pos := blockNo / 8

	if ws.writtenMask[pos]&mask != 0 {
		return false
	}

	ws.writtenMask[pos] |= mask
	ws.numWritten++

	return true
}

// adoptBlockCount reconciles a block's declared total with the session
// state. A total restated differently mid-session, or one beyond
// MaxWriteBlocks, poisons the total to unknown instead of failing the
// write.
func (ws *WriteState) adoptBlockCount(numBlocks uint32) {
	if numBlocks == 0 || ws.numBlocks == numBlocks {
		return
	}

	if numBlocks >= MaxWriteBlocks || ws.numBlocks != 0 {
		ws.numBlocks = unknownBlockCount
		return
	}

	ws.numBlocks = numBlocks
}

// WriteBlock interprets one incoming 512-byte sector write. The sector
// number is irrelevant: hosts rewrite FAT and directory sectors freely, and
// only the block content identifies firmware. A non-nil error always
// accompanies a WriteRejected outcome caused by a collaborator failure;
// protocol rejections return (WriteRejected, nil).
func (v *Volume) WriteBlock(blockNo uint32, data []byte, state *WriteState) (outcome WriteOutcome, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
			outcome = WriteRejected
		}
	}()

	bl, err := UnpackUF2Block(data)
	log.PanicIf(err)

	if !bl.IsFirmwareBlock() {
		cb, err := UnpackControlBlock(data)
		log.PanicIf(err)

		if cb.IsControlBlock() {
			return v.handleControlBlock(cb)
		}

		return WriteRejected, nil
	}

	if bl.FamilyID != v.cfg.FamilyID {
		// Wrong target; nothing was flashed.
		return WriteRejected, nil
	}

	if bl.PayloadSize > uf2PayloadCapacity {
		return WriteRejected, nil
	}

	err = v.board.Flash.WriteAt(bl.TargetAddr, bl.Data[:bl.PayloadSize])
	log.PanicIf(err)

	if bl.NumBlocks != 0 {
		state.adoptBlockCount(bl.NumBlocks)

		if bl.BlockNo < MaxWriteBlocks {
			state.markWritten(bl.BlockNo)

			if expected, known := state.ExpectedBlocks(); known && state.numWritten >= expected {
				err := v.board.Flash.Flush()
				log.PanicIf(err)
			}
		}
	}

	return WriteAccepted, nil
}

// handleControlBlock persists the carried serial number and then triggers a
// device reset so it takes effect. The write session state is untouched.
func (v *Volume) handleControlBlock(cb ControlBlock) (outcome WriteOutcome, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
			outcome = WriteRejected
		}
	}()

	err = v.board.Blobs.SetBlob(BlobKeySerialNumber, cb.SerialNumber[:])
	log.PanicIf(err)

	if v.board.Restart != nil {
		v.board.Restart.Restart()
	}

	return WriteAccepted, nil
}
