package ghostfat

import (
	"time"
)

const hexDigits = "0123456789ABCDEF"

// paddedName returns name space-padded (never NUL-padded) to the given
// width, as FAT name fields require. Longer names are truncated.
func paddedName(name string, width int) []byte {
	padded := make([]byte, width)
	for i := range padded {
		padded[i] = ' '
	}

	copy(padded, name)

	return padded
}

// hexUint32 renders value as eight uppercase hex characters, most
// significant nibble first.
func hexUint32(value uint32) string {
	buffer := make([]byte, 8)
	for i := range buffer {
		buffer[i] = hexDigits[(value>>(28-uint(i)*4))&0xf]
	}

	return string(buffer)
}

// hexBytes renders the given bytes as uppercase hex pairs.
func hexBytes(value []byte) string {
	buffer := make([]byte, len(value)*2)
	for i, b := range value {
		buffer[i*2] = hexDigits[b>>4]
		buffer[i*2+1] = hexDigits[b&0xf]
	}

	return string(buffer)
}

// dosDate encodes t as a FAT date stamp: years since 1980 in the high seven
// bits, then month and day-of-month.
func dosDate(t time.Time) uint16 {
	return uint16(t.Year()-1980)<<9 |
		uint16(t.Month())<<5 |
		uint16(t.Day())
}

// dosTime encodes t as a FAT time stamp with two-second granularity.
func dosTime(t time.Time) uint16 {
	return uint16(t.Hour())<<11 |
		uint16(t.Minute())<<5 |
		uint16(t.Second()/2)
}

// dosTimeFine is the sub-two-second remainder, in hundredths.
func dosTimeFine(t time.Time) uint8 {
	return uint8(t.Second() % 2 * 100)
}
