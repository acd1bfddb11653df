package encoder

import "fmt"

// aksim2Marker is the leading marker byte every AkSIM-2 frame starts with.
const aksim2Marker = 'd'

// AkSIM2Frame is one decoded AkSIM-2 UART frame: 24-bit position plus
// the err/warn status bits and a 16-bit status word.
type AkSIM2Frame struct {
	Position uint32 // 24-bit
	Err      bool
	Warn     bool
	Status   uint16
}

// decodeAkSIM2 parses one frame of the form
// [marker][pos0][pos1][pos2][flags][status0][status1], validating the
// leading marker byte. frame must be exactly 7 bytes.
func decodeAkSIM2(frame []byte) (AkSIM2Frame, error) {
	if len(frame) != 7 {
		return AkSIM2Frame{}, fmt.Errorf("aksim2: frame must be 7 bytes, got %d", len(frame))
	}
	if frame[0] != aksim2Marker {
		return AkSIM2Frame{}, fmt.Errorf("aksim2: bad marker byte 0x%02x", frame[0])
	}

	pos := uint32(frame[1]) | uint32(frame[2])<<8 | uint32(frame[3])<<16
	flags := frame[4]

	return AkSIM2Frame{
		Position: pos,
		Err:      flags&0x01 != 0,
		Warn:     flags&0x02 != 0,
		Status:   uint16(frame[5]) | uint16(frame[6])<<8,
	}, nil
}

// findAkSIM2Marker scans up to maxResync bytes for the marker byte,
// returning the offset it was found at, or -1. This backs the "drop up
// to 3 resync bytes then retry" edge case.
func findAkSIM2Marker(buf []byte, maxResync int) int {
	limit := maxResync
	if limit > len(buf) {
		limit = len(buf)
	}
	for i := 0; i < limit; i++ {
		if buf[i] == aksim2Marker {
			return i
		}
	}
	return -1
}
