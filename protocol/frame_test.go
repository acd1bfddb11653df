package protocol

import (
	"bytes"
	"math"
	"testing"
)

func TestRoundUpDLC(t *testing.T) {
	testCases := []struct {
		n, want int
	}{
		{0, 0},
		{1, 1},
		{8, 8},
		{9, 12},
		{12, 12},
		{13, 16},
		{24, 24},
		{25, 32},
		{40, 48},
		{64, 64},
		{65, -1},
	}

	for _, tc := range testCases {
		if got := RoundUpDLC(tc.n); got != tc.want {
			t.Errorf("RoundUpDLC(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestEncodeDecodeFrameReadRequest(t *testing.T) {
	f := Frame{
		Source:      0x10,
		Destination: 0x01,
		Subframes: []Subframe{
			{Opcode: OpReadF32, Count: 1, StartRegister: 0x0020},
			{Opcode: OpReadInt16, Count: 2, StartRegister: 0x0030},
		},
	}

	payload, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if RoundUpDLC(len(payload)) != len(payload) {
		t.Fatalf("encoded payload length %d is not a valid DLC", len(payload))
	}

	decoded, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.Source != f.Source || decoded.Destination != f.Destination {
		t.Fatalf("source/destination mismatch: got %+v", decoded)
	}
	if len(decoded.Subframes) != 2 {
		t.Fatalf("expected 2 subframes, got %d", len(decoded.Subframes))
	}
	if decoded.Subframes[0].Opcode != OpReadF32 || decoded.Subframes[0].StartRegister != 0x0020 {
		t.Errorf("subframe 0 mismatch: %+v", decoded.Subframes[0])
	}
	if decoded.Subframes[1].Count != 2 || decoded.Subframes[1].StartRegister != 0x0030 {
		t.Errorf("subframe 1 mismatch: %+v", decoded.Subframes[1])
	}
}

func TestEncodeDecodeFrameWriteAndReply(t *testing.T) {
	var valBuf [4]byte
	bits := math.Float32bits(12.5)
	valBuf[0] = byte(bits)
	valBuf[1] = byte(bits >> 8)
	valBuf[2] = byte(bits >> 16)
	valBuf[3] = byte(bits >> 24)

	f := Frame{
		Source:      0x01,
		Destination: 0x10,
		Flags:       FlagFD,
		Subframes: []Subframe{
			{Opcode: OpReplyF32, Count: 1, StartRegister: 0x0020, Values: valBuf[:]},
		},
	}

	payload, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	decoded, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.Flags != FlagFD {
		t.Errorf("flags mismatch: got 0x%02x", decoded.Flags)
	}
	if !bytes.Equal(decoded.Subframes[0].Values, valBuf[:]) {
		t.Errorf("reply value mismatch: got %v, want %v", decoded.Subframes[0].Values, valBuf[:])
	}
}

func TestEncodeFramePadsWithPadByte(t *testing.T) {
	f := Frame{
		Source:      0x10,
		Destination: 0x01,
		Subframes: []Subframe{
			{Opcode: OpNOP, Count: 0, StartRegister: 0},
			{Opcode: OpNOP, Count: 0, StartRegister: 0},
		},
	}
	payload, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if len(payload) != 12 {
		t.Fatalf("expected rounded length 12, got %d", len(payload))
	}
	for i := 11; i < len(payload); i++ {
		if payload[i] != PadByte {
			t.Errorf("byte %d: expected pad byte 0x%02x, got 0x%02x", i, PadByte, payload[i])
		}
	}
}

func TestDecodeFrameRejectsTruncatedSubframe(t *testing.T) {
	payload := []byte{0x10, 0x01, 0x00, byte(OpWriteInt32), 0x01, 0x00, 0x20, 0x01, 0x02}
	if _, err := DecodeFrame(payload); err == nil {
		t.Fatal("expected error decoding truncated write subframe, got nil")
	}
}

func TestCanID(t *testing.T) {
	id := CanID(0x1, 0x10, 0x01)
	want := uint32(0x1)<<16 | uint32(0x10)<<8 | uint32(0x01)
	if id != want {
		t.Errorf("CanID = 0x%06x, want 0x%06x", id, want)
	}
}
