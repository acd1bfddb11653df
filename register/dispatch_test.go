package register

import (
	"bldcservo/protocol"
	"math"
	"testing"
)

func float32Bytes(v float32) []byte {
	bits := math.Float32bits(v)
	return []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
}

func TestApplyWriteThenReadSameFrame(t *testing.T) {
	f := newTestFile()

	in := protocol.Frame{
		Source:      0x10,
		Destination: 0x01,
		Subframes: []protocol.Subframe{
			{Opcode: protocol.OpWriteF32, Count: 1, StartRegister: 0x0020, Values: float32Bytes(0.75)},
			{Opcode: protocol.OpReadF32, Count: 1, StartRegister: 0x0020},
		},
	}

	out := f.Apply(in, 0x01)
	if len(out.Subframes) != 1 {
		t.Fatalf("expected 1 reply subframe, got %d", len(out.Subframes))
	}
	got := math.Float32frombits(
		uint32(out.Subframes[0].Values[0]) |
			uint32(out.Subframes[0].Values[1])<<8 |
			uint32(out.Subframes[0].Values[2])<<16 |
			uint32(out.Subframes[0].Values[3])<<24,
	)
	if got != 0.75 {
		t.Fatalf("write-then-read in same frame: got %v, want 0.75", got)
	}
}

func TestApplySetsOverflowWhenReplyTooLarge(t *testing.T) {
	f := NewFile()
	for i := 0; i < 20; i++ {
		addr := uint16(i)
		f.Add(Descriptor{
			Address: addr, Name: string(rune('a' + i)), Type: TypeF32, Access: AccessR,
			Get: func() float64 { return 1 },
		})
	}

	subframes := make([]protocol.Subframe, 0, 20)
	for i := 0; i < 20; i++ {
		subframes = append(subframes, protocol.Subframe{
			Opcode: protocol.OpReadF32, Count: 1, StartRegister: uint16(i),
		})
	}
	in := protocol.Frame{Source: 0x10, Destination: 0x01, Subframes: subframes}

	out := f.Apply(in, 0x01)
	if out.Flags&protocol.FlagOverflow == 0 {
		t.Fatal("expected overflow flag set on oversized reply")
	}
}
