//go:build tinygo

package encoder

import "bldcservo/core"

// AMT21Source polls a CUI AMT21 absolute encoder over UART/RS485.
type AMT21Source struct {
	name           string
	bus            core.UARTBusID
	cpr            uint32
	checksumErrors uint32

	slot SeqSlot[RawSample]
}

// NewAMT21Source returns a 14-bit AMT21 source on the given UART bus.
func NewAMT21Source(name string, bus core.UARTBusID) *AMT21Source {
	return &AMT21Source{name: name, bus: bus, cpr: 1 << 14}
}

// Poll requests and reads one position frame.
func (s *AMT21Source) Poll() {
	tx := []byte{0x54}
	rx := make([]byte, 2)
	n, err := core.MustUART().Exchange(s.bus, tx, rx, 1000)
	if err != nil || n != 2 {
		s.slot.Write(RawSample{Active: false})
		return
	}

	frame := uint16(rx[0]) | uint16(rx[1])<<8
	value, ok := decodeAMT21(frame)
	if !ok {
		s.checksumErrors++
		return // value is not updated on a parity mismatch
	}

	s.slot.Write(RawSample{Value: uint32(value), Nonce: s.slot.Read().Nonce + 1, Active: true})
}

// ChecksumErrors reports the running parity-failure count.
func (s *AMT21Source) ChecksumErrors() uint32 { return s.checksumErrors }

func (s *AMT21Source) Name() string     { return s.name }
func (s *AMT21Source) Latest() RawSample { return s.slot.Read() }
func (s *AMT21Source) CPR() uint32      { return s.cpr }
func (s *AMT21Source) IsReference() bool { return true }
