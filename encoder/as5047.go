//go:build tinygo

package encoder

import "bldcservo/core"

// AS5047Source reads an AS5047/MA732-family absolute angle encoder
// over SPI: a 14-bit value, left-shifted to the 16-bit fixed
// convention the rest of the position pipeline expects.
type AS5047Source struct {
	name string
	cpr  uint32
	bus  core.SPIBusID

	slot SeqSlot[RawSample]
}

// NewAS5047Source returns a source polling bus at 14-bit resolution.
func NewAS5047Source(name string, bus core.SPIBusID) *AS5047Source {
	return &AS5047Source{name: name, cpr: 1 << 16, bus: bus}
}

// Poll performs one SPI transaction and republishes the raw sample.
// Called from the background loop, never from the ISR.
func (s *AS5047Source) Poll() {
	tx := []byte{0xFF, 0xFF}
	rx := make([]byte, 2)

	handle, err := core.MustSPI().ConfigureBus(core.SPIConfig{BusID: s.bus, Mode: 1, Rate: 10_000_000})
	if err != nil {
		s.slot.Write(RawSample{Active: false})
		return
	}
	if err := core.MustSPI().Transfer(handle, tx, rx); err != nil {
		s.slot.Write(RawSample{Active: false})
		return
	}

	raw14 := (uint16(rx[0])<<8 | uint16(rx[1])) & 0x3FFF
	value := uint32(raw14) << 2 // align 14-bit reading to 16-bit convention

	s.slot.Write(RawSample{Value: value, Nonce: s.slot.Read().Nonce + 1, Active: true})
}

func (s *AS5047Source) Name() string     { return s.name }
func (s *AS5047Source) Latest() RawSample { return s.slot.Read() }
func (s *AS5047Source) CPR() uint32      { return s.cpr }
func (s *AS5047Source) IsReference() bool { return true }
