//go:build tinygo

package encoder

import "bldcservo/core"

// AkSIM2Source polls an AkSIM-2 absolute encoder over UART. On a
// framing error it drops up to 3 resync bytes looking for the marker
// byte before giving up on that poll.
type AkSIM2Source struct {
	name string
	bus  core.UARTBusID
	cpr  uint32

	errBit, warnBit bool
	status          uint16

	slot SeqSlot[RawSample]
}

// NewAkSIM2Source returns a 24-bit AkSIM-2 source on the given UART bus.
func NewAkSIM2Source(name string, bus core.UARTBusID) *AkSIM2Source {
	return &AkSIM2Source{name: name, bus: bus, cpr: 1 << 24}
}

// Poll reads and decodes one frame, resyncing on a bad marker byte.
func (s *AkSIM2Source) Poll() {
	buf := make([]byte, 10)
	n, err := core.MustUART().Exchange(s.bus, nil, buf, 1000)
	if err != nil || n < 7 {
		s.slot.Write(RawSample{Active: false})
		return
	}

	off := findAkSIM2Marker(buf[:n], 3)
	if off < 0 || off+7 > n {
		s.slot.Write(RawSample{Active: false})
		return
	}

	frame, err := decodeAkSIM2(buf[off : off+7])
	if err != nil {
		s.slot.Write(RawSample{Active: false})
		return
	}

	s.errBit, s.warnBit, s.status = frame.Err, frame.Warn, frame.Status
	s.slot.Write(RawSample{Value: frame.Position, Nonce: s.slot.Read().Nonce + 1, Active: !frame.Err})
}

func (s *AkSIM2Source) Name() string      { return s.name }
func (s *AkSIM2Source) Latest() RawSample { return s.slot.Read() }
func (s *AkSIM2Source) CPR() uint32       { return s.cpr }
func (s *AkSIM2Source) IsReference() bool { return true }
func (s *AkSIM2Source) Status() (errBit, warnBit bool, status uint16) {
	return s.errBit, s.warnBit, s.status
}
