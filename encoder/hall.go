package encoder

// hallSectorTable maps a 3-bit Hall code (H1<<2|H2<<1|H3) to its
// electrical sector 0-5, or 6 for the two invalid codes (000, 111)
// that should never occur with working sensors.
var hallSectorTable = [8]uint8{
	6, // 000 invalid
	0, // 001
	2, // 010
	1, // 011
	4, // 100
	5, // 101
	3, // 110
	6, // 111 invalid
}

// HallSource decodes a six-state Gray-coded Hall sensor trio into an
// electrical sector. Any invalid code increments Errors and keeps the
// last valid sector rather than updating it.
type HallSource struct {
	name     string
	polarity bool // inverts the three Hall inputs before decode

	sector uint8
	errors uint32

	slot SeqSlot[RawSample]
}

// NewHallSource returns a Hall source. CPR for a Hall source is fixed
// at 6 sectors per electrical revolution.
func NewHallSource(name string, polarity bool) *HallSource {
	return &HallSource{name: name, polarity: polarity}
}

// OnEdge is called from the Hall pin change interrupt with the new
// (h1,h2,h3) levels.
func (h *HallSource) OnEdge(h1, h2, h3 bool) {
	if h.polarity {
		h1, h2, h3 = !h1, !h2, !h3
	}
	code := uint8(0)
	if h1 {
		code |= 0b100
	}
	if h2 {
		code |= 0b010
	}
	if h3 {
		code |= 0b001
	}

	sector := hallSectorTable[code]
	if sector == 6 {
		h.errors++
	} else {
		h.sector = sector
	}

	h.slot.Write(RawSample{Value: uint32(h.sector), Nonce: h.slot.Read().Nonce + 1, Active: true})
}

func (h *HallSource) Name() string     { return h.name }
func (h *HallSource) Latest() RawSample { return h.slot.Read() }
func (h *HallSource) CPR() uint32      { return 6 }
func (h *HallSource) IsReference() bool { return true }
func (h *HallSource) Errors() uint32   { return h.errors }
