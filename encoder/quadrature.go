package encoder

// grayPosition maps a 2-bit (A,B) pin state (bit1=A, bit0=B) to its
// position in the quadrature Gray-code cycle 00,01,11,10.
var grayPosition = [4]uint8{0, 1, 3, 2}

// quadratureTable maps (prevState<<2 | newState), both as raw 2-bit
// pin states, to a signed step: +1/-1 for a legal single Gray-code
// step, 0 for no change or a both-bits-changed (skipped-state) decode
// error. Built once from grayPosition rather than hand-transcribed, so
// the table can't silently drift from the Gray sequence it encodes.
var quadratureTable = func() [16]int8 {
	var t [16]int8
	for prev := uint8(0); prev < 4; prev++ {
		for next := uint8(0); next < 4; next++ {
			delta := int8(grayPosition[next]) - int8(grayPosition[prev])
			switch delta {
			case 1, -3:
				t[prev<<2|next] = 1
			case -1, 3:
				t[prev<<2|next] = -1
			default:
				t[prev<<2|next] = 0
			}
		}
	}
	return t
}()

// QuadratureDecoder is the software quadrature source: two GPIO inputs
// sampled on every edge interrupt, decoded against the 16-entry table
// keyed on (prev,new) pin state.
type QuadratureDecoder struct {
	name string
	cpr  uint32

	prevState uint8
	count     int32
	errors    uint32

	slot SeqSlot[RawSample]
}

// NewQuadratureDecoder returns a decoder for a CPR-count quadrature
// encoder (CPR = 4x the line count, one tick per table transition).
func NewQuadratureDecoder(name string, cpr uint32) *QuadratureDecoder {
	return &QuadratureDecoder{name: name, cpr: cpr}
}

// OnEdge is called from the A/B pin change interrupt with the new
// (a,b) pin levels. It updates the running count and republishes a
// fresh raw sample.
func (q *QuadratureDecoder) OnEdge(a, b bool) {
	newState := packState(a, b)
	idx := q.prevState<<2 | newState
	step := quadratureTable[idx]
	if step == 0 && newState != q.prevState {
		q.errors++
	} else {
		q.count += int32(step)
	}
	q.prevState = newState

	raw := uint32(int32(q.count) % int32(q.cpr))
	q.slot.Write(RawSample{Value: raw, Nonce: q.slot.Read().Nonce + 1, Active: true})
}

func packState(a, b bool) uint8 {
	var s uint8
	if a {
		s |= 0b10
	}
	if b {
		s |= 0b01
	}
	return s
}

func (q *QuadratureDecoder) Name() string        { return q.name }
func (q *QuadratureDecoder) Latest() RawSample    { return q.slot.Read() }
func (q *QuadratureDecoder) CPR() uint32          { return q.cpr }
func (q *QuadratureDecoder) IsReference() bool    { return true }
func (q *QuadratureDecoder) Errors() uint32       { return q.errors }
