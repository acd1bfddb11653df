package encoder

import "bldcservo/core"

// IndexSource is the once-per-revolution index pulse used to seed
// homing. A rising edge observed by the EXTI callback (OnRisingEdge)
// latches until the next Poll, which ORs the latch with a live pin
// read - so a pulse shorter than one control period cannot be missed
// even if the ISR didn't happen to run during it.
type IndexSource struct {
	pin core.GPIOPin

	latched bool
	seen    bool
	nonce   uint32
}

// NewIndexSource returns an index source polling the given GPIO pin
// via core's GPIO HAL.
func NewIndexSource(pin core.GPIOPin) *IndexSource {
	return &IndexSource{pin: pin}
}

// OnRisingEdge is called from the index pin's EXTI interrupt.
func (s *IndexSource) OnRisingEdge() {
	s.latched = true
}

// Poll is called once per control cycle. It observes a pulse if either
// the EXTI latch fired since the last Poll or the pin currently reads
// high, then clears the latch and bumps the observed flag and nonce.
func (s *IndexSource) Poll() {
	live := core.MustGPIO().ReadPin(s.pin)
	if s.latched || live {
		s.seen = true
		s.nonce++
	}
	s.latched = false
}

// Observed reports whether an index pulse has ever been seen.
func (s *IndexSource) Observed() bool {
	return s.seen
}

// Nonce returns the pulse-observation counter.
func (s *IndexSource) Nonce() uint32 {
	return s.nonce
}
