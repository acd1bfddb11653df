package core

// Latch flags.
const (
	LatchArmed    = 1 << 0 // can still fire
	LatchTripped  = 1 << 1 // has fired, holds Reason until Reset
)

// Signal is one callback registered against a Latch.
type Signal struct {
	Callback func(reason uint8)
	Next     *Signal
}

// Latch is a one-shot, interrupt-safe trigger: once Fire is called it
// ignores further calls until Reset, and walks a list of callbacks
// exactly once. A reusable primitive used both by the
// homing-completion signal (outer package) and the fault latch (safety
// package).
type Latch struct {
	Flags   uint8
	Reason  uint8
	Signals *Signal
}

// NewLatch returns an armed latch.
func NewLatch() *Latch {
	return &Latch{Flags: LatchArmed}
}

// Fire trips the latch with reason, once. Safe to call from an ISR.
func (l *Latch) Fire(reason uint8) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if l.Flags&LatchArmed == 0 {
		return
	}
	l.Flags &^= LatchArmed
	l.Flags |= LatchTripped
	l.Reason = reason

	for s := l.Signals; s != nil; s = s.Next {
		if s.Callback != nil {
			s.Callback(reason)
		}
	}
}

// Tripped reports whether the latch has fired and, if so, the reason.
func (l *Latch) Tripped() (bool, uint8) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return l.Flags&LatchTripped != 0, l.Reason
}

// Reset re-arms the latch, clearing any latched reason. Must only be
// called from a context that has confirmed the triggering condition has
// cleared (e.g. an explicit Stop command).
func (l *Latch) Reset() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	l.Flags = LatchArmed
	l.Reason = 0
}

// AddSignal registers a callback invoked when the latch fires.
func (l *Latch) AddSignal(callback func(reason uint8)) *Signal {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s := &Signal{Callback: callback, Next: l.Signals}
	l.Signals = s
	return s
}
