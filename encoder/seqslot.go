package encoder

import "sync/atomic"

// SeqSlot publishes a value of type T from one writer (the background
// poller for a given source) to one reader (the ISR) without a lock,
// using the same odd/even sequence + fence idea protocol.Transport uses
// for isSynchronized/nextSequence: the writer bumps an odd sequence
// before mutating the value and an even sequence after, and the reader
// retries if it observed an odd sequence or the sequence changed
// mid-read.
type SeqSlot[T any] struct {
	seq   uint32
	value T
}

// Write publishes a new value. Only the single designated writer for
// this slot may call Write.
func (s *SeqSlot[T]) Write(v T) {
	atomic.AddUint32(&s.seq, 1) // now odd: a read in progress must retry
	s.value = v
	atomic.AddUint32(&s.seq, 1) // now even: value is stable
}

// Read returns the most recently published value. Safe to call from
// the ISR context while Write runs concurrently in the background.
func (s *SeqSlot[T]) Read() T {
	for {
		seq1 := atomic.LoadUint32(&s.seq)
		if seq1&1 != 0 {
			continue // writer mid-update, retry
		}
		v := s.value
		seq2 := atomic.LoadUint32(&s.seq)
		if seq1 == seq2 {
			return v
		}
	}
}
