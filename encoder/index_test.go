package encoder

import (
	"bldcservo/core"
	"testing"
)

type fakeGPIO struct {
	pins map[core.GPIOPin]bool
}

func (f *fakeGPIO) ConfigureOutput(core.GPIOPin) error         { return nil }
func (f *fakeGPIO) ConfigureInputPullUp(core.GPIOPin) error    { return nil }
func (f *fakeGPIO) ConfigureInputPullDown(core.GPIOPin) error  { return nil }
func (f *fakeGPIO) SetPin(pin core.GPIOPin, v bool) error      { f.pins[pin] = v; return nil }
func (f *fakeGPIO) GetPin(pin core.GPIOPin) (bool, error)      { return f.pins[pin], nil }
func (f *fakeGPIO) ReadPin(pin core.GPIOPin) bool              { return f.pins[pin] }

func TestIndexSourceLatchesShortPulse(t *testing.T) {
	fake := &fakeGPIO{pins: map[core.GPIOPin]bool{}}
	core.SetGPIODriver(fake)

	idx := NewIndexSource(5)
	if idx.Observed() {
		t.Fatal("should not be observed before any pulse")
	}

	// Pulse comes and goes between Poll calls; only the EXTI latch saw it.
	idx.OnRisingEdge()
	fake.pins[5] = false
	idx.Poll()

	if !idx.Observed() {
		t.Fatal("expected pulse to be observed via EXTI latch")
	}
	if idx.Nonce() != 1 {
		t.Errorf("nonce = %d, want 1", idx.Nonce())
	}
}

func TestIndexSourceLivePinAlsoCounts(t *testing.T) {
	fake := &fakeGPIO{pins: map[core.GPIOPin]bool{5: true}}
	core.SetGPIODriver(fake)

	idx := NewIndexSource(5)
	idx.Poll()
	if !idx.Observed() {
		t.Fatal("expected live-high pin to count as observed")
	}
}
