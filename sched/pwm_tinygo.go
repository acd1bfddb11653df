//go:build tinygo

package sched

import "bldcservo/core"

// corePWM adapts core.MustPWM()'s fractional-duty interface to the
// float32-duty PWMWriter this package's control cycle writes through.
type corePWM struct{}

// NewCorePWMWriter returns a PWMWriter backed by the registered
// core.ThreePhasePWMDriver.
func NewCorePWMWriter() PWMWriter {
	return corePWM{}
}

func (corePWM) WriteDuties(a, b, c float32) error {
	drv := core.MustPWM()
	max := float32(drv.GetMaxValue())
	return drv.WriteDuties(
		core.PWMValue(clampUnit(a)*max),
		core.PWMValue(clampUnit(b)*max),
		core.PWMValue(clampUnit(c)*max),
	)
}

func (corePWM) DisableAll() error {
	return core.MustPWM().DisableAll()
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
