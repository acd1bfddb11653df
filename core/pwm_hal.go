//go:build tinygo

package core

// PWMValue is a duty cycle expressed as a fraction of the configured
// period, in [0, GetMaxValue()].
type PWMValue uint32

// ThreePhasePWMDriver is the abstract center-aligned three-phase PWM
// interface the FOC current loop writes into every cycle. Platform code
// configures one hardware timer with three complementary compare
// channels (with dead-time insertion handled by the timer peripheral)
// and registers it here.
type ThreePhasePWMDriver interface {
	// ConfigurePWM sets the switching period in timer ticks and returns
	// the actual period used (hardware-quantized).
	ConfigurePWM(cycleTicks uint32) (uint32, error)

	// WriteDuties writes the three phase duty cycles for the next
	// reload point. Values are in [0, GetMaxValue()]; callers are
	// responsible for clamping before calling this from the ISR.
	WriteDuties(a, b, c PWMValue) error

	// GetMaxValue returns the duty cycle corresponding to 100%.
	GetMaxValue() uint32

	// DisableAll forces all three phases low-side/Hi-Z immediately,
	// bypassing the normal compare-register reload point. Used only by
	// the fault path.
	DisableAll() error
}

var pwmDriver ThreePhasePWMDriver

// SetPWMDriver is called by target-specific code to register its driver.
func SetPWMDriver(d ThreePhasePWMDriver) {
	pwmDriver = d
}

// MustPWM returns the configured driver or panics if missing.
func MustPWM() ThreePhasePWMDriver {
	if pwmDriver == nil {
		panic("PWM driver not configured")
	}
	return pwmDriver
}
