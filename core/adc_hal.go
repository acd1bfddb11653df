// ADC hardware abstraction layer.
//
// The current/voltage sampling component (C3) does not poll the ADC the
// way a background sensor does: the PWM timer triggers an injected
// conversion on every period, and by the time the ISR runs the result is
// already latched in the peripheral's data register. ReadInjected must
// therefore never block and never start a new conversion itself.
package core

// ADCChannel identifies one injected-conversion channel (phase A/B/C
// current, bus voltage, FET temperature, optional motor temperature).
type ADCChannel uint8

// InjectedADCDriver is the platform-specific injected-conversion group
// driven by the PWM timer's update event.
type InjectedADCDriver interface {
	// ConfigureInjectedSequence assigns ADCChannel ids to physical pins
	// and sets the injected conversion sequence and trigger source.
	ConfigureInjectedSequence(channels []ADCChannel) error

	// ReadInjected returns the latched raw conversion result for a
	// channel. Must be safe to call from the PWM ISR: no blocking, no
	// allocation, no peripheral re-trigger.
	ReadInjected(ch ADCChannel) uint16
}

var injectedADC InjectedADCDriver

// SetInjectedADCDriver registers the platform's injected-conversion driver.
func SetInjectedADCDriver(d InjectedADCDriver) {
	injectedADC = d
}

// MustInjectedADC returns the configured driver or panics if missing.
func MustInjectedADC() InjectedADCDriver {
	if injectedADC == nil {
		panic("injected ADC driver not configured")
	}
	return injectedADC
}
