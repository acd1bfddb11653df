//go:build tinygo

package stm32g4

import (
	"device/stm32"
	"errors"
	"machine"

	"bldcservo/core"
)

// adcPin maps a core.ADCChannel id to the physical analog pin and the
// ADC1 regular-channel number it's wired to on the reference inverter
// board: three shunt-amplifier outputs, bus voltage divider, and FET
// temperature thermistor.
var adcPin = map[core.ADCChannel]struct {
	pin machine.Pin
	ch  uint32
}{
	0: {machine.PA0, 1},  // phase A current
	1: {machine.PA1, 2},  // phase B current
	2: {machine.PA2, 3},  // phase C current
	3: {machine.PA3, 4},  // bus voltage divider
	4: {machine.PA4, 5},  // FET temperature thermistor
	5: {machine.PA5, 6},  // motor temperature thermistor (optional)
}

// AdcDriver implements core.InjectedADCDriver on ADC1's injected
// conversion group, triggered by TIM1's update event (the counter
// valley in center-aligned mode) so all three phase currents and the
// slow channels are sampled once per PWM period with no ISR-side
// trigger logic.
type AdcDriver struct {
	sequence []core.ADCChannel
}

// NewAdcDriver returns an unconfigured driver.
func NewAdcDriver() *AdcDriver {
	return &AdcDriver{}
}

// ConfigureInjectedSequence configures the analog pins and programs
// ADC1's JSQR injected sequence register and trigger source.
func (d *AdcDriver) ConfigureInjectedSequence(channels []core.ADCChannel) error {
	if len(channels) == 0 || len(channels) > 4 {
		return errors.New("stm32g4: injected group supports 1-4 channels")
	}

	for _, ch := range channels {
		mapping, ok := adcPin[ch]
		if !ok {
			return errors.New("stm32g4: unmapped ADC channel")
		}
		mapping.pin.Configure(machine.PinConfig{Mode: machine.PinAnalog})
	}

	adc := stm32.ADC1
	adc.CR.ClearBits(stm32.ADC_CR_ADEN_Msk)

	// JL = number of conversions in the injected sequence minus one;
	// JSQ1..JSQ4 hold the regular-channel numbers in conversion order.
	jsqr := uint32(len(channels)-1) << stm32.ADC_JSQR_JL_Pos
	shift := uint(stm32.ADC_JSQR_JSQ1_Pos)
	for _, ch := range channels {
		jsqr |= adcPin[ch].ch << shift
		shift += stm32.ADC_JSQR_JSQ2_Pos - stm32.ADC_JSQR_JSQ1_Pos
	}
	// External trigger: TIM1_TRGO on its rising edge (JEXTEN=01,
	// JEXTSEL selects TIM1_TRGO), matching TIM1Driver's MMS=update.
	jsqr |= 1 << stm32.ADC_JSQR_JEXTEN_Pos
	jsqr |= tim1TRGOSelector << stm32.ADC_JSQR_JEXTSEL_Pos
	adc.JSQR.Set(jsqr)

	adc.CR.SetBits(stm32.ADC_CR_ADEN_Msk)
	d.sequence = append([]core.ADCChannel(nil), channels...)
	return nil
}

// tim1TRGOSelector is ADC1's JEXTSEL code for TIM1_TRGO, per the
// STM32G4 reference manual's injected external trigger table.
const tim1TRGOSelector = 9

// ReadInjected returns the latched JDR result for ch's position in the
// configured sequence. Must not block or re-trigger: the conversion
// already completed by the time the PWM ISR reads it.
func (d *AdcDriver) ReadInjected(ch core.ADCChannel) uint16 {
	idx := -1
	for i, c := range d.sequence {
		if c == ch {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0
	}

	adc := stm32.ADC1
	switch idx {
	case 0:
		return uint16(adc.JDR1.Get())
	case 1:
		return uint16(adc.JDR2.Get())
	case 2:
		return uint16(adc.JDR3.Get())
	default:
		return uint16(adc.JDR4.Get())
	}
}
