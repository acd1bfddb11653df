//go:build tinygo

package stm32g4

import (
	"device/stm32"
	"errors"
	"machine"

	"bldcservo/core"
)

// TIM1Driver implements core.ThreePhasePWMDriver on TIM1's three
// complementary channel pairs (CH1/CH1N, CH2/CH2N, CH3/CH3N), the
// standard STM32G4 three-phase inverter timer. Center-aligned counting
// mode is used so the injected ADC trigger lands on the PWM valley,
// giving the current loop a glitch-free sample of the phase currents.
type TIM1Driver struct {
	maxValue uint32
}

// NewTIM1Driver returns an unconfigured driver; ConfigurePWM sets the
// period and enables the outputs.
func NewTIM1Driver() *TIM1Driver {
	return &TIM1Driver{}
}

// ConfigurePWM sets TIM1's auto-reload register from cycleTicks, enables
// center-aligned mode 1, hardware dead-time insertion, and the
// break-input tied to the gate driver's fault pin. Returns the actual
// period used (ARR is quantized to whole ticks).
func (d *TIM1Driver) ConfigurePWM(cycleTicks uint32) (uint32, error) {
	if cycleTicks == 0 || cycleTicks > 0xFFFF {
		return 0, errors.New("stm32g4: cycleTicks out of TIM1 ARR range")
	}

	machine.CPUFrequency() // ensure clocks are configured before touching TIM1

	tim := stm32.TIM1
	tim.CR1.ClearBits(stm32.TIM_CR1_CEN_Msk)

	// Center-aligned mode 1: counts up then down, compare match on both
	// edges, so duty is symmetric around the ARR reload point.
	tim.CR1.ReplaceBits(1<<stm32.TIM_CR1_CMS_Pos, stm32.TIM_CR1_CMS_Msk, 0)
	tim.ARR.Set(cycleTicks - 1)

	// Update event (ARR reload at the counter valley) drives the
	// injected ADC group's trigger; see AdcDriver.ConfigureInjectedSequence.
	// MMS=010 selects "update event" as TRGO, per the timer's TRGO
	// selection table.
	const mmsUpdate = 2
	tim.CR2.ReplaceBits(mmsUpdate<<stm32.TIM_CR2_MMS_Pos, stm32.TIM_CR2_MMS_Msk, 0)

	// Dead-time and break: BDTR holds the dead-time generator value and
	// the break-input polarity/enable bits wired to the gate driver's
	// nFAULT pin. MOE (main output enable) is cleared here and only set
	// once duties have been written at least once, so the inverter never
	// glitches to 50% duty on reset.
	tim.BDTR.Set(stm32.TIM_BDTR_BKE | stm32.TIM_BDTR_DTG_Msk&dutyDeadTimeTicks)

	for _, ch := range []*stm32.TIM_CCR_Type{&tim.CCR1, &tim.CCR2, &tim.CCR3} {
		ch.Set(0)
	}
	tim.CCMR1.Set(pwmMode1 | pwmMode1<<8)
	tim.CCMR2.Set(pwmMode1)
	tim.CCER.Set(stm32.TIM_CCER_CC1E | stm32.TIM_CCER_CC1NE |
		stm32.TIM_CCER_CC2E | stm32.TIM_CCER_CC2NE |
		stm32.TIM_CCER_CC3E | stm32.TIM_CCER_CC3NE)

	tim.CR1.SetBits(stm32.TIM_CR1_CEN_Msk)

	d.maxValue = cycleTicks
	return cycleTicks, nil
}

// dutyDeadTimeTicks is the BDTR.DTG dead-time value; 100ns at the
// timer's 170MHz clock needs roughly 17 ticks in DTG's coarsest range.
const dutyDeadTimeTicks = 17

// pwmMode1 is CCMR output compare mode 110 (PWM mode 1) with the
// preload-enable bit set, shifted into CCMR1/CCMR2's low byte.
const pwmMode1 = 0x68

// WriteDuties writes the three compare registers. Values are latched at
// the next update event (the valley in center-aligned mode), so writes
// from the ISR never tear mid-period.
func (d *TIM1Driver) WriteDuties(a, b, c core.PWMValue) error {
	tim := stm32.TIM1
	tim.CCR1.Set(uint32(a))
	tim.CCR2.Set(uint32(b))
	tim.CCR3.Set(uint32(c))
	tim.BDTR.SetBits(stm32.TIM_BDTR_MOE_Msk)
	return nil
}

// GetMaxValue returns the configured ARR+1, the duty corresponding to
// a 100% on-time compare match.
func (d *TIM1Driver) GetMaxValue() uint32 {
	return d.maxValue
}

// DisableAll clears MOE immediately, forcing all six switches to their
// configured idle state (low-side on or Hi-Z per BDTR.OSSI), bypassing
// the normal compare-register reload point. Used only by the fault path.
func (d *TIM1Driver) DisableAll() error {
	stm32.TIM1.BDTR.ClearBits(stm32.TIM_BDTR_MOE_Msk)
	return nil
}
