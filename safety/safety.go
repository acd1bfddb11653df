// Package safety implements the fault manager (C7): a fixed priority
// chain of per-cycle checks run from the ISR, latched with
// core.Latch so a fault can only be cleared by an explicit Stop once
// the underlying condition has cleared.
package safety

import "bldcservo/core"

// FaultCode enumerates the fault reasons, in the priority order the
// manager checks them, except that Check tests over-voltage before
// under-voltage.
type FaultCode uint8

const (
	FaultNone FaultCode = iota
	FaultMotorDriverFault
	FaultUnderVoltage
	FaultOverVoltage
	FaultOverTemperature
	FaultThetaInvalid
	FaultPositionInvalid
	FaultPwmCycleOverrun
	FaultTimingViolation
	FaultEncoderFault
)

// Fault is the Go error type carrying a FaultCode for non-ISR call
// sites (e.g. returned from a register write handler). The ISR path
// never constructs one of these; it reads manager.Code() directly.
type Fault struct {
	Code FaultCode
}

func (f Fault) Error() string { return faultCodeNames[f.Code] }

var faultCodeNames = map[FaultCode]string{
	FaultNone:             "ok",
	FaultMotorDriverFault: "motor driver fault",
	FaultUnderVoltage:     "under voltage",
	FaultOverVoltage:      "over voltage",
	FaultOverTemperature:  "over temperature",
	FaultThetaInvalid:     "theta invalid",
	FaultPositionInvalid:  "position invalid",
	FaultPwmCycleOverrun:  "pwm cycle overrun",
	FaultTimingViolation:  "timing violation",
	FaultEncoderFault:     "encoder fault",
}

// Limits holds the configured thresholds the manager checks against.
type Limits struct {
	VMin, VMax           float32
	VoltageHysteresis    float32
	FETTempMax           float32
	FETTempDerateStart   float32 // torque starts derating below FETTempMax at this point
	MotorTempMax         float32
	ISROverrunFraction   float32 // fraction of PWM period, e.g. 0.9
}

// Inputs is everything the manager needs to evaluate one cycle.
type Inputs struct {
	DriverFaultPinAsserted bool
	BusVoltage             float32
	FETTempC               float32
	MotorTempC             float32
	HasMotorTemp           bool
	PositionValid          bool
	PositionRequired       bool
	ThetaValid             bool
	ThetaRequired          bool
	ISRCycleFraction       float32 // measured ISR runtime / PWM period
	EncoderSourcesActive   int
	EncoderSourcesRequired bool
}

// Manager runs the fixed-priority fault check chain and latches on the
// first hit, per cycle.
type Manager struct {
	limits Limits
	latch  *core.Latch

	voltageHigh *core.ThresholdMonitor
	voltageLow  *core.ThresholdMonitor
	fetTemp     *core.ThresholdMonitor
	motorTemp   *core.ThresholdMonitor
}

// NewManager builds a fault manager against the given limits.
func NewManager(limits Limits) *Manager {
	return &Manager{
		limits: limits,
		latch:  core.NewLatch(),

		voltageHigh: core.NewThresholdMonitor(limits.VMax, true, limits.VoltageHysteresis, 1),
		voltageLow:  core.NewThresholdMonitor(limits.VMin, false, limits.VoltageHysteresis, 1),
		fetTemp:     core.NewThresholdMonitor(limits.FETTempMax, true, 2, 1),
		motorTemp:   core.NewThresholdMonitor(limits.MotorTempMax, true, 2, 1),
	}
}

// Check runs the priority chain for one cycle. It must be safe to call
// from the ISR: no allocation, no blocking.
func (m *Manager) Check(in Inputs) {
	if tripped, _ := m.latch.Tripped(); tripped {
		return
	}

	if in.DriverFaultPinAsserted {
		m.latch.Fire(uint8(FaultMotorDriverFault))
		return
	}
	if m.voltageHigh.Update(in.BusVoltage) {
		m.latch.Fire(uint8(FaultOverVoltage))
		return
	}
	if m.voltageLow.Update(in.BusVoltage) {
		m.latch.Fire(uint8(FaultUnderVoltage))
		return
	}
	if m.fetTemp.Update(in.FETTempC) {
		m.latch.Fire(uint8(FaultOverTemperature))
		return
	}
	if in.HasMotorTemp && m.motorTemp.Update(in.MotorTempC) {
		m.latch.Fire(uint8(FaultOverTemperature))
		return
	}
	if in.ThetaRequired && !in.ThetaValid {
		m.latch.Fire(uint8(FaultThetaInvalid))
		return
	}
	if in.PositionRequired && !in.PositionValid {
		m.latch.Fire(uint8(FaultPositionInvalid))
		return
	}
	if in.ISRCycleFraction > m.limits.ISROverrunFraction {
		m.latch.Fire(uint8(FaultPwmCycleOverrun))
		return
	}
	if in.EncoderSourcesRequired && in.EncoderSourcesActive == 0 {
		m.latch.Fire(uint8(FaultEncoderFault))
		return
	}
}

// Tripped reports whether a fault is latched and, if so, which one.
func (m *Manager) Tripped() (bool, FaultCode) {
	tripped, reason := m.latch.Tripped()
	return tripped, FaultCode(reason)
}

// Clear re-arms the latch. Callers (the mode state machine's explicit
// Stop handling) must have already confirmed the underlying condition
// has cleared.
func (m *Manager) Clear() {
	m.latch.Reset()
}

// TorqueDerate returns a 0..1 scale to apply to torque commands as FET
// temperature approaches FETTempMax, 1.0 below FETTempDerateStart and
// 0.0 at or above FETTempMax.
func (m *Manager) TorqueDerate(fetTempC float32) float32 {
	start := m.limits.FETTempDerateStart
	max := m.limits.FETTempMax
	if max <= start || fetTempC <= start {
		return 1
	}
	if fetTempC >= max {
		return 0
	}
	return (max - fetTempC) / (max - start)
}
