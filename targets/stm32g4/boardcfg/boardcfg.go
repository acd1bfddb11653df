// Package boardcfg holds the reference inverter board's fixed tuning
// constants: the numbers that would otherwise be scattered through
// main.go's wiring. Everything here is a compile-time default; the
// live values are the register file's, seeded from these at boot and
// then overwritten by whatever config.Decode finds in flash.
package boardcfg

import (
	"bldcservo/sampling"
	"bldcservo/safety"
)

const (
	// ControlPeriod is TIM1's PWM period: 20kHz switching, matching the
	// reference board's SiC MOSFET gate driver's recommended range.
	ControlPeriod = 1.0 / 20000.0

	// PWMPeriodTicks is ControlPeriod expressed in TIM1 counter ticks at
	// its 170MHz clock, halved because center-aligned mode counts up
	// then down over one period.
	PWMPeriodTicks = 170_000_000 / 20000 / 2

	PoleCount              = 7
	MotorSign      float32 = 1
	PositionPLLOmegaN      = 2000.0 // rad/s, ~3x the current loop's bandwidth
	DisagreementThreshold  = 0.05   // turns, cross-check band between reference-capable sources

	TorqueConstant  = 0.0185 // Nm/A, reference motor's datasheet Kt
	CurrentCutoffA  = 20.0

	CurrentKp       float32 = 8.0
	CurrentKi       float32 = 1200.0
	MaxPhaseVoltage float32 = 24.0 // volts, clamps each PI's internal anti-windup

	OuterKp        float32 = 20.0
	OuterKd        float32 = 0.5
	OuterKi        float32 = 0.0
	OuterILimit    float32 = 5.0
	MaxDesiredRate float32 = 50.0 // turns/s, rate limiter on commanded position

	CommandTimeout float32 = 1.0 // seconds, Active -> ZeroVelocity
	StopTimeout    float32 = 2.0 // seconds, ZeroVelocity -> Stopped

	ABIVersion     uint32 = 1
	HardwareFamily uint16 = 1 // servo-g4
	HardwareRev    uint16 = 1
	BuildVersion          = "dev"

	SelfBusAddress uint8 = 0x01

	WatchdogTickPeriod  float32 = 0.001 // 1ms, matches modes.Machine.Tick cadence
	BackgroundPollPeriod float32 = 0.001

	InductancePulseVoltage float32 = 2.0 // volts, small enough to stay well under saturation current
	InductancePulseCycles  int     = 400 // 20ms at 20kHz, long enough for a clean di/dt read

	CurrentCalSampleCount int = 2000 // 100ms at 20kHz of averaging

	EncoderCalTableSize  int     = 64
	EncoderCalHoldCycles int     = 200 // 10ms settle at each commanded angle
	EncoderCalCurrent    float32 = 2.0 // amps, enough to hold position against detent/friction
)

// Calibration is the reference board's shunt/divider scale and offset,
// measured once per assembled unit and normally overwritten by the
// persisted config blob's calibration tags.
var Calibration = sampling.Calibration{
	CurrentScale:    0.0049, // amps per raw 12-bit ADC count, 20A/V shunt amp into a 3.3V/4095 ADC
	VSenseADCScale:  0.0161, // volts per raw count, 1/20 resistive divider
	TempScale:       0.3223,
	TempOffset:      -50,
	FilterCutoffHz:  200,
}

// FaultLimits is the reference board's voltage/thermal protection
// envelope for a 24V-nominal, 2-to-6S Li-ion bus.
var FaultLimits = safety.Limits{
	VMin:               9,
	VMax:               28,
	VoltageHysteresis:  0.5,
	FETTempMax:         100,
	FETTempDerateStart: 80,
	MotorTempMax:       100,
	ISROverrunFraction: 0.85,
}
