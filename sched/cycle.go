// Package sched implements the scheduling glue (C9): the PWM ISR entry
// point that runs C3→C2→C7→C6→C5→C4 once per period, and the
// cooperative background loop that polls non-ISR encoder sources and
// services the command/register server.
package sched

import (
	"bldcservo/core"
	"bldcservo/foc"
	"bldcservo/modes"
	"bldcservo/outer"
	"bldcservo/position"
	"bldcservo/safety"
	"bldcservo/sampling"
)

// PWMWriter is the narrow interface the control cycle writes duties
// through, kept separate from core.ThreePhasePWMDriver so this package
// stays host-testable; a tinygo-only adapter binds core.MustPWM() to it.
type PWMWriter interface {
	WriteDuties(a, b, c float32) error
	DisableAll() error
}

// DutyCycleSource abstracts sampling.Sampler so tests can substitute a
// fake without configuring a real injected ADC sequence.
type DutyCycleSource interface {
	Sample() sampling.Snapshot
}

// Poller is implemented by any encoder.Source variant that needs an
// explicit background poll (as opposed to ISR-latched sources).
type Poller interface {
	Poll()
}

// CycleConfig bundles the per-cycle-fixed pieces the controller drives.
type CycleConfig struct {
	Sampler      DutyCycleSource
	Fusion       *position.Fusion
	CurrentLoop  *foc.CurrentLoop
	OuterLoop    *outer.Loop
	FaultManager *safety.Manager
	ModeMachine  *modes.Machine
	PWM          PWMWriter

	// InductanceSweep, CurrentCalSweep and EncoderCalSweep back the
	// MeasureInductance/CalibratingCurrent/CalibratingEncoder modes.
	// Left nil, the corresponding mode just holds PWM disabled.
	InductanceSweep *outer.InductanceSweep
	CurrentCalSweep *outer.CurrentCalibrationSweep
	EncoderCalSweep *outer.EncoderCalibrationSweep

	DT float32 // control period in seconds

	PoleCount            uint32
	EncoderSourcesTotal  int
	PositionRequired     bool
	ISROverrunFraction   float32
}

// CycleReport is returned from RunCycle for telemetry publication and
// testing; it mirrors the fields the ControlCycle snapshot exposes.
type CycleReport struct {
	Sampling sampling.Snapshot
	Position position.Estimate
	Outer    outer.Output
	FOC      foc.Result
	Faulted  bool
	Fault    safety.FaultCode
}

// Controller owns one motor's control-cycle state.
type Controller struct {
	cfg CycleConfig

	velocityCmd, positionCmd, feedforwardTorque float32
	limits                                      outer.Limits
	sign                                        float32

	activeEncoderCount int
	isrCycleFraction   float32

	// openLoopTheta is VoltageFoc's forced-commutation angle, integrated
	// from the commanded electrical speed; reset whenever the mode isn't
	// VoltageFoc so re-entering it always starts a fresh ramp.
	openLoopTheta float32

	lastReport CycleReport
}

// LastReport returns the CycleReport produced by the most recent
// RunCycle, for telemetry registers read outside the ISR.
func (c *Controller) LastReport() CycleReport { return c.lastReport }

// NewController builds a controller from the given config. sign flips
// torque direction for reversed motor wiring.
func NewController(cfg CycleConfig, sign float32) *Controller {
	if sign == 0 {
		sign = 1
	}
	return &Controller{cfg: cfg, sign: sign}
}

// SetCommand updates the commanded targets consumed by the next cycle;
// called from the background loop when C8 delivers a new command.
func (c *Controller) SetCommand(positionCmd, velocityCmd, feedforwardTorque float32, limits outer.Limits) {
	c.positionCmd = positionCmd
	c.velocityCmd = velocityCmd
	c.feedforwardTorque = feedforwardTorque
	c.limits = limits
	if c.cfg.ModeMachine != nil {
		c.cfg.ModeMachine.Touch()
	}
}

// PositionCmd returns the currently commanded position target.
func (c *Controller) PositionCmd() float32 { return c.positionCmd }

// SetPositionCmd updates only the position target, leaving velocity,
// feedforward torque and limits untouched. Used by individual register
// writes (C8), where SetCommand's all-at-once signature doesn't fit.
func (c *Controller) SetPositionCmd(v float32) {
	c.positionCmd = v
	if c.cfg.ModeMachine != nil {
		c.cfg.ModeMachine.Touch()
	}
}

// VelocityCmd returns the currently commanded velocity target.
func (c *Controller) VelocityCmd() float32 { return c.velocityCmd }

// SetVelocityCmd updates only the velocity target.
func (c *Controller) SetVelocityCmd(v float32) {
	c.velocityCmd = v
	if c.cfg.ModeMachine != nil {
		c.cfg.ModeMachine.Touch()
	}
}

// FeedforwardTorque returns the currently commanded feedforward torque.
func (c *Controller) FeedforwardTorque() float32 { return c.feedforwardTorque }

// SetFeedforwardTorque updates only the feedforward torque term.
func (c *Controller) SetFeedforwardTorque(v float32) {
	c.feedforwardTorque = v
}

// Limits returns the outer loop's currently configured command limits.
func (c *Controller) Limits() outer.Limits { return c.limits }

// SetLimits replaces the outer loop's command limits.
func (c *Controller) SetLimits(l outer.Limits) { c.limits = l }

// ReportActiveEncoders lets the background loop tell the ISR how many
// encoder sources were active as of the last poll (C7's EncoderFault
// check reads this rather than polling sources itself).
func (c *Controller) ReportActiveEncoders(n int) {
	c.activeEncoderCount = n
}

// ReportISRCycleFraction records the measured ISR runtime as a fraction
// of the PWM period, read by a hardware timer capture outside this package.
func (c *Controller) ReportISRCycleFraction(frac float32) {
	c.isrCycleFraction = frac
}

// RunCycle is the PWM ISR entry point: C3 (sample) → C2 (position) →
// C7 (fault checks) → C6 (mode) → C5 (outer loop) → C4 (FOC) → PWM
// write. Must not allocate or block.
func (c *Controller) RunCycle() (report CycleReport) {
	defer func() { c.lastReport = report }()
	core.IncrementCycleCount()

	snap := c.cfg.Sampler.Sample()
	posEstimate := c.cfg.Fusion.Step(c.cfg.DT)

	state := modes.Stopped
	if c.cfg.ModeMachine != nil {
		state = c.cfg.ModeMachine.State()
	}

	if c.cfg.FaultManager != nil {
		c.cfg.FaultManager.Check(safety.Inputs{
			BusVoltage:             snap.BusVoltage,
			FETTempC:               snap.FETTempC,
			MotorTempC:             snap.MotorTempC,
			HasMotorTemp:           false,
			PositionValid:          posEstimate.Valid,
			PositionRequired:       c.cfg.PositionRequired,
			ThetaValid:             posEstimate.Valid,
			ThetaRequired:          state.RequiresTheta(),
			ISRCycleFraction:       c.isrCycleFraction,
			EncoderSourcesActive:   c.activeEncoderCount,
			EncoderSourcesRequired: c.cfg.EncoderSourcesTotal > 0,
		})
	}

	report = CycleReport{Sampling: snap, Position: posEstimate}

	if c.cfg.FaultManager != nil {
		if tripped, code := c.cfg.FaultManager.Tripped(); tripped {
			if c.cfg.ModeMachine != nil {
				c.cfg.ModeMachine.OnFault()
			}
			c.disablePWM()
			report.Faulted = true
			report.Fault = code
			return report
		}
	}

	switch state {
	case modes.Fault:
		c.disablePWM()
		report.Faulted = true
		return report
	case modes.Stopped, modes.Enabling:
		c.disablePWM()
		return report
	}

	if state.RequiresTheta() && !posEstimate.Valid {
		c.disablePWM()
		return report
	}
	if state != modes.VoltageFoc {
		c.openLoopTheta = 0
	}

	measuredPos := float32(posEstimate.OutputPositionTurns)
	measuredVel := float32(posEstimate.OutputVelocityTurnsPerS)

	switch state {
	case modes.Brake:
		return c.runBrake(report)

	case modes.Voltage:
		// Theta fixed at 0: InverseParkTransform at theta=0 reduces to a
		// direct alpha=Vd, beta=Vq pass-through, i.e. raw phase-frame
		// voltage injection with no commutation at all.
		res := c.writeOpenLoopVoltage(c.positionCmd, c.velocityCmd, 0, snap)
		report.FOC = res
		return report

	case modes.VoltageFoc:
		// feedforwardTorque is repurposed as the commanded open-loop
		// electrical speed (rad/s) while in this mode, freeing
		// positionCmd/velocityCmd for Vd/Vq.
		c.openLoopTheta = wrapTheta(c.openLoopTheta + c.feedforwardTorque*c.cfg.DT)
		res := c.writeOpenLoopVoltage(c.positionCmd, c.velocityCmd, c.openLoopTheta, snap)
		report.FOC = res
		return report

	case modes.VoltageDq:
		res := c.writeOpenLoopVoltage(c.positionCmd, c.velocityCmd, posEstimate.ElectricalTheta, snap)
		report.FOC = res
		return report

	case modes.Current:
		// positionCmd/velocityCmd repurposed as IdRef/IqRef; bypasses the
		// outer position-velocity loop entirely.
		res := c.cfg.CurrentLoop.Step(
			snap.Ia, snap.Ib, snap.Ic, snap.BusVoltage, posEstimate.ElectricalTheta,
			c.positionCmd, c.velocityCmd, c.cfg.DT,
		)
		report.FOC = res
		if c.cfg.PWM != nil {
			_ = c.cfg.PWM.WriteDuties(res.DutyA, res.DutyB, res.DutyC)
		}
		return report

	case modes.CalibratingCurrent:
		return c.runCurrentCalibration(snap, report)

	case modes.CalibratingEncoder:
		return c.runEncoderCalibration(snap, posEstimate, report)

	case modes.MeasureInductance:
		return c.runInductanceSweep(snap, report)

	case modes.ZeroVelocity:
		out := c.cfg.OuterLoop.ZeroVelocityOutput(measuredPos, measuredVel, posEstimate.ElectricalOmega, c.limits, c.sign, c.cfg.DT)
		return c.runClosedLoop(out, snap, posEstimate, report)

	case modes.StayWithin:
		out := c.cfg.OuterLoop.StayWithinOutput(measuredPos, measuredVel, c.limits.MinPosition, c.limits.MaxPosition, posEstimate.ElectricalOmega, c.limits, c.sign, c.cfg.DT)
		return c.runClosedLoop(out, snap, posEstimate, report)

	default:
		// Position, PositionHold, PositionWait, PositionTimeout, Homing:
		// the shared position-velocity PID, selecting the velocity-only
		// or torque-only entry point when the corresponding command field
		// is left NaN (the Velocity/Torque sub-behaviors of this family).
		var out outer.Output
		switch {
		case c.positionCmd != c.positionCmd && c.velocityCmd != c.velocityCmd:
			out = c.cfg.OuterLoop.TorqueOutput(c.feedforwardTorque)
		case c.positionCmd != c.positionCmd:
			out = c.cfg.OuterLoop.VelocityOutput(measuredPos, measuredVel, c.velocityCmd, c.feedforwardTorque, posEstimate.ElectricalOmega, c.limits, c.sign, c.cfg.DT)
		default:
			out = c.cfg.OuterLoop.Step(measuredPos, measuredVel, c.positionCmd, c.velocityCmd, c.feedforwardTorque, posEstimate.ElectricalOmega, c.limits, c.sign, c.cfg.DT)
		}
		return c.runClosedLoop(out, snap, posEstimate, report)
	}
}

// runClosedLoop finishes a cycle for any mode whose outer.Output feeds
// the closed current loop: step the FOC pipeline against the real
// fused theta, write duties, and merge telemetry into report.
func (c *Controller) runClosedLoop(out outer.Output, snap sampling.Snapshot, posEstimate position.Estimate, report CycleReport) CycleReport {
	report.Outer = out

	focResult := c.cfg.CurrentLoop.Step(
		snap.Ia, snap.Ib, snap.Ic, snap.BusVoltage, posEstimate.ElectricalTheta,
		out.IdRef, out.IqRef, c.cfg.DT,
	)
	report.FOC = focResult

	if c.cfg.PWM != nil {
		_ = c.cfg.PWM.WriteDuties(focResult.DutyA, focResult.DutyB, focResult.DutyC)
	}

	return report
}

// writeOpenLoopVoltage drives the inverse Park/Clarke/SVPWM pipeline
// at a caller-supplied (vd, vq, theta) with no PI feedback, for the
// forced-commutation voltage modes and the inductance sweep. Id/Iq are
// still computed from the measured currents for telemetry even though
// they don't drive the output.
func (c *Controller) writeOpenLoopVoltage(vd, vq, theta float32, snap sampling.Snapshot) foc.Result {
	sin, cos := foc.SinCos(theta)
	valpha, vbeta := foc.InverseParkTransform(vd, vq, sin, cos)
	va, vb, vc := foc.InverseClarkeTransform(valpha, vbeta)
	da, db, dc := foc.DutiesFromPhaseVoltages(va, vb, vc, snap.BusVoltage, c.cfg.CurrentLoop.DMin, c.cfg.CurrentLoop.DMax)

	alpha, beta := foc.ClarkeTransform(snap.Ia, snap.Ib, snap.Ic)
	id, iq := foc.ParkTransform(alpha, beta, sin, cos)

	if c.cfg.PWM != nil {
		_ = c.cfg.PWM.WriteDuties(da, db, dc)
	}

	return foc.Result{DutyA: da, DutyB: db, DutyC: dc, Vd: vd, Vq: vq, Id: id, Iq: iq}
}

func (c *Controller) runBrake(report CycleReport) CycleReport {
	if c.cfg.PWM != nil {
		_ = c.cfg.PWM.WriteDuties(0, 0, 0)
	}
	return report
}

func (c *Controller) runCurrentCalibration(snap sampling.Snapshot, report CycleReport) CycleReport {
	sweep := c.cfg.CurrentCalSweep
	if sweep == nil {
		c.disablePWM()
		return report
	}
	done := sweep.Step(snap.Ia, snap.Ib, snap.Ic)
	if c.cfg.PWM != nil {
		_ = c.cfg.PWM.WriteDuties(0.5, 0.5, 0.5)
	}
	if done && c.cfg.ModeMachine != nil {
		c.cfg.ModeMachine.Stop(c.cfg.FaultManager)
	}
	return report
}

func (c *Controller) runInductanceSweep(snap sampling.Snapshot, report CycleReport) CycleReport {
	sweep := c.cfg.InductanceSweep
	if sweep == nil {
		c.disablePWM()
		return report
	}
	voltageCmd, done := sweep.Step(snap.Ia, c.cfg.DT)
	res := c.writeOpenLoopVoltage(voltageCmd, 0, 0, snap)
	report.FOC = res
	if done && c.cfg.ModeMachine != nil {
		c.cfg.ModeMachine.Stop(c.cfg.FaultManager)
	}
	return report
}

func (c *Controller) runEncoderCalibration(snap sampling.Snapshot, posEstimate position.Estimate, report CycleReport) CycleReport {
	sweep := c.cfg.EncoderCalSweep
	if sweep == nil {
		c.disablePWM()
		return report
	}
	commandedAngle, done := sweep.Step(posEstimate.ElectricalTheta)
	focResult := c.cfg.CurrentLoop.Step(
		snap.Ia, snap.Ib, snap.Ic, snap.BusVoltage, commandedAngle,
		sweep.CurrentCmd, 0, c.cfg.DT,
	)
	report.FOC = focResult
	if c.cfg.PWM != nil {
		_ = c.cfg.PWM.WriteDuties(focResult.DutyA, focResult.DutyB, focResult.DutyC)
	}
	if done && c.cfg.ModeMachine != nil {
		c.cfg.ModeMachine.Stop(c.cfg.FaultManager)
	}
	return report
}

func (c *Controller) disablePWM() {
	if c.cfg.PWM != nil {
		_ = c.cfg.PWM.DisableAll()
	}
}

const twoPi = 6.2831855

// wrapTheta keeps the open-loop ramp's accumulated angle in [0, 2*pi),
// matching position.Estimate.ElectricalTheta's convention.
func wrapTheta(a float32) float32 {
	for a >= twoPi {
		a -= twoPi
	}
	for a < 0 {
		a += twoPi
	}
	return a
}
