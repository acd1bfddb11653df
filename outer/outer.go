// Package outer implements the outer control loops (C5): position and
// velocity regulation, torque pass-through, and the deterministic
// open-loop calibration sweeps, all producing Id_ref/Iq_ref for the FOC
// current loop.
package outer

import "bldcservo/foc"

// RateLimiter is a first-order slew limiter used on the commanded
// position target, grounded on the same "ramp toward target, never
// jump" shape as a queued-move acceleration profile.
type RateLimiter struct {
	MaxRate float32 // units/s
	value   float32
	primed  bool
}

// Step advances the limiter's output toward target by at most
// MaxRate*dt. A NaN target means "no position target"; Step then holds
// at the current output without change.
func (r *RateLimiter) Step(target, dt float32) float32 {
	if target != target { // NaN check without importing math
		return r.value
	}
	if !r.primed {
		r.value = target
		r.primed = true
		return r.value
	}
	maxStep := r.MaxRate * dt
	delta := target - r.value
	if delta > maxStep {
		delta = maxStep
	} else if delta < -maxStep {
		delta = -maxStep
	}
	r.value += delta
	return r.value
}

// Limits bounds the torque command produced by the position-velocity loop.
type Limits struct {
	MaxTorque   float32
	MaxVelocity float32 // 0 disables the check
	MaxPosition float32 // 0 disables the check
	MinPosition float32
	MaxVoltage  float32 // 0 disables field weakening entirely
}

// FieldWeakening holds the motor electrical constants needed to derate
// Id_ref once the back-EMF at the measured electrical speed threatens
// to exceed the available bus voltage.
type FieldWeakening struct {
	Enabled         bool
	BackEMFConstant float32 // V per rad/s electrical
	Resistance      float32 // ohms, phase
	Inductance      float32 // H, phase
}

// Loop is the position-velocity PID described in the outer-loop
// contract: e = P-P*, edot = V-V*, integral frozen whenever the output
// is clamped by any limit.
type Loop struct {
	Kp, Kd, Ki float32
	ILimit     float32

	FieldWeakening FieldWeakening

	rateLimiter RateLimiter
	integral    float32
	torqueModel *foc.TorqueModel
}

// NewLoop builds a position-velocity loop using torqueModel to convert
// the commanded torque into Iq_ref.
func NewLoop(kp, kd, ki, iLimit, maxDesiredRate float32, torqueModel *foc.TorqueModel) *Loop {
	return &Loop{
		Kp: kp, Kd: kd, Ki: ki, ILimit: iLimit,
		rateLimiter: RateLimiter{MaxRate: maxDesiredRate},
		torqueModel: torqueModel,
	}
}

// Output is the per-cycle result of the outer loop.
type Output struct {
	IdRef, IqRef float32
	TorqueCmd    float32
	Clamped      bool
}

// Step runs one position-velocity cycle. posCmd may be NaN to mean
// "velocity only". electricalOmega (rad/s electrical) feeds the
// field-weakening law; sign flips torque direction for reversed wiring.
func (l *Loop) Step(measuredPos, measuredVel, posCmd, velCmd, feedforwardTorque, electricalOmega float32, limits Limits, sign, dt float32) Output {
	limitedPos := l.rateLimiter.Step(posCmd, dt)

	// Gains are configured as positive restoring terms, so the error is
	// taken as setpoint-minus-measured even though the raw position
	// error the rest of the pipeline reports is measured-minus-setpoint.
	var posError float32
	if posCmd == posCmd { // not NaN
		posError = limitedPos - measuredPos
	}
	velError := velCmd - measuredVel

	raw := sign * (l.Kp*posError + l.Kd*velError + l.Ki*l.integral + feedforwardTorque)

	torque, clamped := clampTorque(raw, limits)
	if !clamped {
		l.integral += velError * dt
		if l.integral > l.ILimit {
			l.integral = l.ILimit
		} else if l.integral < -l.ILimit {
			l.integral = -l.ILimit
		}
	}

	iqRef := float32(0)
	if l.torqueModel != nil {
		iqRef = l.torqueModel.IqForTorque(torque)
	}

	idRef := l.fieldWeakeningID(iqRef, electricalOmega, limits)

	return Output{IdRef: idRef, IqRef: iqRef, TorqueCmd: torque, Clamped: clamped}
}

// Reset clears the integrator and rate limiter, used on mode entry.
func (l *Loop) Reset() {
	l.integral = 0
	l.rateLimiter.primed = false
}

func clampTorque(t float32, limits Limits) (out float32, clamped bool) {
	max := limits.MaxTorque
	if max <= 0 {
		return t, false
	}
	if t > max {
		return max, true
	}
	if t < -max {
		return -max, true
	}
	return t, false
}

// fieldWeakeningID derates the quadrature-axis voltage headroom into a
// negative Id once the estimated back-EMF plus resistive drop exceeds
// the voltage limit, using the standard first-order approximation
// Vd ≈ -omega*L*Iq to solve for the Id that brings the magnitude back
// within limits.MaxVoltage.
func (l *Loop) fieldWeakeningID(iqRef, electricalOmega float32, limits Limits) float32 {
	fw := l.FieldWeakening
	if !fw.Enabled || limits.MaxVoltage <= 0 || fw.Inductance == 0 {
		return 0
	}
	omega := electricalOmega
	if omega < 0 {
		omega = -omega
	}

	vq := iqRef*fw.Resistance + fw.BackEMFConstant*omega
	if vq <= limits.MaxVoltage {
		return 0
	}
	deficit := vq - limits.MaxVoltage
	id := -deficit / (omega * fw.Inductance)
	return id
}

// VelocityOutput runs the velocity-only mode: P* tracks measured
// position exactly, so only the velocity error contributes.
func (l *Loop) VelocityOutput(measuredPos, measuredVel, velCmd, feedforwardTorque, electricalOmega float32, limits Limits, sign, dt float32) Output {
	return l.Step(measuredPos, measuredVel, f32nan(), velCmd, feedforwardTorque, electricalOmega, limits, sign, dt)
}

// ZeroVelocityOutput runs the stand-still regulator: V*=0, P* floats
// to the current measured position on each cycle (never accumulates
// position error against a stale target).
func (l *Loop) ZeroVelocityOutput(measuredPos, measuredVel, electricalOmega float32, limits Limits, sign, dt float32) Output {
	l.rateLimiter.value = measuredPos
	l.rateLimiter.primed = true
	return l.Step(measuredPos, measuredVel, measuredPos, 0, 0, electricalOmega, limits, sign, dt)
}

// TorqueOutput maps a commanded torque directly to Iq_ref with the
// integrator disabled, per the Torque mode contract.
func (l *Loop) TorqueOutput(torqueCmd float32) Output {
	iq := float32(0)
	if l.torqueModel != nil {
		iq = l.torqueModel.IqForTorque(torqueCmd)
	}
	return Output{IqRef: iq, TorqueCmd: torqueCmd}
}

// StayWithinOutput applies the position-velocity loop only when the
// measured position is outside [lo,hi]; otherwise the motor coasts.
func (l *Loop) StayWithinOutput(measuredPos, measuredVel, lo, hi, electricalOmega float32, limits Limits, sign, dt float32) Output {
	if measuredPos >= lo && measuredPos <= hi {
		l.Reset()
		return Output{}
	}
	target := hi
	if measuredPos < lo {
		target = lo
	}
	return l.Step(measuredPos, measuredVel, target, 0, 0, electricalOmega, limits, sign, dt)
}

func f32nan() float32 {
	var zero float32
	return zero / zero
}
