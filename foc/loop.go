package foc

import "github.com/orsinium-labs/tinymath"

// CurrentLoop runs the per-cycle FOC pipeline of §4.4: Clarke, Park,
// two PI controllers with a shared voltage-magnitude clamp, inverse
// Park/Clarke, SVPWM, and duty output. One instance owns the Id/Iq
// controllers and the last-cycle telemetry; it is constructed once at
// boot per source/motor and stepped once per PWM period.
type CurrentLoop struct {
	IdPI, IqPI PIController
	DMin, DMax float32
	Torque     TorqueModel

	// SvmK scales V_bus to the max achievable voltage magnitude under
	// SVPWM (≈1/sqrt(3)); kept configurable rather than hardcoded so a
	// reduced-bus-utilization margin can be dialed in.
	SvmK float32

	// Telemetry from the last cycle.
	Vd, Vq, Id, Iq, TorqueNm float32
}

// Result is the per-cycle duty output and telemetry snapshot.
type Result struct {
	DutyA, DutyB, DutyC     float32
	Vd, Vq, Id, Iq, TorqueNm float32
}

// Step runs one ISR cycle of the current loop.
func (l *CurrentLoop) Step(ia, ib, ic, busVoltage, electricalTheta, idRef, iqRef, dt float32) Result {
	alpha, beta := ClarkeTransform(ia, ib, ic)
	sin, cos := SinCos(electricalTheta)
	id, iq := ParkTransform(alpha, beta, sin, cos)

	maxV := busVoltage * l.SvmK

	// Voltage magnitude clamp with Vd priority: Vd gets the full maxV
	// range, Vq is cut back to whatever headroom remains under maxV once
	// Vd is known. Each PI is clamped against this same per-cycle bound
	// (not a static boot-time Min/Max), so its anti-windup freeze always
	// matches the limit actually being enforced.
	vd := l.IdPI.StepWithLimits(idRef-id, dt, -maxV, maxV)

	remaining := maxV*maxV - vd*vd
	if remaining < 0 {
		remaining = 0
	}
	vqLimit := tinymath.Sqrt(remaining)
	vq := l.IqPI.StepWithLimits(iqRef-iq, dt, -vqLimit, vqLimit)

	valpha, vbeta := InverseParkTransform(vd, vq, sin, cos)
	va, vb, vc := InverseClarkeTransform(valpha, vbeta)
	da, db, dc := DutiesFromPhaseVoltages(va, vb, vc, busVoltage, l.DMin, l.DMax)

	torqueNm := l.Torque.Torque(iq)

	l.Vd, l.Vq, l.Id, l.Iq, l.TorqueNm = vd, vq, id, iq, torqueNm

	return Result{
		DutyA: da, DutyB: db, DutyC: dc,
		Vd: vd, Vq: vq, Id: id, Iq: iq, TorqueNm: torqueNm,
	}
}

func hypot(a, b float32) float32 {
	return tinymath.Sqrt(a*a + b*b)
}
