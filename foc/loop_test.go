package foc

import "testing"

func TestCurrentLoopIdleHoldsZeroTorque(t *testing.T) {
	l := &CurrentLoop{
		IdPI: PIController{Kp: 1, Ki: 50, Min: -24, Max: 24},
		IqPI: PIController{Kp: 1, Ki: 50, Min: -24, Max: 24},
		DMin: 0.02, DMax: 0.98,
		SvmK:   1 / 1.7320508,
		Torque: TorqueModel{Kt: 0.1, CurrentCutoffA: 10, TorqueScale: 1, CurrentScale: 1},
	}

	var res Result
	for i := 0; i < 10; i++ {
		res = l.Step(0, 0, 0, 24, 0, 0, 0, 1.0/30000)
	}

	if !approxEqual(res.Id, 0, 0.01) || !approxEqual(res.Iq, 0, 0.01) {
		t.Errorf("expected Id/Iq to settle near zero, got Id=%v Iq=%v", res.Id, res.Iq)
	}
	// Duties should be centered near 50% with no commanded voltage.
	if res.DutyA < 0.45 || res.DutyA > 0.55 {
		t.Errorf("DutyA = %v, expected near 0.5 with zero torque command", res.DutyA)
	}
}

func TestCurrentLoopClampsVoltageMagnitude(t *testing.T) {
	l := &CurrentLoop{
		IdPI: PIController{Kp: 1000, Ki: 0, Min: -1000, Max: 1000},
		IqPI: PIController{Kp: 1000, Ki: 0, Min: -1000, Max: 1000},
		DMin: 0, DMax: 1,
		SvmK:   1 / 1.7320508,
		Torque: TorqueModel{Kt: 0.1, CurrentCutoffA: 10, TorqueScale: 1, CurrentScale: 1},
	}

	res := l.Step(0, 0, 0, 24, 0, 100, 100, 1.0/30000)
	maxV := float32(24) * l.SvmK
	mag := hypot(res.Vd, res.Vq)
	if mag > maxV+1e-3 {
		t.Errorf("voltage magnitude %v exceeds clamp %v", mag, maxV)
	}
}
