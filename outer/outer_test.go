package outer

import (
	"testing"

	"bldcservo/foc"
)

func testTorqueModel() *foc.TorqueModel {
	return &foc.TorqueModel{Kt: 0.1, CurrentCutoffA: 10, TorqueScale: 1, CurrentScale: 1}
}

func TestRateLimiterPrimesAtFirstTarget(t *testing.T) {
	r := RateLimiter{MaxRate: 10}
	got := r.Step(100, 0.1)
	if got != 100 {
		t.Errorf("first call should prime at the target, got %v want 100", got)
	}
}

func TestRateLimiterRampsTowardTarget(t *testing.T) {
	r := RateLimiter{MaxRate: 10}
	r.value = 5
	r.primed = true
	got := r.Step(100, 0.1)
	if got != 6 {
		t.Errorf("got %v, want 6 (ramped by MaxRate*dt=1 from primed value 5)", got)
	}
}

func TestRateLimiterHoldsOnNaN(t *testing.T) {
	r := RateLimiter{MaxRate: 10}
	r.Step(5, 0.1)
	nan := f32nan()
	got := r.Step(nan, 0.1)
	if got != 5 {
		t.Errorf("got %v, want 5 (hold on NaN target)", got)
	}
}

func TestLoopVelocityOnlyIgnoresPositionError(t *testing.T) {
	l := NewLoop(1, 1, 0, 100, 1000, testTorqueModel())
	// posCmd is ignored (NaN internally) regardless of the huge position
	// error between measuredPos=1000 and the rate-limited target, so the
	// whole torque command comes from Kd*(velCmd-measuredVel) = 1*(1-0) = 1.
	out := l.VelocityOutput(1000, 0, 1, 0, 0, Limits{MaxTorque: 100}, 1, 0.001)
	if out.Clamped {
		t.Fatalf("unexpected clamp: %+v", out)
	}
	if out.TorqueCmd != 1 {
		t.Errorf("TorqueCmd = %v, want 1", out.TorqueCmd)
	}
}

func TestLoopClampsAndFreezesIntegral(t *testing.T) {
	l := NewLoop(1, 0, 10, 100, 1000, testTorqueModel())
	limits := Limits{MaxTorque: 1}
	for i := 0; i < 50; i++ {
		l.Step(1000, 0, 0, 0, 0, 0, limits, 1, 0.001)
	}
	if l.integral != 0 {
		t.Errorf("expected integral frozen at 0 while clamped, got %v", l.integral)
	}
}

func TestZeroVelocityOutputHoldsCurrentPosition(t *testing.T) {
	l := NewLoop(1, 1, 0, 100, 1000, testTorqueModel())
	out := l.ZeroVelocityOutput(42, 0, 0, Limits{MaxTorque: 100}, 1, 0.001)
	if out.TorqueCmd != 0 {
		t.Errorf("expected zero torque when velocity already zero at current position, got %v", out.TorqueCmd)
	}
}

func TestStayWithinCoastsInsideBand(t *testing.T) {
	l := NewLoop(1, 1, 0, 100, 1000, testTorqueModel())
	out := l.StayWithinOutput(5, 0, 0, 10, 0, Limits{MaxTorque: 100}, 1, 0.001)
	if out.TorqueCmd != 0 || out.IqRef != 0 {
		t.Errorf("expected coast inside band, got %+v", out)
	}
}

func TestStayWithinActsOutsideBand(t *testing.T) {
	l := NewLoop(1, 1, 0, 100, 1000, testTorqueModel())
	out := l.StayWithinOutput(20, 0, 0, 10, 0, Limits{MaxTorque: 100}, 1, 0.001)
	if out.TorqueCmd >= 0 {
		t.Errorf("expected corrective negative torque above band, got %v", out.TorqueCmd)
	}
}

func TestTorqueOutputBypassesLoop(t *testing.T) {
	l := NewLoop(1, 1, 0, 100, 1000, testTorqueModel())
	out := l.TorqueOutput(2)
	if out.TorqueCmd != 2 {
		t.Errorf("TorqueCmd = %v, want 2", out.TorqueCmd)
	}
}

func TestFieldWeakeningDisabledByDefault(t *testing.T) {
	l := NewLoop(1, 1, 0, 100, 1000, testTorqueModel())
	id := l.fieldWeakeningID(5, 1000, Limits{MaxVoltage: 10})
	if id != 0 {
		t.Errorf("expected 0 Id when FieldWeakening.Enabled is false, got %v", id)
	}
}

func TestFieldWeakeningDeratesAboveVoltageLimit(t *testing.T) {
	l := NewLoop(1, 1, 0, 100, 1000, testTorqueModel())
	l.FieldWeakening = FieldWeakening{Enabled: true, BackEMFConstant: 0.1, Resistance: 1, Inductance: 0.001}
	id := l.fieldWeakeningID(0, 2000, Limits{MaxVoltage: 10})
	if id >= 0 {
		t.Errorf("expected negative Id above the voltage limit, got %v", id)
	}
}

func TestInductanceSweepMeasuresL(t *testing.T) {
	s := InductanceSweep{PulseVoltage: 1, PulseCycles: 10}
	current := float32(0)
	for i := 0; i < 9; i++ {
		_, done := s.Step(current, 0.001)
		if done {
			t.Fatalf("sweep finished early at step %d", i)
		}
		current += 0.001
	}
	_, done := s.Step(current, 0.001)
	if !done {
		t.Fatal("expected sweep to finish on the last cycle")
	}
	if s.Result() <= 0 {
		t.Errorf("expected positive measured inductance, got %v", s.Result())
	}
}

func TestCurrentCalibrationSweepAverages(t *testing.T) {
	s := CurrentCalibrationSweep{SampleCount: 4}
	s.Step(10, 20, 30)
	s.Step(10, 20, 30)
	s.Step(10, 20, 30)
	done := s.Step(10, 20, 30)
	if !done {
		t.Fatal("expected done after SampleCount samples")
	}
	a, b, c := s.Offsets()
	if a != 10 || b != 20 || c != 30 {
		t.Errorf("offsets = %v,%v,%v want 10,20,30", a, b, c)
	}
}

func TestEncoderCalibrationSweepBuildsTable(t *testing.T) {
	s := NewEncoderCalibrationSweep(4, 2, 1.0)
	for !s.done {
		_, _ = s.Step(0)
	}
	table := s.Table()
	if len(table) != 4 {
		t.Fatalf("table length = %d, want 4", len(table))
	}
}
