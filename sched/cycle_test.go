package sched

import (
	"testing"

	"bldcservo/encoder"
	"bldcservo/foc"
	"bldcservo/modes"
	"bldcservo/outer"
	"bldcservo/position"
	"bldcservo/safety"
	"bldcservo/sampling"
)

type fakeSampler struct {
	snap sampling.Snapshot
}

func (f *fakeSampler) Sample() sampling.Snapshot { return f.snap }

type fakePWM struct {
	lastA, lastB, lastC float32
	disabled            bool
}

func (p *fakePWM) WriteDuties(a, b, c float32) error {
	p.lastA, p.lastB, p.lastC = a, b, c
	return nil
}

func (p *fakePWM) DisableAll() error {
	p.disabled = true
	return nil
}

type fakeRotorSource struct {
	sample encoder.RawSample
}

func (s *fakeRotorSource) Name() string              { return "rotor" }
func (s *fakeRotorSource) Latest() encoder.RawSample { return s.sample }
func (s *fakeRotorSource) CPR() uint32               { return 1 << 14 }
func (s *fakeRotorSource) IsReference() bool         { return true }

func buildControllerWithSource(t *testing.T, pwm *fakePWM, sampler *fakeSampler, src *fakeRotorSource) *Controller {
	t.Helper()
	fusion := position.NewFusion([]position.SourceConfig{{Source: src, Sign: 1, PoleCount: 1, GearRatio: 1}}, 2000, 0.3)

	torqueModel := &foc.TorqueModel{Kt: 0.1, CurrentCutoffA: 10, TorqueScale: 1, CurrentScale: 1}
	currentLoop := &foc.CurrentLoop{
		IdPI: foc.PIController{Kp: 1, Ki: 10, Min: -10, Max: 10},
		IqPI: foc.PIController{Kp: 1, Ki: 10, Min: -10, Max: 10},
		DMin: 0, DMax: 1, SvmK: 0.577,
		Torque: *torqueModel,
	}
	outerLoop := outer.NewLoop(1, 1, 0, 100, 1000, torqueModel)
	faultManager := safety.NewManager(safety.Limits{VMin: 5, VMax: 60, VoltageHysteresis: 0.2, FETTempMax: 90, FETTempDerateStart: 70, MotorTempMax: 100, ISROverrunFraction: 0.9})
	machine := modes.NewMachine(1, 2)

	cfg := CycleConfig{
		Sampler: sampler, Fusion: fusion, CurrentLoop: currentLoop, OuterLoop: outerLoop,
		FaultManager: faultManager, ModeMachine: machine, PWM: pwm, DT: 0.0001,
		PoleCount: 1, EncoderSourcesTotal: 1,
	}
	c := NewController(cfg, 1)
	c.ReportActiveEncoders(1)
	return c
}

func buildController(t *testing.T, pwm *fakePWM, sampler *fakeSampler) *Controller {
	t.Helper()
	src := &fakeRotorSource{sample: encoder.RawSample{Value: 0, Nonce: 1, Active: true}}
	return buildControllerWithSource(t, pwm, sampler, src)
}

func TestRunCycleStaysFaultFreeWithValidPosition(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{Ia: 0, Ib: 0, Ic: 0, BusVoltage: 24, FETTempC: 40}}
	src := &fakeRotorSource{sample: encoder.RawSample{Value: 0, Nonce: 1, Active: true}}
	c := buildControllerWithSource(t, pwm, sampler, src)

	var report CycleReport
	for i := 0; i < 50; i++ {
		src.sample.Nonce++
		report = c.RunCycle()
	}
	if report.Faulted {
		t.Fatalf("unexpected fault: %v", report.Fault)
	}
	if !report.Position.Valid {
		t.Fatalf("expected valid position estimate")
	}
}

func TestRunCycleFaultsOnOverVoltage(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{BusVoltage: 100}}
	c := buildController(t, pwm, sampler)

	report := c.RunCycle()
	if !report.Faulted {
		t.Fatal("expected fault on over voltage")
	}
	if !pwm.disabled {
		t.Error("expected PWM disabled on fault")
	}
}

func TestRunCycleHoldsOffWithoutValidPosition(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{BusVoltage: 24}}
	src := &fakeRotorSource{sample: encoder.RawSample{Active: false}}
	c := buildControllerWithSource(t, pwm, sampler, src)
	c.ReportActiveEncoders(0)

	report := c.RunCycle()
	if report.Position.Valid {
		t.Fatal("expected invalid position when the only source is inactive")
	}
	if !pwm.disabled {
		t.Error("expected PWM disabled when position is invalid")
	}
}

// enterMode drives machine straight from Stopped through Enabling into
// target, bypassing the real enable delay (driverFaultPinAsserted=false).
func enterMode(t *testing.T, m *modes.Machine, target modes.State) {
	t.Helper()
	if err := m.EnterActive(target, modes.EntryChecklist{MotorConfigured: true, VoltageInRange: true, PositionValid: true}); err != nil {
		t.Fatalf("EnterActive(%v) = %v", target, err)
	}
	if err := m.AdvanceEnabling(false); err != nil {
		t.Fatalf("AdvanceEnabling = %v", err)
	}
	if m.State() != target {
		t.Fatalf("state = %v, want %v", m.State(), target)
	}
}

func TestRunCycleBrakeShortsLowSidesAtZeroDuty(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{BusVoltage: 24}}
	c := buildController(t, pwm, sampler)
	enterMode(t, c.cfg.ModeMachine, modes.Brake)

	c.RunCycle()
	if pwm.lastA != 0 || pwm.lastB != 0 || pwm.lastC != 0 {
		t.Errorf("duties = %v,%v,%v, want 0,0,0", pwm.lastA, pwm.lastB, pwm.lastC)
	}
	if pwm.disabled {
		t.Error("Brake should drive zero duty, not disable the bridge")
	}
}

func TestRunCycleVoltageRunsWithInvalidPosition(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{BusVoltage: 24}}
	src := &fakeRotorSource{sample: encoder.RawSample{Active: false}}
	c := buildControllerWithSource(t, pwm, sampler, src)
	c.ReportActiveEncoders(1) // background poll count, independent of this cycle's fusion validity
	enterMode(t, c.cfg.ModeMachine, modes.Voltage)
	c.SetCommand(2, 0, 0, outer.Limits{})

	report := c.RunCycle()
	if report.Faulted {
		t.Fatalf("unexpected fault: %v", report.Fault)
	}
	if pwm.disabled {
		t.Error("Voltage mode must still drive PWM when theta is invalid")
	}
}

func TestRunCycleCurrentModeBypassesOuterLoop(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{BusVoltage: 24}}
	c := buildController(t, pwm, sampler)
	enterMode(t, c.cfg.ModeMachine, modes.Current)
	c.SetCommand(1, 0, 0, outer.Limits{})

	report := c.RunCycle()
	if report.Outer != (outer.Output{}) {
		t.Errorf("expected Outer left zero-valued in Current mode, got %+v", report.Outer)
	}
	if report.FOC.Id != report.FOC.Id { // sanity: not NaN
		t.Errorf("unexpected NaN Id")
	}
}

func TestRunCycleInductanceSweepCompletesAndStops(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{BusVoltage: 24}}
	c := buildController(t, pwm, sampler)
	c.cfg.InductanceSweep = &outer.InductanceSweep{PulseVoltage: 1, PulseCycles: 3}
	enterMode(t, c.cfg.ModeMachine, modes.MeasureInductance)

	for i := 0; i < 5; i++ {
		c.RunCycle()
	}
	if c.cfg.ModeMachine.State() != modes.Stopped {
		t.Errorf("state = %v, want Stopped after sweep completion", c.cfg.ModeMachine.State())
	}
}

func TestRunCycleCurrentCalibrationCompletesAndStops(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{BusVoltage: 24, Ia: 1, Ib: 2, Ic: 3}}
	c := buildController(t, pwm, sampler)
	c.cfg.CurrentCalSweep = &outer.CurrentCalibrationSweep{SampleCount: 3}
	enterMode(t, c.cfg.ModeMachine, modes.CalibratingCurrent)

	for i := 0; i < 5; i++ {
		c.RunCycle()
	}
	if c.cfg.ModeMachine.State() != modes.Stopped {
		t.Errorf("state = %v, want Stopped after sweep completion", c.cfg.ModeMachine.State())
	}
	a, b, cc := c.cfg.CurrentCalSweep.Offsets()
	if a != 1 || b != 2 || cc != 3 {
		t.Errorf("offsets = %v,%v,%v, want 1,2,3", a, b, cc)
	}
}

func TestRunCycleZeroVelocityHoldsPosition(t *testing.T) {
	pwm := &fakePWM{}
	sampler := &fakeSampler{snap: sampling.Snapshot{BusVoltage: 24}}
	c := buildController(t, pwm, sampler)
	enterMode(t, c.cfg.ModeMachine, modes.ZeroVelocity)

	report := c.RunCycle()
	if report.Faulted {
		t.Fatalf("unexpected fault: %v", report.Fault)
	}
	if pwm.disabled {
		t.Error("expected PWM active in ZeroVelocity")
	}
}
