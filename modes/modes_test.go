package modes

import "testing"

func TestNewMachineStartsStopped(t *testing.T) {
	m := NewMachine(1, 2)
	if m.State() != Stopped {
		t.Fatalf("state = %v, want Stopped", m.State())
	}
}

func TestEnterActiveRejectsDirtyConfig(t *testing.T) {
	m := NewMachine(1, 2)
	err := m.EnterActive(Current, EntryChecklist{ConfigDirty: true, MotorConfigured: true, VoltageInRange: true})
	if err == nil {
		t.Fatal("expected error for dirty config")
	}
	if m.State() != Stopped {
		t.Errorf("state = %v, want Stopped (rejected entry doesn't move state)", m.State())
	}
}

func TestEnterActiveFaultsOnMissingPosition(t *testing.T) {
	m := NewMachine(1, 2)
	err := m.EnterActive(Position, EntryChecklist{MotorConfigured: true, VoltageInRange: true, PositionValid: false})
	if err == nil {
		t.Fatal("expected error")
	}
	if m.State() != Fault {
		t.Errorf("state = %v, want Fault", m.State())
	}
}

func TestEnterActiveStartOutsideLimitFaults(t *testing.T) {
	m := NewMachine(1, 2)
	err := m.EnterActive(Position, EntryChecklist{
		MotorConfigured: true, VoltageInRange: true, PositionValid: true,
		PositionError: 10, StartLimit: 1,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if m.State() != Fault {
		t.Errorf("state = %v, want Fault", m.State())
	}
}

func TestEnterActiveThenAdvanceEnabling(t *testing.T) {
	m := NewMachine(1, 2)
	if err := m.EnterActive(Current, EntryChecklist{MotorConfigured: true, VoltageInRange: true}); err != nil {
		t.Fatalf("EnterActive: %v", err)
	}
	if m.State() != Enabling {
		t.Fatalf("state = %v, want Enabling", m.State())
	}
	if err := m.AdvanceEnabling(false); err != nil {
		t.Fatalf("AdvanceEnabling: %v", err)
	}
	if m.State() != Current {
		t.Errorf("state = %v, want Current", m.State())
	}
}

func TestAdvanceEnablingFaultsOnDriverPin(t *testing.T) {
	m := NewMachine(1, 2)
	m.EnterActive(Current, EntryChecklist{MotorConfigured: true, VoltageInRange: true})
	err := m.AdvanceEnabling(true)
	if err == nil {
		t.Fatal("expected error")
	}
	if m.State() != Fault {
		t.Errorf("state = %v, want Fault", m.State())
	}
}

func TestOnFaultFromAnyState(t *testing.T) {
	m := NewMachine(1, 2)
	m.EnterActive(Current, EntryChecklist{MotorConfigured: true, VoltageInRange: true})
	m.AdvanceEnabling(false)
	m.OnFault()
	if m.State() != Fault {
		t.Fatalf("state = %v, want Fault", m.State())
	}
}

func TestStopClearsFault(t *testing.T) {
	m := NewMachine(1, 2)
	m.OnFault()
	m.Stop(nil)
	if m.State() != Stopped {
		t.Errorf("state = %v, want Stopped", m.State())
	}
}

func TestWatchdogDegradesToZeroVelocityThenStopped(t *testing.T) {
	m := NewMachine(1, 2)
	m.EnterActive(Current, EntryChecklist{MotorConfigured: true, VoltageInRange: true})
	m.AdvanceEnabling(false)

	m.Tick(1.5)
	if m.State() != ZeroVelocity {
		t.Fatalf("state = %v, want ZeroVelocity after exceeding timeout", m.State())
	}

	m.Tick(2.5)
	if m.State() != Stopped {
		t.Errorf("state = %v, want Stopped after exceeding stopTimeout", m.State())
	}
}

func TestTouchResetsWatchdog(t *testing.T) {
	m := NewMachine(1, 2)
	m.EnterActive(Current, EntryChecklist{MotorConfigured: true, VoltageInRange: true})
	m.AdvanceEnabling(false)

	m.Tick(0.9)
	m.Touch()
	m.Tick(0.9)
	if m.State() != Current {
		t.Errorf("state = %v, want Current (watchdog reset by Touch)", m.State())
	}
}

func TestIntegratorShouldResetOnGainChange(t *testing.T) {
	m := NewMachine(1, 2)
	m.EnterActive(Current, EntryChecklist{MotorConfigured: true, VoltageInRange: true})
	m.AdvanceEnabling(false)
	m.SwitchActive(Current, 5)
	if m.IntegratorShouldReset(5) {
		t.Error("expected no reset when ki unchanged")
	}
	if !m.IntegratorShouldReset(6) {
		t.Error("expected reset when ki changed")
	}
}

func TestStateString(t *testing.T) {
	if Position.String() != "position" {
		t.Errorf("String() = %q", Position.String())
	}
}

func TestRequiresThetaExemptsOpenLoopModes(t *testing.T) {
	exempt := []State{Stopped, Fault, Enabling, Brake, Voltage, VoltageFoc, CalibratingCurrent, MeasureInductance}
	for _, s := range exempt {
		if s.RequiresTheta() {
			t.Errorf("%v.RequiresTheta() = true, want false", s)
		}
	}
	needed := []State{Position, PositionHold, PositionWait, PositionTimeout, ZeroVelocity, StayWithin, Homing, Current, VoltageDq, CalibratingEncoder}
	for _, s := range needed {
		if !s.RequiresTheta() {
			t.Errorf("%v.RequiresTheta() = false, want true", s)
		}
	}
}
