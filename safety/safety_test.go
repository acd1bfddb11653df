package safety

import "testing"

func testLimits() Limits {
	return Limits{
		VMin: 10, VMax: 30, VoltageHysteresis: 0.2,
		FETTempMax: 80, FETTempDerateStart: 60, MotorTempMax: 100,
		ISROverrunFraction: 0.9,
	}
}

func TestManagerStartsClear(t *testing.T) {
	m := NewManager(testLimits())
	if tripped, _ := m.Tripped(); tripped {
		t.Fatal("expected manager to start untripped")
	}
}

func TestDriverFaultPinHasTopPriority(t *testing.T) {
	m := NewManager(testLimits())
	m.Check(Inputs{DriverFaultPinAsserted: true, BusVoltage: 1000})
	tripped, code := m.Tripped()
	if !tripped || code != FaultMotorDriverFault {
		t.Errorf("tripped=%v code=%v, want MotorDriverFault", tripped, code)
	}
}

func TestOverVoltageLatches(t *testing.T) {
	m := NewManager(testLimits())
	m.Check(Inputs{BusVoltage: 35})
	tripped, code := m.Tripped()
	if !tripped || code != FaultOverVoltage {
		t.Errorf("tripped=%v code=%v, want OverVoltage", tripped, code)
	}
}

func TestUnderVoltageLatches(t *testing.T) {
	m := NewManager(testLimits())
	m.Check(Inputs{BusVoltage: 5})
	tripped, code := m.Tripped()
	if !tripped || code != FaultUnderVoltage {
		t.Errorf("tripped=%v code=%v, want UnderVoltage", tripped, code)
	}
}

func TestStaysLatchedUntilClear(t *testing.T) {
	m := NewManager(testLimits())
	m.Check(Inputs{BusVoltage: 35})
	m.Check(Inputs{BusVoltage: 20}) // condition cleared, but still latched
	tripped, _ := m.Tripped()
	if !tripped {
		t.Fatal("expected fault to remain latched until explicit Clear")
	}
	m.Clear()
	m.Check(Inputs{BusVoltage: 20})
	if tripped, _ := m.Tripped(); tripped {
		t.Fatal("expected manager to be clear after Clear and a nominal cycle")
	}
}

func TestEncoderFaultWhenRequiredAndNoneActive(t *testing.T) {
	m := NewManager(testLimits())
	m.Check(Inputs{BusVoltage: 20, EncoderSourcesRequired: true, EncoderSourcesActive: 0})
	tripped, code := m.Tripped()
	if !tripped || code != FaultEncoderFault {
		t.Errorf("tripped=%v code=%v, want EncoderFault", tripped, code)
	}
}

func TestTorqueDerateBand(t *testing.T) {
	m := NewManager(testLimits())
	if got := m.TorqueDerate(50); got != 1 {
		t.Errorf("below derate start = %v, want 1", got)
	}
	if got := m.TorqueDerate(90); got != 0 {
		t.Errorf("above max = %v, want 0", got)
	}
	mid := m.TorqueDerate(70)
	if mid <= 0 || mid >= 1 {
		t.Errorf("mid-band derate = %v, want strictly between 0 and 1", mid)
	}
}

func TestFaultErrorString(t *testing.T) {
	f := Fault{Code: FaultOverVoltage}
	if f.Error() != "over voltage" {
		t.Errorf("Error() = %q", f.Error())
	}
}
