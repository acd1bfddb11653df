package sampling

import (
	"testing"

	"bldcservo/core"
)

type fakeADC struct {
	values map[core.ADCChannel]uint16
	seq    []core.ADCChannel
}

func (f *fakeADC) ConfigureInjectedSequence(channels []core.ADCChannel) error {
	f.seq = channels
	return nil
}

func (f *fakeADC) ReadInjected(ch core.ADCChannel) uint16 {
	return f.values[ch]
}

func testChannels() Channels {
	return Channels{PhaseA: 1, PhaseB: 2, PhaseC: 3, BusVoltage: 4, FETTemp: 5}
}

func TestSamplerAppliesOffsetAndScale(t *testing.T) {
	fake := &fakeADC{values: map[core.ADCChannel]uint16{1: 2100, 2: 2000, 3: 1900, 4: 1000, 5: 500}}
	core.SetInjectedADCDriver(fake)

	cal := Calibration{PhaseOffsetA: 2000, PhaseOffsetB: 2000, PhaseOffsetC: 2000, CurrentScale: 0.01, VSenseADCScale: 0.1, FilterCutoffHz: 200}
	s, err := NewSampler(testChannels(), cal, 0.0001)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}

	snap := s.Sample()
	if diff := snap.Ia - 1.0; diff > 1e-4 || diff < -1e-4 {
		t.Errorf("Ia = %v, want 1.0", snap.Ia)
	}
	if diff := snap.Ic - (-1.0); diff > 1e-4 || diff < -1e-4 {
		t.Errorf("Ic = %v, want -1.0", snap.Ic)
	}
	if diff := snap.BusVoltage - 100; diff > 1e-3 || diff < -1e-3 {
		t.Errorf("BusVoltage = %v, want 100 (primed on first sample)", snap.BusVoltage)
	}
}

func TestSamplerFiltersBusVoltageGradually(t *testing.T) {
	fake := &fakeADC{values: map[core.ADCChannel]uint16{1: 2000, 2: 2000, 3: 2000, 4: 1000, 5: 500}}
	core.SetInjectedADCDriver(fake)

	cal := Calibration{CurrentScale: 0.01, VSenseADCScale: 0.1, FilterCutoffHz: 50}
	s, err := NewSampler(testChannels(), cal, 0.0001)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	first := s.Sample().BusVoltage

	fake.values[4] = 2000 // step to 200V
	second := s.Sample().BusVoltage

	if second <= first || second >= 200 {
		t.Errorf("expected filtered step between %v and 200, got %v", first, second)
	}
}

func TestSamplerPhaseCurrentsNotFiltered(t *testing.T) {
	fake := &fakeADC{values: map[core.ADCChannel]uint16{1: 2000, 2: 2000, 3: 2000, 4: 1000, 5: 500}}
	core.SetInjectedADCDriver(fake)

	cal := Calibration{PhaseOffsetA: 2000, CurrentScale: 0.01, VSenseADCScale: 0.1, FilterCutoffHz: 50}
	s, err := NewSampler(testChannels(), cal, 0.0001)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	s.Sample()

	fake.values[1] = 3000 // big step on phase A
	snap := s.Sample()
	if diff := snap.Ia - 10.0; diff > 1e-4 || diff < -1e-4 {
		t.Errorf("Ia should track the raw step immediately, got %v", snap.Ia)
	}
	if snap.IaFiltered >= snap.Ia {
		t.Errorf("IaFiltered should lag the raw step, got filtered=%v raw=%v", snap.IaFiltered, snap.Ia)
	}
}

func TestCalibratePhaseOffsetsAverages(t *testing.T) {
	fake := &fakeADC{values: map[core.ADCChannel]uint16{1: 2048, 2: 2050, 3: 2046}}
	core.SetInjectedADCDriver(fake)

	a, b, c := CalibratePhaseOffsets(testChannels(), 10)
	if a != 2048 || b != 2050 || c != 2046 {
		t.Errorf("offsets = %v,%v,%v, want 2048,2050,2046", a, b, c)
	}
}
