// Package sampling implements the current/voltage sampling component
// (C3): it reads the PWM-triggered injected ADC conversions, applies
// calibration offsets and scale, and filters the slow channels.
package sampling

import "bldcservo/core"

// Channels maps the logical measurement channels onto the injected
// ADC's physical channel ids.
type Channels struct {
	PhaseA, PhaseB, PhaseC core.ADCChannel
	BusVoltage             core.ADCChannel
	FETTemp                core.ADCChannel
	MotorTemp              core.ADCChannel // 0 if not populated
	HasMotorTemp           bool
}

// Calibration holds the scale/offset constants applied to raw counts.
type Calibration struct {
	PhaseOffsetA, PhaseOffsetB, PhaseOffsetC float32 // raw counts, mean-subtracted
	CurrentScale                             float32 // amps per raw count
	VSenseADCScale                           float32 // volts per raw count
	TempScale                                float32 // degrees C per raw count
	TempOffset                               float32
	FilterCutoffHz                           float32
}

// Snapshot is the per-cycle C3 output, published into the control
// cycle before position/outer/FOC run.
type Snapshot struct {
	Ia, Ib, Ic float32 // amps, unfiltered
	BusVoltage float32 // volts, filtered
	FETTempC   float32 // filtered
	MotorTempC float32 // filtered, valid only if HasMotorTemp

	IaFiltered, IbFiltered, IcFiltered float32 // filtered copies for telemetry/protection
}

// iirFilter is a single-pole exponential filter, y += alpha*(x-y).
type iirFilter struct {
	alpha  float32
	value  float32
	primed bool
}

func newIIRFilter(cutoffHz, dt float32) iirFilter {
	// RC low-pass discretization: alpha = dt / (RC + dt), RC = 1/(2*pi*fc).
	rc := float32(1.0) / (2 * 3.1415927 * cutoffHz)
	return iirFilter{alpha: dt / (rc + dt)}
}

func (f *iirFilter) step(x float32) float32 {
	if !f.primed {
		f.value = x
		f.primed = true
		return f.value
	}
	f.value += f.alpha * (x - f.value)
	return f.value
}

// Sampler reads injected ADC results and produces calibrated snapshots.
type Sampler struct {
	channels Channels
	cal      Calibration

	busVoltageFilter iirFilter
	fetTempFilter    iirFilter
	motorTempFilter  iirFilter

	iaSlowFilter, ibSlowFilter, icSlowFilter iirFilter
}

// NewSampler configures the injected conversion sequence and returns a
// Sampler ready to run from the PWM ISR.
func NewSampler(channels Channels, cal Calibration, dt float32) (*Sampler, error) {
	seq := []core.ADCChannel{channels.PhaseA, channels.PhaseB, channels.PhaseC, channels.BusVoltage, channels.FETTemp}
	if channels.HasMotorTemp {
		seq = append(seq, channels.MotorTemp)
	}
	if err := core.MustInjectedADC().ConfigureInjectedSequence(seq); err != nil {
		return nil, err
	}

	fc := cal.FilterCutoffHz
	if fc <= 0 {
		fc = 200
	}
	return &Sampler{
		channels:         channels,
		cal:              cal,
		busVoltageFilter: newIIRFilter(fc, dt),
		fetTempFilter:    newIIRFilter(fc, dt),
		motorTempFilter:  newIIRFilter(fc, dt),
		iaSlowFilter:     newIIRFilter(fc, dt),
		ibSlowFilter:     newIIRFilter(fc, dt),
		icSlowFilter:     newIIRFilter(fc, dt),
	}, nil
}

// Sample must be called from the PWM ISR exactly once per cycle. It
// never blocks or allocates.
func (s *Sampler) Sample() Snapshot {
	adc := core.MustInjectedADC()

	rawA := float32(adc.ReadInjected(s.channels.PhaseA))
	rawB := float32(adc.ReadInjected(s.channels.PhaseB))
	rawC := float32(adc.ReadInjected(s.channels.PhaseC))
	rawBus := float32(adc.ReadInjected(s.channels.BusVoltage))
	rawFET := float32(adc.ReadInjected(s.channels.FETTemp))

	ia := (rawA - s.cal.PhaseOffsetA) * s.cal.CurrentScale
	ib := (rawB - s.cal.PhaseOffsetB) * s.cal.CurrentScale
	ic := (rawC - s.cal.PhaseOffsetC) * s.cal.CurrentScale

	snap := Snapshot{
		Ia: ia, Ib: ib, Ic: ic,
		BusVoltage: s.busVoltageFilter.step(rawBus * s.cal.VSenseADCScale),
		FETTempC:   s.fetTempFilter.step(rawFET*s.cal.TempScale + s.cal.TempOffset),
		IaFiltered: s.iaSlowFilter.step(ia),
		IbFiltered: s.ibSlowFilter.step(ib),
		IcFiltered: s.icSlowFilter.step(ic),
	}

	if s.channels.HasMotorTemp {
		rawMotor := float32(adc.ReadInjected(s.channels.MotorTemp))
		snap.MotorTempC = s.motorTempFilter.step(rawMotor*s.cal.TempScale + s.cal.TempOffset)
	}

	return snap
}

// CalibratePhaseOffsets drives PWM at 50% duty (caller's responsibility)
// and averages N raw samples per phase into new offset values. Must be
// run only in current-calibration mode, outside closed-loop control.
func CalibratePhaseOffsets(channels Channels, samples int) (a, b, c float32) {
	adc := core.MustInjectedADC()
	var sumA, sumB, sumC float32
	for i := 0; i < samples; i++ {
		sumA += float32(adc.ReadInjected(channels.PhaseA))
		sumB += float32(adc.ReadInjected(channels.PhaseB))
		sumC += float32(adc.ReadInjected(channels.PhaseC))
	}
	n := float32(samples)
	return sumA / n, sumB / n, sumC / n
}
