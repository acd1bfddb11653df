package outer

// InductanceSweep injects a square-wave voltage pulse at a fixed
// electrical angle and measures the current step response, from which
// L = V*dt/dI. It is a deterministic, bounded-duration open-loop
// sequence: no feedback, exits to Stop on completion or fault.
type InductanceSweep struct {
	PulseVoltage float32
	PulseCycles  int

	cycle       int
	startCurrent float32
	haveStart    bool
	done         bool
	measuredL    float32
}

// Step runs one control cycle of the sweep. dt is the control period.
func (s *InductanceSweep) Step(measuredCurrent, dt float32) (voltageCmd float32, done bool) {
	if s.done {
		return 0, true
	}
	if !s.haveStart {
		s.startCurrent = measuredCurrent
		s.haveStart = true
	}
	s.cycle++
	if s.cycle >= s.PulseCycles {
		elapsed := float32(s.cycle) * dt
		deltaI := measuredCurrent - s.startCurrent
		if deltaI != 0 {
			s.measuredL = s.PulseVoltage * elapsed / deltaI
		}
		s.done = true
		return 0, true
	}
	return s.PulseVoltage, false
}

// Result returns the measured inductance once the sweep has completed.
func (s *InductanceSweep) Result() float32 { return s.measuredL }

// CurrentCalibrationSweep drives PWM at 50% duty with the bridge
// enabled but no commanded current, averaging N phase-current samples
// into the per-phase offsets. Runs only outside closed-loop modes.
type CurrentCalibrationSweep struct {
	SampleCount int

	samples         int
	sumA, sumB, sumC float32
	done            bool
}

// Step accumulates one raw sample. Returns done=true once SampleCount
// samples have been collected.
func (s *CurrentCalibrationSweep) Step(rawA, rawB, rawC float32) (done bool) {
	if s.done {
		return true
	}
	s.sumA += rawA
	s.sumB += rawB
	s.sumC += rawC
	s.samples++
	if s.samples >= s.SampleCount {
		s.done = true
	}
	return s.done
}

// Offsets returns the mean offsets once the sweep has completed.
func (s *CurrentCalibrationSweep) Offsets() (a, b, c float32) {
	if s.samples == 0 {
		return 0, 0, 0
	}
	n := float32(s.samples)
	return s.sumA / n, s.sumB / n, s.sumC / n
}

// EncoderCalibrationSweep commutates open-loop through a full
// electrical revolution at a fixed current, recording the
// encoder-reported angle at each of 64 evenly spaced commanded angles
// to build the commutation offset table.
type EncoderCalibrationSweep struct {
	TableSize    int
	HoldCycles   int // cycles to settle at each step before sampling
	CurrentCmd   float32

	step       int
	holdCount  int
	table      []float32
	done       bool
}

// NewEncoderCalibrationSweep allocates a sweep producing a table of
// tableSize commutation offsets.
func NewEncoderCalibrationSweep(tableSize, holdCycles int, currentCmd float32) *EncoderCalibrationSweep {
	return &EncoderCalibrationSweep{TableSize: tableSize, HoldCycles: holdCycles, CurrentCmd: currentCmd, table: make([]float32, tableSize)}
}

// Step commands the next fixed electrical angle and, once settled,
// records the measured angle as that step's offset. Returns the
// commanded electrical angle for this cycle and whether to sample the
// encoder now.
func (s *EncoderCalibrationSweep) Step(measuredElectricalAngle float32) (commandedAngle float32, done bool) {
	if s.done {
		return 0, true
	}
	commandedAngle = twoPiOver(s.TableSize) * float32(s.step)
	s.holdCount++
	if s.holdCount >= s.HoldCycles {
		s.table[s.step] = measuredElectricalAngle - commandedAngle
		s.holdCount = 0
		s.step++
		if s.step >= s.TableSize {
			s.done = true
		}
	}
	return commandedAngle, s.done
}

// Table returns the recorded offsets once the sweep has completed.
func (s *EncoderCalibrationSweep) Table() []float32 { return s.table }

func twoPiOver(n int) float32 {
	if n == 0 {
		return 0
	}
	return 6.2831855 / float32(n)
}
