package core

// ThresholdMonitor confirms a crossing of a scalar threshold over several
// consecutive samples before it reports triggered, then requires the
// value to retreat past a hysteresis band before it can re-trigger.
// Generalized from a single homing trigger fired once into a
// level-sensitive monitor that can trip and clear repeatedly (bus
// voltage, temperature).
type ThresholdMonitor struct {
	Threshold    float32
	TriggerAbove bool
	Hysteresis   float32
	SampleCount  uint8

	triggerCount uint8
	tripped      bool
}

// NewThresholdMonitor returns a monitor requiring sampleCount consecutive
// confirming samples before it reports Tripped.
func NewThresholdMonitor(threshold float32, triggerAbove bool, hysteresis float32, sampleCount uint8) *ThresholdMonitor {
	if sampleCount == 0 {
		sampleCount = 1
	}
	return &ThresholdMonitor{
		Threshold:    threshold,
		TriggerAbove: triggerAbove,
		Hysteresis:   hysteresis,
		SampleCount:  sampleCount,
		triggerCount: sampleCount,
	}
}

// Update feeds one new sample and returns the monitor's tripped state
// after processing it. Once tripped, it stays tripped until the value
// crosses back past threshold±hysteresis for one sample, at which point
// the confirm-count resets (no flapping across the boundary).
func (m *ThresholdMonitor) Update(value float32) bool {
	crossing := m.crossed(value)

	if !m.tripped {
		if !crossing {
			m.triggerCount = m.SampleCount
			return false
		}
		m.triggerCount--
		if m.triggerCount == 0 {
			m.tripped = true
		}
		return m.tripped
	}

	// Already tripped: stay tripped until the value clears the
	// hysteresis band in the opposite direction.
	if !m.clearedHysteresis(value) {
		return true
	}
	m.tripped = false
	m.triggerCount = m.SampleCount
	return false
}

func (m *ThresholdMonitor) crossed(value float32) bool {
	if m.TriggerAbove {
		return value > m.Threshold
	}
	return value < m.Threshold
}

func (m *ThresholdMonitor) clearedHysteresis(value float32) bool {
	if m.TriggerAbove {
		return value < m.Threshold-m.Hysteresis
	}
	return value > m.Threshold+m.Hysteresis
}

// Tripped reports the last computed state without consuming a sample.
func (m *ThresholdMonitor) Tripped() bool {
	return m.tripped
}
