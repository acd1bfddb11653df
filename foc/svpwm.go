package foc

// SVPWMOffsets computes the min/max common-mode injection added to the
// three phase voltages so that min+max == busVoltage, maximizing the
// linear modulation range before a phase duty saturates.
func SVPWMOffsets(a, b, c float32) (offset float32) {
	min := a
	if b < min {
		min = b
	}
	if c < min {
		min = c
	}
	max := a
	if b > max {
		max = b
	}
	if c > max {
		max = c
	}
	return -(min + max) / 2
}

// DutiesFromPhaseVoltages applies the SVPWM common-mode offset to the
// phase voltages and maps them and the bus voltage into duty cycles clamped to
// [dMin, dMax], where dMin/dMax guard against pre-driver bootstrap
// capacitor dropout at the extremes of modulation.
func DutiesFromPhaseVoltages(a, b, c, busVoltage, dMin, dMax float32) (da, db, dc float32) {
	offset := SVPWMOffsets(a, b, c)
	a, b, c = a+offset, b+offset, c+offset

	toDuty := func(v float32) float32 {
		d := 0.5 + v/busVoltage
		return clamp(d, dMin, dMax)
	}
	return toDuty(a), toDuty(b), toDuty(c)
}
