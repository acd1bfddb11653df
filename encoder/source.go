package encoder

// RawSample is one raw angle reading published by a source's background
// poller (or ISR-safe latch, for index/hall) into its SeqSlot. Nonce is
// bumped on every new physical reading regardless of whether Value
// changed, so a stalled source is detectable even at a fixed angle.
type RawSample struct {
	Value  uint32 // raw counts, source-native width
	Nonce  uint32
	Active bool
}

// Source is one configured angle source (SPI/UART/I2C absolute
// encoder, quadrature, Hall, or index). Implementations never block
// the caller for long nor allocate on the Poll path; SPI/I2C/UART
// sources do their bus I/O from the background loop and publish
// through a SeqSlot, while Hall/quadrature/index update their slot
// directly from an EXTI/timer ISR.
type Source interface {
	// Name identifies the source for telemetry and fault reporting.
	Name() string

	// Latest returns the most recently published raw sample.
	Latest() RawSample

	// CPR is the source's native counts-per-revolution.
	CPR() uint32

	// IsReference reports whether this source tracks the rotor
	// electrical angle (true) or the unwrapped output position
	// through a gear ratio (false).
	IsReference() bool
}

// LinearizationTable holds 32 per-bin correction offsets (in raw
// counts) used to bilinearly interpolate out an encoder's systematic
// non-linearity before it is converted to an electrical angle.
type LinearizationTable struct {
	Bins [32]float32
}

// Correct returns raw adjusted by bilinear interpolation between the
// two bins adjacent to raw/cpr's position in the table.
func (lt *LinearizationTable) Correct(raw uint32, cpr uint32) float32 {
	if cpr == 0 {
		return float32(raw)
	}
	frac := float32(raw) / float32(cpr) * 32
	bin := int(frac)
	weight := frac - float32(bin)

	bin0 := bin & 31
	bin1 := (bin + 1) & 31

	offset := lt.Bins[bin0]*(1-weight) + lt.Bins[bin1]*weight
	return float32(raw) + offset
}
