// Package position implements the motor-position subsystem (C2): it
// fuses one or more raw angle sources into a stable rotor electrical
// angle for FOC and an unwrapped output position for the outer loops.
package position

import (
	"math"

	"bldcservo/encoder"
)

const twoPi = 6.2831855

// SourceConfig binds one encoder.Source into the fusion pipeline.
type SourceConfig struct {
	Source         encoder.Source
	Linearization  *encoder.LinearizationTable
	Sign           float32 // +1 or -1
	GearRatio      float32 // 1.0 for a rotor-mounted source
	PoleCount      uint32
	StallCycles    uint8 // consecutive unchanged-nonce cycles before marking inactive
}

type sourceState struct {
	cfg         SourceConfig
	pll         *encoder.AnglePLL
	lastNonce   uint32
	staleCycles uint8
	active      bool
}

// FaultReason enumerates why position fusion could not produce a valid
// result this cycle.
type FaultReason uint8

const (
	FaultNone FaultReason = iota
	FaultNoActiveSource
	FaultSourceDisagreement
)

// Estimate is the C2 output published into the control cycle snapshot.
type Estimate struct {
	ElectricalTheta     float32 // radians, wrapped to [0, 2*pi)
	ElectricalOmega     float32 // rad/s
	OutputPositionTurns float64
	OutputVelocityTurnsPerS float64
	Homed               bool
	Valid               bool
	FaultReason         FaultReason
}

// Fusion runs the per-cycle C2 algorithm across a set of configured sources.
type Fusion struct {
	sources []*sourceState

	referenceIdx int // index into sources of the rotor-reference source

	disagreementThreshold float32
	omegaN                float32

	lastOutputPosition float64
	homedRotor         bool
	homedOutput        bool
}

// NewFusion builds a fusion pipeline from the given source configs. The
// first source with IsReference()==true (per spec's Design Note
// resolution: pick reference over average when sources disagree) is
// used as the rotor-angle reference.
func NewFusion(configs []SourceConfig, omegaN, disagreementThreshold float32) *Fusion {
	f := &Fusion{omegaN: omegaN, disagreementThreshold: disagreementThreshold, referenceIdx: -1}
	for i, c := range configs {
		st := &sourceState{cfg: c, pll: encoder.NewAnglePLL(omegaN)}
		f.sources = append(f.sources, st)
		if f.referenceIdx < 0 && c.Source.IsReference() {
			f.referenceIdx = i
		}
	}
	return f
}

// Step runs one control cycle and returns the fused estimate.
func (f *Fusion) Step(dt float32) Estimate {
	if f.referenceIdx < 0 {
		return Estimate{Valid: false, FaultReason: FaultNoActiveSource}
	}

	var anyActive bool
	var refAngle, refRate float32
	disagree := false

	for i, st := range f.sources {
		sample := st.cfg.Source.Latest()

		if sample.Nonce == st.lastNonce {
			st.staleCycles++
		} else {
			st.staleCycles = 0
			st.lastNonce = sample.Nonce
		}
		stallLimit := st.cfg.StallCycles
		if stallLimit == 0 {
			stallLimit = 8
		}
		st.active = sample.Active && st.staleCycles < stallLimit

		if !st.active {
			st.pll.Predict(dt)
			continue
		}
		anyActive = true

		raw := float32(sample.Value)
		if st.cfg.Linearization != nil {
			raw = st.cfg.Linearization.Correct(sample.Value, st.cfg.Source.CPR())
		}
		measured := raw / float32(st.cfg.Source.CPR()) * twoPi * st.cfg.Sign

		angle, rate := st.pll.Update(measured, dt)

		if i == f.referenceIdx {
			refAngle, refRate = angle, rate
		} else if st.cfg.Source.IsReference() {
			if angularDistance(angle, refAngle) > f.disagreementThreshold {
				disagree = true
			}
		}
	}

	if !anyActive {
		return Estimate{Valid: false, FaultReason: FaultNoActiveSource}
	}
	if disagree {
		return Estimate{Valid: false, FaultReason: FaultSourceDisagreement}
	}

	ref := f.sources[f.referenceIdx]
	pole := float32(ref.cfg.PoleCount)
	if pole == 0 {
		pole = 1
	}
	gear := ref.cfg.GearRatio
	if gear == 0 {
		gear = 1
	}

	deltaTurns := float64(refRate*dt) / float64(twoPi) / float64(pole) / float64(gear)
	f.lastOutputPosition += deltaTurns

	return Estimate{
		ElectricalTheta:         wrapAngle(refAngle),
		ElectricalOmega:         refRate,
		OutputPositionTurns:     f.lastOutputPosition,
		OutputVelocityTurnsPerS: float64(refRate) / float64(twoPi) / float64(pole) / float64(gear),
		Homed:                   f.homedRotor,
		Valid:                   true,
		FaultReason:             FaultNone,
	}
}

// SnapOutputPosition sets the unwrapped output position from an
// absolute-output source reading within one turn of the running
// estimate, per the "snap-to" edge case.
func (f *Fusion) SnapOutputPosition(absoluteTurns float64) {
	whole := math.Round(f.lastOutputPosition - absoluteTurns)
	f.lastOutputPosition = absoluteTurns + whole
	f.homedOutput = true
}

// HomeRotor marks the rotor angle as homed (first index pulse, or an
// explicit "set output" command).
func (f *Fusion) HomeRotor() {
	f.homedRotor = true
}

// wrapAngle wraps a radians into [0, 2*pi): never negative, never >= 2*pi,
// matching the convention electrical_theta is specified against.
func wrapAngle(a float32) float32 {
	for a < 0 {
		a += twoPi
	}
	for a >= twoPi {
		a -= twoPi
	}
	return a
}

// angularDistance returns the shortest-path distance between two angles.
// It wraps the raw difference into (-pi,pi] rather than reusing
// wrapAngle's [0,2*pi) convention, since the shortest-path form needs a
// signed, zero-centered range regardless of how the angles themselves
// are wrapped.
func angularDistance(a, b float32) float32 {
	d := a - b
	for d > 3.1415927 {
		d -= twoPi
	}
	for d <= -3.1415927 {
		d += twoPi
	}
	if d < 0 {
		d = -d
	}
	return d
}
