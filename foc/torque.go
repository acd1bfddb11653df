package foc

import "github.com/orsinium-labs/tinymath"

// TorqueModel converts Iq to torque: linear below currentCutoffA,
// logarithmically compressed above it so the model stays well-behaved
// as current approaches the inverter's saturation region. log2/2^ use
// tinymath's fast approximations rather than math.Log2/math.Exp2,
// matching the rest of the current-loop math running every ISR cycle.
type TorqueModel struct {
	Kt             float32 // torque constant, Nm/A
	CurrentCutoffA float32
	TorqueScale    float32
	CurrentScale   float32
}

// Torque returns the torque in Nm produced by commanding current iq.
func (m TorqueModel) Torque(iq float32) float32 {
	sign := float32(1)
	if iq < 0 {
		sign = -1
		iq = -iq
	}

	if iq <= m.CurrentCutoffA {
		return sign * iq * m.Kt
	}

	over := (iq - m.CurrentCutoffA) * m.CurrentScale
	t := m.Kt*m.CurrentCutoffA + m.TorqueScale*tinymath.Log2(1+over)
	return sign * t
}

// IqForTorque is the inverse of Torque: converts a commanded torque
// back to the Iq reference the current loop should track.
func (m TorqueModel) IqForTorque(torqueNm float32) float32 {
	sign := float32(1)
	if torqueNm < 0 {
		sign = -1
		torqueNm = -torqueNm
	}

	linearCeiling := m.Kt * m.CurrentCutoffA
	if torqueNm <= linearCeiling {
		if m.Kt == 0 {
			return 0
		}
		return sign * torqueNm / m.Kt
	}

	// Invert Kt*cutoff + torque_scale*log2(1+over) for `over`.
	if m.TorqueScale == 0 || m.CurrentScale == 0 {
		return sign * m.CurrentCutoffA
	}
	exponent := (torqueNm - linearCeiling) / m.TorqueScale
	over := tinymath.Exp2(exponent) - 1
	iq := m.CurrentCutoffA + over/m.CurrentScale
	return sign * iq
}
