// Package foc implements the PWM-synchronized field-oriented current
// loop: Clarke/Park transforms, Id/Iq PI control, SVPWM duty
// generation and the torque model, run once per ISR cycle.
package foc

import "github.com/orsinium-labs/tinymath"

const sqrt3 = 1.7320508

// ClarkeTransform converts three-phase currents (a,b,c) to the
// stationary (alpha,beta) frame. The c-phase current is assumed to be
// the negative sum of a and b (balanced, no neutral connection), so
// only a and b are strictly required, but c is taken explicitly to
// match what the ADC channel set actually samples.
func ClarkeTransform(ia, ib, ic float32) (alpha, beta float32) {
	alpha = (2*ia - ib - ic) / 3
	beta = (ib - ic) / sqrt3
	return
}

// SinCos returns (sin(theta), cos(theta)) for one electrical angle in
// radians, the substitute for a hardware CORDIC unit.
func SinCos(theta float32) (sin, cos float32) {
	return tinymath.Sin(theta), tinymath.Cos(theta)
}

// ParkTransform rotates (alpha,beta) into the rotor-synchronous (d,q)
// frame given the electrical angle's sin/cos.
func ParkTransform(alpha, beta, sin, cos float32) (d, q float32) {
	d = cos*alpha + sin*beta
	q = cos*beta - sin*alpha
	return
}

// InverseParkTransform rotates (d,q) voltages back to the stationary
// (alpha,beta) frame.
func InverseParkTransform(d, q, sin, cos float32) (alpha, beta float32) {
	alpha = cos*d - sin*q
	beta = sin*d + cos*q
	return
}

// InverseClarkeTransform converts (alpha,beta) back to three-phase
// quantities (a,b,c summing to zero).
func InverseClarkeTransform(alpha, beta float32) (a, b, c float32) {
	a = alpha
	b = -0.5*alpha + (sqrt3/2)*beta
	c = -0.5*alpha - (sqrt3/2)*beta
	return
}
