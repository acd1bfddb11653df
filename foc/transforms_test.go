package foc

import "testing"

func approxEqual(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestClarkeBalancedCurrents(t *testing.T) {
	// A balanced three-phase set sums to zero; pure a-phase current
	// should map entirely onto alpha with no beta component.
	alpha, beta := ClarkeTransform(1, -0.5, -0.5)
	if !approxEqual(alpha, 1, 1e-5) {
		t.Errorf("alpha = %v, want 1", alpha)
	}
	if !approxEqual(beta, 0, 1e-5) {
		t.Errorf("beta = %v, want 0", beta)
	}
}

func TestParkInverseParkRoundTrip(t *testing.T) {
	sin, cos := SinCos(0.7)
	d, q := ParkTransform(1.2, -0.4, sin, cos)
	alpha, beta := InverseParkTransform(d, q, sin, cos)
	if !approxEqual(alpha, 1.2, 1e-3) || !approxEqual(beta, -0.4, 1e-3) {
		t.Errorf("round trip mismatch: got alpha=%v beta=%v", alpha, beta)
	}
}

func TestInverseClarkeSumsToZero(t *testing.T) {
	a, b, c := InverseClarkeTransform(1, 0.5)
	sum := a + b + c
	if !approxEqual(sum, 0, 1e-4) {
		t.Errorf("phase sum = %v, want 0", sum)
	}
}
