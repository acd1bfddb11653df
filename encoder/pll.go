package encoder

// AnglePLL is a second-order phase-locked loop that tracks a noisy
// angle input and produces a smoothed angle plus its estimated rate.
// Gains are derived once from the natural frequency omegaN with
// damping ratio zeta=1 (critically damped): kp=2*zeta*omegaN,
// ki=omegaN^2.
type AnglePLL struct {
	Kp, Ki float32

	angle float32
	rate  float32
}

// NewAnglePLL returns a PLL tuned to bandwidth omegaN (rad/s).
func NewAnglePLL(omegaN float32) *AnglePLL {
	const zeta = 1.0
	return &AnglePLL{Kp: 2 * zeta * omegaN, Ki: omegaN * omegaN}
}

// wrapPi wraps an angle error into (-pi, pi] so the PLL locks on the
// shortest angular path.
func wrapPi(e float32) float32 {
	const twoPi = 6.2831855
	const pi = 3.1415927
	for e > pi {
		e -= twoPi
	}
	for e <= -pi {
		e += twoPi
	}
	return e
}

// Update feeds one measured angle (radians) and advances the PLL by
// dt seconds, returning the tracked angle and rate (rad/s). When
// measured is not fresh (same source nonce as last cycle), call
// Predict instead to free-run on the last rate estimate.
func (p *AnglePLL) Update(measured float32, dt float32) (angle, rate float32) {
	err := wrapPi(measured - p.angle)
	p.rate += p.Ki * err * dt
	p.angle += (p.rate + p.Kp*err) * dt
	return p.angle, p.rate
}

// Predict advances the tracked angle using only the last rate
// estimate, for cycles where the source produced no new sample.
func (p *AnglePLL) Predict(dt float32) (angle, rate float32) {
	p.angle += p.rate * dt
	return p.angle, p.rate
}

// Reset re-seeds the tracked angle and zeroes the rate estimate, used
// on homing and on source (re)activation.
func (p *AnglePLL) Reset(angle float32) {
	p.angle = angle
	p.rate = 0
}
