// Package modes implements the mode state machine (C6): the tagged
// set of control states and the transition rules between them.
package modes

import "bldcservo/safety"

// State names one of the ~20 control states.
type State uint8

const (
	Stopped State = iota
	Fault
	Enabling
	CalibratingCurrent
	CalibratingEncoder
	PositionTimeout
	Position
	PositionHold
	PositionWait
	ZeroVelocity
	Voltage
	VoltageFoc
	VoltageDq
	Current
	Brake
	MeasureInductance
	StayWithin
	Homing
)

var stateNames = map[State]string{
	Stopped: "stopped", Fault: "fault", Enabling: "enabling",
	CalibratingCurrent: "calibrating_current", CalibratingEncoder: "calibrating_encoder",
	PositionTimeout: "position_timeout", Position: "position", PositionHold: "position_hold",
	PositionWait: "position_wait", ZeroVelocity: "zero_velocity", Voltage: "voltage",
	VoltageFoc: "voltage_foc", VoltageDq: "voltage_dq", Current: "current", Brake: "brake",
	MeasureInductance: "measure_inductance", StayWithin: "stay_within", Homing: "homing",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether the state requires an explicit command to
// leave: Fault needs Stop after the condition clears; Stopped is the
// idle resting state everything returns to.
func (s State) IsTerminal() bool {
	return s == Fault || s == Stopped
}

// RequiresPosition reports whether a state's control law consumes a
// valid position estimate, used by the Stopped→active-mode entry check.
func (s State) RequiresPosition() bool {
	switch s {
	case Position, PositionHold, PositionWait, ZeroVelocity, StayWithin, Homing:
		return true
	default:
		return false
	}
}

// RequiresTheta reports whether a state's per-cycle control law needs
// a valid electrical angle estimate from C2 to run at all. The
// open-loop voltage modes and the sweeps that never touch the fused
// estimate are exempt: Brake shorts the low sides regardless of angle,
// Voltage/VoltageFoc supply their own forced-commutation angle instead
// of the fused one, and CalibratingCurrent/MeasureInductance run
// before a usable angle is even expected to exist.
func (s State) RequiresTheta() bool {
	switch s {
	case Stopped, Fault, Enabling, Brake, Voltage, VoltageFoc, CalibratingCurrent, MeasureInductance:
		return false
	default:
		return true
	}
}

// EntryError is returned when Stopped→target is rejected by the
// pre-enable checks rather than being allowed to proceed to Enabling.
type EntryError struct {
	Reason string
}

func (e EntryError) Error() string { return e.Reason }

// EntryChecklist is the gating state read at a Stopped→active
// transition.
type EntryChecklist struct {
	ConfigDirty      bool
	MotorConfigured  bool
	VoltageInRange   bool
	PositionValid    bool
	PositionError    float32 // |P-P*| at entry, checked against StartLimit for Position
	StartLimit       float32 // 0 disables the check
}

// Machine holds the current state and the watchdog command-age
// tracking used to degrade an active mode on stale commands.
type Machine struct {
	state         State
	pendingTarget State // Enabling's destination once the enable delay completes

	commandAge  float32 // seconds since the last command touched this mode
	timeout     float32 // degrade to ZeroVelocity after this
	stopTimeout float32 // degrade further to Stopped after this (from ZeroVelocity)

	lastKi float32 // preserved across Position/Velocity/Torque swaps when unchanged
}

// NewMachine returns a machine starting in Stopped.
func NewMachine(commandTimeout, stopTimeout float32) *Machine {
	return &Machine{state: Stopped, timeout: commandTimeout, stopTimeout: stopTimeout}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// OnFault forces the machine into Fault from any state. Safe to call
// from the ISR; the transition itself is just a field write.
func (m *Machine) OnFault() {
	m.state = Fault
}

// Stop clears a latched fault (the caller must have confirmed the
// underlying condition cleared via safety.Manager.Clear) and returns
// the machine to Stopped from any state.
func (m *Machine) Stop(faultManager *safety.Manager) {
	if faultManager != nil {
		faultManager.Clear()
	}
	m.state = Stopped
	m.commandAge = 0
}

// EnterActive transitions from Stopped to target through Enabling's
// pre-checks. It does not itself run the enable-delay wait; the
// scheduling glue calls AdvanceEnabling once the delay has elapsed.
func (m *Machine) EnterActive(target State, checklist EntryChecklist) error {
	if m.state != Stopped {
		return EntryError{Reason: "not in Stopped"}
	}
	if checklist.ConfigDirty {
		return EntryError{Reason: "config dirty"}
	}
	if !checklist.MotorConfigured {
		return EntryError{Reason: "motor not configured"}
	}
	if !checklist.VoltageInRange {
		return EntryError{Reason: "voltage out of range"}
	}
	if target.RequiresPosition() && !checklist.PositionValid {
		m.state = Fault
		return EntryError{Reason: "position required but invalid"}
	}
	if target == Position && checklist.StartLimit > 0 {
		errAbs := checklist.PositionError
		if errAbs < 0 {
			errAbs = -errAbs
		}
		if errAbs > checklist.StartLimit {
			m.state = Fault
			return EntryError{Reason: "start outside limit"}
		}
	}

	m.state = Enabling
	m.pendingTarget = target
	return nil
}

// AdvanceEnabling completes the Enabling→target transition once the
// driver enable delay has elapsed and the fault pin reads clear.
func (m *Machine) AdvanceEnabling(driverFaultPinAsserted bool) error {
	if m.state != Enabling {
		return EntryError{Reason: "not in Enabling"}
	}
	if driverFaultPinAsserted {
		m.state = Fault
		return EntryError{Reason: "driver fault pin asserted during enable"}
	}
	m.state = m.pendingTarget
	m.commandAge = 0
	return nil
}

// SwitchActive moves directly between Position/Velocity/Torque without
// passing through Enabling; the integrator carries over only if ki is
// unchanged from the prior mode's configured gain.
func (m *Machine) SwitchActive(target State, newKi float32) {
	if m.state.IsTerminal() || m.state == Enabling {
		return
	}
	m.lastKi = newKi
	m.state = target
	m.commandAge = 0
}

// IntegratorShouldReset reports whether the last SwitchActive call saw
// a changed ki (and therefore must not preserve the integrator).
func (m *Machine) IntegratorShouldReset(newKi float32) bool {
	return newKi != m.lastKi
}

// Tick advances the watchdog by dt seconds since the last command. The
// caller resets commandAge via Touch on every accepted command.
func (m *Machine) Tick(dt float32) {
	if m.state.IsTerminal() || m.state == Enabling {
		return
	}
	m.commandAge += dt
	if m.state == ZeroVelocity {
		if m.commandAge > m.stopTimeout {
			m.state = Stopped
		}
		return
	}
	if m.commandAge > m.timeout {
		m.state = ZeroVelocity
		m.commandAge = 0
	}
}

// Touch resets the watchdog's command-age counter.
func (m *Machine) Touch() {
	m.commandAge = 0
}
