// Package regmap builds the concrete register.File for one servo axis:
// the address assignment binding the command/register server (C8) to
// the live state owned by sched.Controller, outer.Loop, foc.CurrentLoop
// and modes.Machine. Nothing outside this package needs to know the
// address numbers; callers look registers up by name via register.File.
package regmap

import (
	"bldcservo/foc"
	"bldcservo/identity"
	"bldcservo/modes"
	"bldcservo/outer"
	"bldcservo/register"
	"bldcservo/safety"
	"bldcservo/sched"
)

// Address blocks, matching §6's register map: a fixed identity block at
// 0x0000, command targets and limits from 0x0010, tunable gains from
// 0x0030, and read-only telemetry from 0x0050.
const (
	addrIdentityBase = 0x0000 // 5 int32 words, identity.Record.Encode()

	addrMode      = 0x0010
	addrFaultCode = 0x0011

	addrPositionCmd       = 0x0020
	addrVelocityCmd       = 0x0021
	addrFeedforwardTorque = 0x0022
	addrMaxTorque         = 0x0023
	addrMaxVelocity       = 0x0024
	addrMaxPosition       = 0x0025
	addrMinPosition       = 0x0026
	addrMaxVoltage        = 0x0027

	addrOuterKp     = 0x0030
	addrOuterKd     = 0x0031
	addrOuterKi     = 0x0032
	addrOuterILimit = 0x0033

	addrCurrentKpID = 0x0040
	addrCurrentKiID = 0x0041
	addrCurrentKpIQ = 0x0042
	addrCurrentKiIQ = 0x0043

	addrTelIa       = 0x0050
	addrTelIb       = 0x0051
	addrTelIc       = 0x0052
	addrTelVBus     = 0x0053
	addrTelFETTemp  = 0x0054
	addrTelPosition = 0x0055
	addrTelVelocity = 0x0056
	addrTelTheta    = 0x0057
	addrTelIq       = 0x0058
	addrTelId       = 0x0059
	addrTelTorqueNm = 0x005A

	addrTelVibration = 0x005B
)

// Components bundles the live objects a register file is built over.
// Identity is a value copied in at Build time rather than held live,
// since the identity block never changes after boot.
type Components struct {
	Identity     identity.Record
	Controller   *sched.Controller
	OuterLoop    *outer.Loop
	CurrentLoop  *foc.CurrentLoop
	ModeMachine  *modes.Machine
	FaultManager *safety.Manager

	// VibrationMagnitude reads an onboard accelerometer's acceleration
	// vector magnitude in g, nil on boards without one. When set, it
	// backs tel.vibration_g; otherwise that register reads as 0.
	VibrationMagnitude func() float32
}

// Build wires every named register this firmware exposes over the
// bus/CLI, backed directly by the live control-loop state: no shadow
// copies, so a register read always reflects the value RunCycle last
// used or produced.
func Build(c Components) *register.File {
	f := register.NewFile()

	buildIdentity(f, c.Identity)
	buildModeAndCommand(f, c.Controller, c.ModeMachine, c.FaultManager)
	buildGains(f, c.OuterLoop, c.CurrentLoop)
	buildTelemetry(f, c.Controller, c.VibrationMagnitude)

	return f
}

func buildIdentity(f *register.File, rec identity.Record) {
	blob := rec.Encode()
	names := [5]string{"id.abi_family", "id.rev", "id.uid0", "id.uid1", "id.uid2"}
	for i, name := range names {
		word := blob[i*4 : i*4+4]
		u := uint32(word[0]) | uint32(word[1])<<8 | uint32(word[2])<<16 | uint32(word[3])<<24
		v := float64(int32(u))
		f.Add(register.Descriptor{
			Address: addrIdentityBase + uint16(i), Name: name,
			Type: register.TypeInt32, Access: register.AccessR,
			Get: func() float64 { return v },
		})
	}
}

func buildModeAndCommand(f *register.File, ctrl *sched.Controller, mm *modes.Machine, faults *safety.Manager) {
	f.Add(register.Descriptor{
		Address: addrMode, Name: "mode", Type: register.TypeInt16, Access: register.AccessR,
		Get: func() float64 { return float64(mm.State()) },
	})
	f.Add(register.Descriptor{
		Address: addrFaultCode, Name: "fault_code", Type: register.TypeInt16, Access: register.AccessR,
		Get: func() float64 {
			_, code := faults.Tripped()
			return float64(code)
		},
	})

	f.Add(register.Descriptor{
		Address: addrPositionCmd, Name: "cmd.position", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(ctrl.PositionCmd()) },
		Set: func(v float64) error { ctrl.SetPositionCmd(float32(v)); return nil },
	})
	f.Add(register.Descriptor{
		Address: addrVelocityCmd, Name: "cmd.velocity", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(ctrl.VelocityCmd()) },
		Set: func(v float64) error { ctrl.SetVelocityCmd(float32(v)); return nil },
	})
	f.Add(register.Descriptor{
		Address: addrFeedforwardTorque, Name: "cmd.feedforward_torque", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(ctrl.FeedforwardTorque()) },
		Set: func(v float64) error { ctrl.SetFeedforwardTorque(float32(v)); return nil },
	})

	f.Add(register.Descriptor{
		Address: addrMaxTorque, Name: "limit.max_torque", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(ctrl.Limits().MaxTorque) },
		Set: func(v float64) error {
			l := ctrl.Limits()
			l.MaxTorque = float32(v)
			ctrl.SetLimits(l)
			return nil
		},
	})
	f.Add(register.Descriptor{
		Address: addrMaxVelocity, Name: "limit.max_velocity", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(ctrl.Limits().MaxVelocity) },
		Set: func(v float64) error {
			l := ctrl.Limits()
			l.MaxVelocity = float32(v)
			ctrl.SetLimits(l)
			return nil
		},
	})
	f.Add(register.Descriptor{
		Address: addrMaxPosition, Name: "limit.max_position", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(ctrl.Limits().MaxPosition) },
		Set: func(v float64) error {
			l := ctrl.Limits()
			l.MaxPosition = float32(v)
			ctrl.SetLimits(l)
			return nil
		},
	})
	f.Add(register.Descriptor{
		Address: addrMinPosition, Name: "limit.min_position", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(ctrl.Limits().MinPosition) },
		Set: func(v float64) error {
			l := ctrl.Limits()
			l.MinPosition = float32(v)
			ctrl.SetLimits(l)
			return nil
		},
	})
	f.Add(register.Descriptor{
		Address: addrMaxVoltage, Name: "limit.max_voltage", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(ctrl.Limits().MaxVoltage) },
		Set: func(v float64) error {
			l := ctrl.Limits()
			l.MaxVoltage = float32(v)
			ctrl.SetLimits(l)
			return nil
		},
	})
}

func buildGains(f *register.File, outerLoop *outer.Loop, currentLoop *foc.CurrentLoop) {
	f.Add(register.Descriptor{
		Address: addrOuterKp, Name: "gain.outer_kp", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(outerLoop.Kp) },
		Set: func(v float64) error { outerLoop.Kp = float32(v); return nil },
	})
	f.Add(register.Descriptor{
		Address: addrOuterKd, Name: "gain.outer_kd", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(outerLoop.Kd) },
		Set: func(v float64) error { outerLoop.Kd = float32(v); return nil },
	})
	f.Add(register.Descriptor{
		Address: addrOuterKi, Name: "gain.outer_ki", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(outerLoop.Ki) },
		Set: func(v float64) error { outerLoop.Ki = float32(v); return nil },
	})
	f.Add(register.Descriptor{
		Address: addrOuterILimit, Name: "gain.outer_ilimit", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(outerLoop.ILimit) },
		Set: func(v float64) error { outerLoop.ILimit = float32(v); return nil },
	})

	f.Add(register.Descriptor{
		Address: addrCurrentKpID, Name: "gain.current_kp_id", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(currentLoop.IdPI.Kp) },
		Set: func(v float64) error { currentLoop.IdPI.Kp = float32(v); return nil },
	})
	f.Add(register.Descriptor{
		Address: addrCurrentKiID, Name: "gain.current_ki_id", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(currentLoop.IdPI.Ki) },
		Set: func(v float64) error { currentLoop.IdPI.Ki = float32(v); return nil },
	})
	f.Add(register.Descriptor{
		Address: addrCurrentKpIQ, Name: "gain.current_kp_iq", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(currentLoop.IqPI.Kp) },
		Set: func(v float64) error { currentLoop.IqPI.Kp = float32(v); return nil },
	})
	f.Add(register.Descriptor{
		Address: addrCurrentKiIQ, Name: "gain.current_ki_iq", Type: register.TypeF32, Access: register.AccessRW,
		Get: func() float64 { return float64(currentLoop.IqPI.Ki) },
		Set: func(v float64) error { currentLoop.IqPI.Ki = float32(v); return nil },
	})
}

// buildTelemetry registers the read-only snapshot of the most recent
// RunCycle, sourced from sched.Controller.LastReport rather than a
// separately-maintained copy.
func buildTelemetry(f *register.File, ctrl *sched.Controller, vibration func() float32) {
	add := func(addr uint16, name string, get func() float64) {
		f.Add(register.Descriptor{
			Address: addr, Name: name, Type: register.TypeF32, Access: register.AccessR, Get: get,
		})
	}
	add(addrTelIa, "tel.ia", func() float64 { return float64(ctrl.LastReport().Sampling.Ia) })
	add(addrTelIb, "tel.ib", func() float64 { return float64(ctrl.LastReport().Sampling.Ib) })
	add(addrTelIc, "tel.ic", func() float64 { return float64(ctrl.LastReport().Sampling.Ic) })
	add(addrTelVBus, "tel.bus_voltage", func() float64 { return float64(ctrl.LastReport().Sampling.BusVoltage) })
	add(addrTelFETTemp, "tel.fet_temp_c", func() float64 { return float64(ctrl.LastReport().Sampling.FETTempC) })
	add(addrTelPosition, "tel.position_turns", func() float64 { return ctrl.LastReport().Position.OutputPositionTurns })
	add(addrTelVelocity, "tel.velocity_turns_per_s", func() float64 { return float64(ctrl.LastReport().Position.OutputVelocityTurnsPerS) })
	add(addrTelTheta, "tel.electrical_theta", func() float64 { return float64(ctrl.LastReport().Position.ElectricalTheta) })
	add(addrTelIq, "tel.iq", func() float64 { return float64(ctrl.LastReport().FOC.Iq) })
	add(addrTelId, "tel.id", func() float64 { return float64(ctrl.LastReport().FOC.Id) })
	add(addrTelTorqueNm, "tel.torque_nm", func() float64 { return float64(ctrl.LastReport().FOC.TorqueNm) })
	add(addrTelVibration, "tel.vibration_g", func() float64 {
		if vibration == nil {
			return 0
		}
		return float64(vibration())
	})
}
