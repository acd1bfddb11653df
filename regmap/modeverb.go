package regmap

import (
	"fmt"
	"strconv"

	"bldcservo/modes"
	"bldcservo/register"
)

// modeByName maps the CLI's lowercase state names to modes.State, the
// console-facing half of modes.State.String's table.
var modeByName = map[string]modes.State{
	"stopped": modes.Stopped, "position": modes.Position,
	"position_hold": modes.PositionHold, "position_wait": modes.PositionWait,
	"zero_velocity": modes.ZeroVelocity, "voltage": modes.Voltage,
	"voltage_foc": modes.VoltageFoc, "voltage_dq": modes.VoltageDq,
	"current": modes.Current, "brake": modes.Brake,
	"measure_inductance": modes.MeasureInductance, "stay_within": modes.StayWithin,
	"homing": modes.Homing,
}

// RegisterModeVerb adds the "d" verb to cli: "d <state> [ki]" enters an
// active state from Stopped or switches between active states, "d stop"
// forces Stopped regardless of current state. This is the console
// counterpart of the command-channel path that drives the same
// modes.Machine through the background command server.
func RegisterModeVerb(cli *register.CLI, comps Components) {
	cli.RegisterVerb("d", func(args []string) (string, error) {
		if len(args) < 1 {
			return "", fmt.Errorf("usage: d stop|<state> [ki]")
		}
		if args[0] == "stop" {
			comps.ModeMachine.Stop(comps.FaultManager)
			return "", nil
		}

		target, ok := modeByName[args[0]]
		if !ok {
			return "", fmt.Errorf("unknown state %q", args[0])
		}

		var ki float32
		if len(args) >= 2 {
			v, err := strconv.ParseFloat(args[1], 32)
			if err != nil {
				return "", fmt.Errorf("bad ki %q: %w", args[1], err)
			}
			ki = float32(v)
		}

		if comps.ModeMachine.State() == modes.Stopped {
			last := comps.Controller.LastReport()
			tripped, _ := comps.FaultManager.Tripped()
			checklist := modes.EntryChecklist{
				MotorConfigured: true,
				VoltageInRange:  !tripped,
				PositionValid:   last.Position.Valid,
			}
			if err := comps.ModeMachine.EnterActive(target, checklist); err != nil {
				return "", err
			}
			return "", nil
		}

		comps.ModeMachine.SwitchActive(target, ki)
		return "", nil
	})
}
