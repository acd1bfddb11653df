package regmap

import (
	"testing"

	"bldcservo/modes"
	"bldcservo/register"
)

func buildTestCLI(t *testing.T) (*Components, *register.CLI) {
	t.Helper()
	comps, f := buildTestFile(t)
	cli := register.NewCLI(f)
	RegisterModeVerb(cli, *comps)
	return comps, cli
}

func TestModeVerbEntersVoltageModeFromStopped(t *testing.T) {
	comps, cli := buildTestCLI(t)
	reply := cli.HandleLine("d voltage")
	if reply != "OK\r\n" {
		t.Fatalf("d voltage = %q, want OK", reply)
	}
	if comps.ModeMachine.State() != modes.Enabling {
		t.Errorf("state = %v, want Enabling", comps.ModeMachine.State())
	}
}

func TestModeVerbRejectsPositionWithoutValidEstimate(t *testing.T) {
	comps, cli := buildTestCLI(t)
	reply := cli.HandleLine("d position")
	if reply == "OK\r\n" {
		t.Fatalf("d position from an unrun controller should fail its position check")
	}
	if comps.ModeMachine.State() != modes.Fault {
		t.Errorf("state = %v, want Fault", comps.ModeMachine.State())
	}
}

func TestModeVerbSwitchesBetweenActiveStates(t *testing.T) {
	comps, cli := buildTestCLI(t)
	if reply := cli.HandleLine("d voltage"); reply != "OK\r\n" {
		t.Fatalf("d voltage = %q", reply)
	}
	comps.ModeMachine.AdvanceEnabling(false)

	if reply := cli.HandleLine("d current 5"); reply != "OK\r\n" {
		t.Fatalf("d current 5 = %q", reply)
	}
	if comps.ModeMachine.State() != modes.Current {
		t.Errorf("state = %v, want Current", comps.ModeMachine.State())
	}
}

func TestModeVerbStopForcesStopped(t *testing.T) {
	comps, cli := buildTestCLI(t)
	cli.HandleLine("d voltage")
	comps.ModeMachine.AdvanceEnabling(false)

	if reply := cli.HandleLine("d stop"); reply != "OK\r\n" {
		t.Fatalf("d stop = %q", reply)
	}
	if comps.ModeMachine.State() != modes.Stopped {
		t.Errorf("state = %v, want Stopped", comps.ModeMachine.State())
	}
}

func TestModeVerbUnknownStateErrors(t *testing.T) {
	_, cli := buildTestCLI(t)
	reply := cli.HandleLine("d warp_speed")
	if reply == "OK\r\n" {
		t.Fatalf("d warp_speed should be rejected")
	}
}
