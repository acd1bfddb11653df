package register

import "testing"

func TestCLITelGet(t *testing.T) {
	f := newTestFile()
	cli := NewCLI(f)

	reply := cli.HandleLine("tel get bus_voltage")
	if reply != "OK 24\r\n" {
		t.Fatalf("got %q", reply)
	}
}

func TestCLIConfSetThenGet(t *testing.T) {
	f := newTestFile()
	cli := NewCLI(f)

	if reply := cli.HandleLine("conf set max_torque 0.25"); reply != "OK\r\n" {
		t.Fatalf("set reply: %q", reply)
	}
	if reply := cli.HandleLine("conf get max_torque"); reply != "OK 0.25\r\n" {
		t.Fatalf("get reply: %q", reply)
	}
}

func TestCLIUnknownVerb(t *testing.T) {
	f := newTestFile()
	cli := NewCLI(f)

	reply := cli.HandleLine("bogus 1 2 3")
	if reply[:4] != "ERR " {
		t.Fatalf("expected ERR reply, got %q", reply)
	}
}

func TestCLIRegisterVerb(t *testing.T) {
	f := newTestFile()
	cli := NewCLI(f)
	cli.RegisterVerb("d", func(args []string) (string, error) {
		if len(args) == 0 || args[0] != "stop" {
			return "", nil
		}
		return "stopped", nil
	})

	if reply := cli.HandleLine("d stop"); reply != "OK stopped\r\n" {
		t.Fatalf("got %q", reply)
	}
}
