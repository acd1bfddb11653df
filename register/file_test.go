package register

import "testing"

func newTestFile() *File {
	f := NewFile()
	var maxTorque float64 = 1.0
	f.Add(Descriptor{
		Address: 0x0020, Name: "max_torque", Type: TypeF32, Access: AccessRW,
		Get: func() float64 { return maxTorque },
		Set: func(v float64) error { maxTorque = v; return nil },
	})
	var busVoltage float64 = 24.0
	f.Add(Descriptor{
		Address: 0x0030, Name: "bus_voltage", Type: TypeF32, Access: AccessR,
		Get: func() float64 { return busVoltage },
	})
	return f
}

func TestGetSetRoundTrip(t *testing.T) {
	f := newTestFile()
	if err := f.Set(0x0020, 0.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := f.Get(0x0020)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 0.5 {
		t.Fatalf("got %v, want 0.5", v)
	}
}

func TestSetReadOnlyRejected(t *testing.T) {
	f := newTestFile()
	if err := f.Set(0x0030, 1.0); err == nil {
		t.Fatal("expected error writing read-only register")
	}
}

func TestGetUnknownAddress(t *testing.T) {
	f := newTestFile()
	if _, err := f.Get(0x9999); err == nil {
		t.Fatal("expected error reading unknown address")
	}
}

func TestAddDuplicateAddressPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate address")
		}
	}()
	f := newTestFile()
	f.Add(Descriptor{Address: 0x0020, Name: "dup", Type: TypeInt8, Access: AccessR, Get: func() float64 { return 0 }})
}
