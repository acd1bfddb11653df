package identity

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := Record{
		ABI:            7,
		HardwareFamily: 2,
		HardwareRev:    1,
		UID:            [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		BuildVersion:   "dev",
	}

	decoded, err := Decode(r.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// BuildVersion is informational and never makes it into the fixed
	// 20-byte block, so it's excluded from the round-trip comparison.
	if diff := cmp.Diff(r, decoded, cmpopts.IgnoreFields(Record{}, "BuildVersion")); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); err == nil {
		t.Fatal("expected error decoding short buffer")
	}
}
