package encoder

import "testing"

func TestDecodeAkSIM2ValidFrame(t *testing.T) {
	frame := []byte{'d', 0x01, 0x02, 0x03, 0x01, 0xAA, 0xBB}
	got, err := decodeAkSIM2(frame)
	if err != nil {
		t.Fatalf("decodeAkSIM2: %v", err)
	}
	if got.Position != 0x030201 {
		t.Errorf("Position = 0x%x, want 0x030201", got.Position)
	}
	if !got.Err || got.Warn {
		t.Errorf("flags decoded wrong: err=%v warn=%v", got.Err, got.Warn)
	}
	if got.Status != 0xBBAA {
		t.Errorf("Status = 0x%04x, want 0xbbaa", got.Status)
	}
}

func TestDecodeAkSIM2RejectsBadMarker(t *testing.T) {
	frame := []byte{'x', 0, 0, 0, 0, 0, 0}
	if _, err := decodeAkSIM2(frame); err == nil {
		t.Error("expected error for bad marker byte")
	}
}

func TestFindAkSIM2MarkerWithinResyncWindow(t *testing.T) {
	buf := []byte{0xFF, 0xFE, 'd', 0x00}
	if off := findAkSIM2Marker(buf, 3); off != 2 {
		t.Errorf("offset = %d, want 2", off)
	}
	if off := findAkSIM2Marker(buf, 1); off != -1 {
		t.Errorf("offset = %d, want -1 (outside resync window)", off)
	}
}
