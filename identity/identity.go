// Package identity implements the firmware identity record reported
// over register reads and the bench CLI: a build-independent ABI id,
// hardware family/revision, and the 96-bit vendor UID.
package identity

import "fmt"

// Record is the structured firmware identity described in the wire
// protocol's external-interfaces section. ABI is bumped only when the
// register layout or frame encoding changes, independent of the
// human-readable semantic version string built into the binary.
type Record struct {
	ABI             uint32
	HardwareFamily  uint16
	HardwareRev     uint16
	UID             [12]byte // 96-bit vendor-defined unique device id
	BuildVersion    string   // informational, not part of the ABI contract
}

// String renders the identity the way the bench CLI's "id" command
// prints it.
func (r Record) String() string {
	return fmt.Sprintf("abi=%d family=%d rev=%d uid=%x build=%q",
		r.ABI, r.HardwareFamily, r.HardwareRev, r.UID, r.BuildVersion)
}

// Encode serializes the record into the fixed 20-byte layout used by
// register reads of the identity block: abi(4) family(2) rev(2)
// uid(12) little-endian.
func (r Record) Encode() []byte {
	buf := make([]byte, 20)
	buf[0] = byte(r.ABI)
	buf[1] = byte(r.ABI >> 8)
	buf[2] = byte(r.ABI >> 16)
	buf[3] = byte(r.ABI >> 24)
	buf[4] = byte(r.HardwareFamily)
	buf[5] = byte(r.HardwareFamily >> 8)
	buf[6] = byte(r.HardwareRev)
	buf[7] = byte(r.HardwareRev >> 8)
	copy(buf[8:20], r.UID[:])
	return buf
}

// Decode parses the fixed 20-byte identity block produced by Encode.
func Decode(buf []byte) (Record, error) {
	if len(buf) < 20 {
		return Record{}, fmt.Errorf("identity block too short: %d bytes", len(buf))
	}
	var r Record
	r.ABI = uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	r.HardwareFamily = uint16(buf[4]) | uint16(buf[5])<<8
	r.HardwareRev = uint16(buf[6]) | uint16(buf[7])<<8
	copy(r.UID[:], buf[8:20])
	return r, nil
}
