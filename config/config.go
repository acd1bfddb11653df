// Package config implements the persisted configuration blob (§6): a
// magic/schema/CRC header followed by a TLV entry stream, written to a
// reserved flash region via erase + double-word program. TLV tags
// match register addresses, so the persisted blob is a superset of the
// live register file.
package config

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/snksoft/crc"
)

// Magic identifies a valid blob; Schema is bumped whenever the TLV tag
// set changes in a way older firmware can't safely ignore.
const (
	Magic       uint32 = 0x42444353 // "BDCS"
	headerBytes        = 12         // magic + schema + crc
)

var crcTable = crc.NewTable(crc.CCITT)

// checksum computes the CRC16-CCITT over buf, widened to u32 to match
// the persisted header's reserved field width.
func checksum(buf []byte) uint32 {
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, buf)
	return uint32(crcTable.CRC16(c))
}

// Entry is one decoded TLV record.
type Entry struct {
	Tag   uint16 // matches a register.Descriptor.Address
	Value []byte
}

// Blob is a decoded persisted-configuration image.
type Blob struct {
	Schema  uint32
	Entries []Entry
}

// Encode serializes b into the on-flash layout, computing the CRC over
// everything after the CRC field itself.
func Encode(b Blob) []byte {
	body := make([]byte, 0, 64)
	for _, e := range b.Entries {
		head := make([]byte, 4)
		binary.LittleEndian.PutUint16(head[0:2], e.Tag)
		binary.LittleEndian.PutUint16(head[2:4], uint16(len(e.Value)))
		body = append(body, head...)
		body = append(body, e.Value...)
	}

	out := make([]byte, headerBytes+len(body))
	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint32(out[4:8], b.Schema)
	copy(out[headerBytes:], body)

	sum := checksum(out[headerBytes:])
	binary.LittleEndian.PutUint32(out[8:12], sum)
	return out
}

// Decode parses and CRC-validates a persisted blob.
func Decode(buf []byte) (Blob, error) {
	if len(buf) < headerBytes {
		return Blob{}, errors.New("config: buffer shorter than header")
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Blob{}, errors.New("config: bad magic")
	}
	schema := binary.LittleEndian.Uint32(buf[4:8])
	wantCRC := binary.LittleEndian.Uint32(buf[8:12])

	body := buf[headerBytes:]
	gotCRC := checksum(body)
	if gotCRC != wantCRC {
		return Blob{}, errors.New("config: CRC mismatch")
	}

	var entries []Entry
	for len(body) > 0 {
		if len(body) < 4 {
			return Blob{}, errors.New("config: truncated TLV header")
		}
		tag := binary.LittleEndian.Uint16(body[0:2])
		length := binary.LittleEndian.Uint16(body[2:4])
		body = body[4:]
		if int(length) > len(body) {
			return Blob{}, errors.New("config: truncated TLV value")
		}
		value := make([]byte, length)
		copy(value, body[:length])
		entries = append(entries, Entry{Tag: tag, Value: value})
		body = body[length:]
	}

	return Blob{Schema: schema, Entries: entries}, nil
}

// Lookup returns the first entry matching tag.
func (b Blob) Lookup(tag uint16) (Entry, bool) {
	for _, e := range b.Entries {
		if e.Tag == tag {
			return e, true
		}
	}
	return Entry{}, false
}

// Float64 decodes an entry's 8-byte IEEE-754 value, matching the
// register file's float64-valued Get/Set convention.
func (e Entry) Float64() (float64, error) {
	if len(e.Value) != 8 {
		return 0, errors.New("config: entry is not 8 bytes wide")
	}
	bits := binary.LittleEndian.Uint64(e.Value)
	return math.Float64frombits(bits), nil
}

// Float64Entry builds an 8-byte TLV entry for tag.
func Float64Entry(tag uint16, v float64) Entry {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return Entry{Tag: tag, Value: buf}
}
