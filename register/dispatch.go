package register

import "bldcservo/protocol"

// maxReplyPayload is the largest DLC a reply frame can round up to.
const maxReplyPayload = 64

// Apply processes one incoming register/RPC frame against the file and
// returns the reply frame. Per the bus contract, every write subframe
// in the request is applied, in frame order, before any read subframe
// produces its reply value - so a frame that both writes and reads the
// same register observes the new value.
func (f *File) Apply(in protocol.Frame, selfAddr uint8) protocol.Frame {
	for _, sf := range in.Subframes {
		if opKind(sf.Opcode) != kindWrite {
			continue
		}
		applyWriteSubframe(f, sf)
	}

	out := protocol.Frame{
		Source:      selfAddr,
		Destination: in.Source,
	}

	size := 3 // source, destination, flags
	overflow := false

	for _, sf := range in.Subframes {
		if opKind(sf.Opcode) != kindRead {
			continue
		}
		reply, ok := buildReplySubframe(f, sf)
		if !ok {
			continue
		}
		replySize := 4 + len(reply.Values)
		if size+replySize > maxReplyPayload {
			overflow = true
			break
		}
		out.Subframes = append(out.Subframes, reply)
		size += replySize
	}

	if overflow {
		out.Flags |= protocol.FlagOverflow
	}
	return out
}

type opKindT uint8

const (
	kindOther opKindT = iota
	kindRead
	kindWrite
)

func opKind(op protocol.Opcode) opKindT {
	switch op {
	case protocol.OpReadInt8, protocol.OpReadInt16, protocol.OpReadInt32, protocol.OpReadF32:
		return kindRead
	case protocol.OpWriteInt8, protocol.OpWriteInt16, protocol.OpWriteInt32, protocol.OpWriteF32:
		return kindWrite
	default:
		return kindOther
	}
}

func opType(op protocol.Opcode) Type {
	switch op {
	case protocol.OpReadInt8, protocol.OpWriteInt8:
		return TypeInt8
	case protocol.OpReadInt16, protocol.OpWriteInt16:
		return TypeInt16
	case protocol.OpReadF32, protocol.OpWriteF32:
		return TypeF32
	default:
		return TypeInt32
	}
}

func applyWriteSubframe(f *File, sf protocol.Subframe) {
	typ := opType(sf.Opcode)
	width := typ.Width()
	for i := 0; i < int(sf.Count); i++ {
		off := i * width
		if off+width > len(sf.Values) {
			return
		}
		addr := sf.StartRegister + uint16(i)
		value := decodeValue(typ, sf.Values[off:off+width])
		_ = f.Set(addr, value) // malformed/out-of-range writes are silently dropped per register
	}
}

func buildReplySubframe(f *File, sf protocol.Subframe) (protocol.Subframe, bool) {
	typ := opType(sf.Opcode)
	width := typ.Width()
	values := make([]byte, 0, int(sf.Count)*width)
	for i := 0; i < int(sf.Count); i++ {
		addr := sf.StartRegister + uint16(i)
		v, err := f.Get(addr)
		if err != nil {
			v = 0
		}
		values = append(values, encodeValue(typ, v)...)
	}
	return protocol.Subframe{
		Opcode:        protocol.ReplyOpcodeFor(width, typ.isFloat()),
		Count:         sf.Count,
		StartRegister: sf.StartRegister,
		Values:        values,
	}, true
}
