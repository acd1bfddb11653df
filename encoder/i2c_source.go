//go:build tinygo

package encoder

import "bldcservo/core"

// I2CAngleSource polls an AS5048/AS5600-family I2C absolute angle
// encoder at its own device-specific register cadence. A NACK or lost
// arbitration aborts the current poll and re-initializes the bus
// config on the next one rather than retrying inline.
type I2CAngleSource struct {
	name    string
	cpr     uint32
	bus     core.I2CBusID
	addr    core.I2CAddress
	angleReg []byte

	needsReinit bool
	slot        SeqSlot[RawSample]
}

// NewI2CAngleSource returns a 12-bit (AS5600) or 14-bit (AS5048)
// source reading angleReg (the device's angle register address bytes).
func NewI2CAngleSource(name string, bus core.I2CBusID, addr core.I2CAddress, angleReg []byte, cpr uint32) *I2CAngleSource {
	return &I2CAngleSource{name: name, bus: bus, addr: addr, angleReg: angleReg, cpr: cpr}
}

// Poll performs one I2C register read from the background loop.
func (s *I2CAngleSource) Poll() {
	if s.needsReinit {
		if err := core.MustI2C().ConfigureBus(s.bus, 400_000); err != nil {
			return
		}
		s.needsReinit = false
	}

	data, err := core.MustI2C().Read(s.bus, s.addr, s.angleReg, 2)
	if err != nil {
		s.needsReinit = true
		s.slot.Write(RawSample{Active: false})
		return
	}

	value := uint32(data[0])<<8 | uint32(data[1])
	s.slot.Write(RawSample{Value: value, Nonce: s.slot.Read().Nonce + 1, Active: true})
}

func (s *I2CAngleSource) Name() string     { return s.name }
func (s *I2CAngleSource) Latest() RawSample { return s.slot.Read() }
func (s *I2CAngleSource) CPR() uint32      { return s.cpr }
func (s *I2CAngleSource) IsReference() bool { return true }
