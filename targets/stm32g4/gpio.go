//go:build tinygo

package stm32g4

import (
	"machine"

	"bldcservo/core"
)

// GPIODriver implements core.GPIODriver directly on TinyGo's
// machine.Pin, used for the gate driver's enable/nFAULT lines and any
// encoder chip-select pins not otherwise owned by SPI/I2C/UART.
type GPIODriver struct{}

// NewGPIODriver returns the driver. Pin configuration happens lazily on
// first use per pin rather than requiring an upfront pin table.
func NewGPIODriver() *GPIODriver {
	return &GPIODriver{}
}

func (d *GPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	return nil
}

func (d *GPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return nil
}

func (d *GPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return nil
}

func (d *GPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machine.Pin(pin).Set(value)
	return nil
}

func (d *GPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	return machine.Pin(pin).Get(), nil
}

func (d *GPIODriver) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}
