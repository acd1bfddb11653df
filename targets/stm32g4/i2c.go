//go:build tinygo

package stm32g4

import (
	"errors"
	"machine"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"bldcservo/core"
)

// i2cRetryBackoff bounds the retry window for a transient NACK (the
// sensor still latching its previous transaction) without masking a
// genuinely unconfigured or disconnected bus.
func i2cRetryBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Microsecond
	b.MaxInterval = 2 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Millisecond
	return b
}

// I2CDriver implements core.I2CDriver over the STM32G4's I2C1/I2C2/I2C3
// peripherals, used for I2C-interfaced linear Hall/magnetic encoder
// sources (e.g. AS5600-family chips) and the onboard EEPROM, if fitted.
type I2CDriver struct {
	mu    sync.Mutex
	buses map[core.I2CBusID]*machine.I2C
}

// NewI2CDriver returns an unconfigured driver.
func NewI2CDriver() *I2CDriver {
	return &I2CDriver{buses: make(map[core.I2CBusID]*machine.I2C)}
}

func (d *I2CDriver) ConfigureBus(bus core.I2CBusID, frequencyHz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var i2c *machine.I2C
	switch bus {
	case 0:
		i2c = machine.I2C1
	case 1:
		i2c = machine.I2C2
	case 2:
		i2c = machine.I2C3
	default:
		return errors.New("stm32g4: unsupported I2C bus id")
	}

	if err := i2c.Configure(machine.I2CConfig{Frequency: frequencyHz}); err != nil {
		return err
	}
	d.buses[bus] = i2c
	return nil
}

func (d *I2CDriver) Write(bus core.I2CBusID, addr core.I2CAddress, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i2c, ok := d.buses[bus]
	if !ok {
		return errors.New("stm32g4: I2C bus not configured")
	}
	return backoff.Retry(func() error {
		return i2c.Tx(uint16(addr), data, nil)
	}, i2cRetryBackoff())
}

func (d *I2CDriver) Read(bus core.I2CBusID, addr core.I2CAddress, regData []byte, readLen uint8) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i2c, ok := d.buses[bus]
	if !ok {
		return nil, errors.New("stm32g4: I2C bus not configured")
	}
	readBuf := make([]byte, readLen)
	err := backoff.Retry(func() error {
		return i2c.Tx(uint16(addr), regData, readBuf)
	}, i2cRetryBackoff())
	if err != nil {
		return nil, err
	}
	return readBuf, nil
}

func (d *I2CDriver) GetMachineBus(bus core.I2CBusID) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i2c, ok := d.buses[bus]
	if !ok {
		return nil, errors.New("stm32g4: I2C bus not configured")
	}
	return i2c, nil
}
