//go:build tinygo

package stm32g4

import (
	"errors"
	"machine"
	"sync"

	"bldcservo/core"
)

// spiBuses maps the SPI1/2/3 peripherals available for the AksIM-2 and
// AS5047 encoder sources (both SPI-attached).
var spiBuses = map[core.SPIBusID]*machine.SPI{
	0: machine.SPI1,
	1: machine.SPI2,
	2: machine.SPI3,
}

// SPIDriver implements core.SPIDriver on the STM32G4's hardware SPI
// peripherals.
type SPIDriver struct {
	mu        sync.Mutex
	busHandle map[core.SPIBusID]*machine.SPI
}

// NewSPIDriver returns an unconfigured driver.
func NewSPIDriver() *SPIDriver {
	return &SPIDriver{busHandle: make(map[core.SPIBusID]*machine.SPI)}
}

func (d *SPIDriver) ConfigureBus(config core.SPIConfig) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	spi, ok := spiBuses[config.BusID]
	if !ok {
		return nil, errors.New("stm32g4: unsupported SPI bus id")
	}
	if err := spi.Configure(machine.SPIConfig{
		Frequency: config.Rate,
		Mode:      uint8(config.Mode),
	}); err != nil {
		return nil, err
	}
	d.busHandle[config.BusID] = spi
	return spi, nil
}

func (d *SPIDriver) Transfer(busHandle interface{}, txData []byte, rxData []byte) error {
	spi, ok := busHandle.(*machine.SPI)
	if !ok {
		return errors.New("stm32g4: invalid SPI bus handle")
	}
	if len(txData) != len(rxData) {
		return errors.New("stm32g4: tx/rx buffer length mismatch")
	}
	return spi.Tx(txData, rxData)
}

func (d *SPIDriver) GetBusInfo() map[core.SPIBusID]string {
	return map[core.SPIBusID]string{0: "spi1", 1: "spi2", 2: "spi3"}
}
