//go:build tinygo

package core

// UARTBusID identifies a specific hardware UART peripheral.
type UARTBusID uint8

// UARTDriver is the abstract UART interface that core code uses for
// polled, fixed-frame encoder protocols (AkSIM-2, CUI AMT21), alongside
// the SPI/I2C/GPIO HALs, for the encoder sources that require it.
type UARTDriver interface {
	// ConfigureBus sets the baud rate and frame format for a bus.
	ConfigureBus(bus UARTBusID, baud uint32) error

	// Exchange writes tx then reads exactly len(rx) bytes, with an
	// overall deadline of timeoutUS microseconds. Returns the number of
	// bytes actually read before timeout or framing error.
	Exchange(bus UARTBusID, tx []byte, rx []byte, timeoutUS uint32) (int, error)

	// Flush discards any buffered but unread bytes, used for resync
	// after a framing error.
	Flush(bus UARTBusID)
}

var uartDriver UARTDriver

// SetUARTDriver is called by target-specific code to register its driver.
func SetUARTDriver(d UARTDriver) {
	uartDriver = d
}

// MustUART returns the configured driver or panics if missing.
func MustUART() UARTDriver {
	if uartDriver == nil {
		panic("UART driver not configured")
	}
	return uartDriver
}
