//go:build tinygo

package stm32g4

import (
	"errors"
	"machine"

	"bldcservo/core"
)

// uartBuses names the USART peripherals available for polled
// fixed-frame encoder protocols (AkSIM-2's RS485-over-UART frame, CUI
// AMT21's RS485 query/response).
var uartBuses = map[core.UARTBusID]*machine.UART{
	0: machine.UART1,
	1: machine.UART2,
	2: machine.UART3,
}

// UARTDriver implements core.UARTDriver by polling machine.UART's byte
// FIFO against core.GetTime, since TinyGo's blocking Read has no
// deadline parameter of its own.
type UARTDriver struct{}

// NewUARTDriver returns the driver.
func NewUARTDriver() *UARTDriver {
	return &UARTDriver{}
}

func (d *UARTDriver) ConfigureBus(bus core.UARTBusID, baud uint32) error {
	uart, ok := uartBuses[bus]
	if !ok {
		return errors.New("stm32g4: unsupported UART bus id")
	}
	return uart.Configure(machine.UARTConfig{BaudRate: baud})
}

// Exchange writes tx then reads exactly len(rx) bytes, aborting once
// timeoutUS microseconds have elapsed without reaching the requested
// count. Returns the number of bytes actually received.
func (d *UARTDriver) Exchange(bus core.UARTBusID, tx []byte, rx []byte, timeoutUS uint32) (int, error) {
	uart, ok := uartBuses[bus]
	if !ok {
		return 0, errors.New("stm32g4: unsupported UART bus id")
	}

	if len(tx) > 0 {
		if _, err := uart.Write(tx); err != nil {
			return 0, err
		}
	}

	deadline := core.GetTime() + core.TimerFromUS(timeoutUS)
	got := 0
	for got < len(rx) {
		if uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				return got, err
			}
			rx[got] = b
			got++
			continue
		}
		if core.GetTime() >= deadline {
			return got, errors.New("stm32g4: UART exchange timed out")
		}
	}
	return got, nil
}

// Flush discards buffered but unread bytes, used for resync after a
// framing error.
func (d *UARTDriver) Flush(bus core.UARTBusID) {
	uart, ok := uartBuses[bus]
	if !ok {
		return
	}
	for uart.Buffered() > 0 {
		_, _ = uart.ReadByte()
	}
}
