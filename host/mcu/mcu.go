// Package mcu is the bench-host side of the byte-stream link: it opens
// the serial port, speaks the sync/length/sequence/CRC envelope via
// protocol.HostTransport, and exchanges register/RPC frames with the
// servo board.
package mcu

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"bldcservo/host/serial"
	"bldcservo/identity"
	"bldcservo/protocol"
)

// Device represents a connection to a servo controller board.
type Device struct {
	transport *protocol.HostTransport
	port      serial.Port

	selfAddr uint8
	destAddr uint8

	connected bool
}

// NewDevice creates a new Device (not yet connected). selfAddr and
// destAddr are this host's and the target's addresses in the
// (source,destination) id pair every frame carries.
func NewDevice(selfAddr, destAddr uint8) *Device {
	return &Device{selfAddr: selfAddr, destAddr: destAddr}
}

// Connect opens a serial port at the default baud and frames it.
func (d *Device) Connect(devicePath string) error {
	return d.ConnectWithConfig(serial.DefaultConfig(devicePath))
}

// ConnectWithConfig connects with a custom serial configuration.
func (d *Device) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open serial port")
	}

	d.port = port
	d.transport = protocol.NewHostTransport(port)
	d.connected = true

	// Give the board time to come out of reset if it just powered on.
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Close closes the connection.
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return err
		}
	}
	d.connected = false
	return nil
}

// IsConnected reports whether the device is connected.
func (d *Device) IsConnected() bool {
	return d.connected
}

// Exchange sends one request frame and waits for its reply frame.
func (d *Device) Exchange(req protocol.Frame, timeout time.Duration) (protocol.Frame, error) {
	if !d.connected {
		return protocol.Frame{}, fmt.Errorf("not connected")
	}
	req.Source = d.selfAddr
	req.Destination = d.destAddr

	body, err := protocol.EncodeFrame(req)
	if err != nil {
		return protocol.Frame{}, errors.Wrap(err, "encode frame")
	}
	if err := d.transport.SendFrameWithTimeout(body, timeout); err != nil {
		return protocol.Frame{}, errors.Wrap(err, "send frame")
	}

	resp, err := d.transport.ReceiveResponse(timeout)
	if err != nil {
		return protocol.Frame{}, errors.Wrap(err, "receive reply")
	}
	reply, err := protocol.DecodeFrame(resp.Payload)
	if err != nil {
		return protocol.Frame{}, errors.Wrap(err, "decode reply")
	}
	return reply, nil
}

// ReadF32 reads one f32 register by address.
func (d *Device) ReadF32(addr uint16) (float32, error) {
	req := protocol.Frame{Subframes: []protocol.Subframe{
		{Opcode: protocol.OpReadF32, Count: 1, StartRegister: addr},
	}}
	reply, err := d.Exchange(req, 1*time.Second)
	if err != nil {
		return 0, err
	}
	if len(reply.Subframes) == 0 || len(reply.Subframes[0].Values) < 4 {
		return 0, fmt.Errorf("empty reply for register %d", addr)
	}
	v := reply.Subframes[0].Values
	bits := uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24
	return math.Float32frombits(bits), nil
}

// WriteF32 writes one f32 register by address.
func (d *Device) WriteF32(addr uint16, value float32) error {
	bits := math.Float32bits(value)
	req := protocol.Frame{Subframes: []protocol.Subframe{
		{
			Opcode: protocol.OpWriteF32, Count: 1, StartRegister: addr,
			Values: []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)},
		},
	}}
	_, err := d.Exchange(req, 1*time.Second)
	return err
}

// StreamF32 polls addr at up to hz samples/second until ctx is
// canceled, sending each read on the returned channel. The limiter
// protects the board's command UART from a runaway host loop; a
// disconnect or read error closes the channel after sending the error.
func (d *Device) StreamF32(ctx context.Context, addr uint16, hz float64) (<-chan float32, <-chan error) {
	values := make(chan float32)
	errs := make(chan error, 1)
	limiter := rate.NewLimiter(rate.Limit(hz), 1)

	go func() {
		defer close(values)
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			v, err := d.ReadF32(addr)
			if err != nil {
				errs <- err
				return
			}
			select {
			case values <- v:
			case <-ctx.Done():
				return
			}
		}
	}()

	return values, errs
}

// ReadIdentity reads the firmware identity block at register 0x0000.
func (d *Device) ReadIdentity() (identity.Record, error) {
	req := protocol.Frame{Subframes: []protocol.Subframe{
		{Opcode: protocol.OpReadInt32, Count: 5, StartRegister: 0x0000},
	}}
	reply, err := d.Exchange(req, 1*time.Second)
	if err != nil {
		return identity.Record{}, err
	}
	if len(reply.Subframes) == 0 {
		return identity.Record{}, fmt.Errorf("empty identity reply")
	}
	return identity.Decode(reply.Subframes[0].Values)
}
