//go:generate go tool mockgen -source=port.go -destination=mock_port.go -package=ble

package ble

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Port is an established, bidirectional byte stream to the BLE module.
//
// A Port is assumed to be already connected and ready for use. Typical
// implementations are serial ports, TCP bridges to a remote module, or
// in-memory fakes used for testing.
type Port interface {
	io.ReadWriteCloser
}

// Dialer opens a Port to the BLE module.
//
// Dialer abstracts how the connection is created and is used during device
// construction only. Once a Port is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial creates and returns a connected Port. It may perform blocking
	// operations and should respect cancellation and deadlines provided by
	// the context.
	Dial(ctx context.Context) (Port, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Port, error)

func (f DialerFunc) Dial(ctx context.Context) (Port, error) {
	return f(ctx)
}

// SerialDialer opens the BLE module over a serial port using
// go.bug.st/serial. The module speaks 115200 8N1 by default.
type SerialDialer struct {
	// PortName is the serial device path, e.g. "/dev/ttyUSB0".
	PortName string
	// BaudRate overrides the 115200 default. Ignored when Mode is set.
	BaudRate int
	// Mode optionally specifies the full line settings.
	Mode *serial.Mode
}

func (d SerialDialer) Dial(ctx context.Context) (Port, error) {
	if ctx == nil {
		return nil, errors.New("ble: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("ble: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = 115200
		}
		mode = &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return port, nil
}
