package wire

import (
	"fmt"
	"runtime"

	"go.bug.st/serial"
)

// DefaultBaudRate is the baud rate used when the configuration sets none.
const DefaultBaudRate = 56000

// DefaultSerialPath returns the usual first USB serial port on this platform.
func DefaultSerialPath() string {
	if runtime.GOOS == "windows" {
		return "COM0"
	}
	return "/dev/ttyUSB0"
}

// OpenSerial opens a serial port at 8N1 with blocking reads.
func OpenSerial(path string, baud int) (serial.Port, error) {
	if path == "" {
		return nil, fmt.Errorf("serial port path is required")
	}
	if baud <= 0 {
		return nil, fmt.Errorf("baud rate must be > 0, got %d", baud)
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	// Drop bytes buffered before the port was opened.
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to reset serial port %s: %w", path, err)
	}
	return port, nil
}

// ListSerialPorts returns the serial ports currently present on the system.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
