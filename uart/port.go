package uart

import (
	"fmt"

	"github.com/tarm/serial"
)

// openNative binds Config to the tarm serial stack; field values map one
// to one.
func openNative(device string, cfg Config) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        cfg.BaudRate,
		Size:        cfg.DataBits,
		Parity:      serial.Parity(cfg.Parity),
		StopBits:    serial.StopBits(cfg.StopBits),
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open serial port: %w", err)
	}
	return port, nil
}
