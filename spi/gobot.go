package spi

import (
	"context"
	"fmt"

	gspi "gobot.io/x/gobot/v2/drivers/spi"
)

// gobotOps is the subset of a gobot SPI connection the bridge drives.
type gobotOps interface {
	ReadCommandData(command []byte, data []byte) error
	WriteBytes(data []byte) error
}

var _ Conn = (*GobotConn)(nil)

// GobotConn bridges a started gobot SPI driver to Conn. The gobot stack
// owns chip select and transaction framing; speed and mode belong to the
// driver configuration.
type GobotConn struct {
	driver *gspi.Driver
	ops    gobotOps
}

func NewGobotConn(driver *gspi.Driver) *GobotConn {
	return &GobotConn{driver: driver}
}

func (g *GobotConn) connection() (gobotOps, error) {
	if g.ops != nil {
		return g.ops, nil
	}
	if g.driver == nil {
		return nil, fmt.Errorf("spi driver not initialized")
	}
	ops, ok := g.driver.Connection().(gobotOps)
	if !ok {
		return nil, fmt.Errorf("spi connection does not support required operations")
	}
	g.ops = ops
	return ops, nil
}

func (g *GobotConn) WriteBytes(_ context.Context, data []byte) error {
	ops, err := g.connection()
	if err != nil {
		return err
	}
	return ops.WriteBytes(data)
}

func (g *GobotConn) ReadCommandData(_ context.Context, command, data []byte) error {
	ops, err := g.connection()
	if err != nil {
		return err
	}
	return ops.ReadCommandData(command, data)
}
