package devices

import (
	"context"
	"fmt"

	"github.com/KevinKickass/OpenVNA/internal/config"
	"github.com/KevinKickass/OpenVNA/internal/transport"
)

// Dialer opens a connected transport for an instrument.
type Dialer func(ctx context.Context, cfg config.InstrumentConfig) (transport.Transport, error)

// DialTransport connects over TCP (SCPI raw socket) or a serial port.
func DialTransport(ctx context.Context, cfg config.InstrumentConfig) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportTCP:
		client := transport.NewTCPClient(cfg.Address, cfg.Timeout, transport.DefaultTerminator)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil

	case config.TransportSerial:
		client := transport.NewSerialClient(cfg.Address, cfg.BaudRate, cfg.Timeout, transport.DefaultTerminator)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown transport: %q", cfg.Transport)
	}
}
