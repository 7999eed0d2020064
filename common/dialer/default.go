package dialer

import (
	"context"
	"net"
	"time"

	E "github.com/sagernet/sing/common/exceptions"
	M "github.com/sagernet/sing/common/metadata"
	N "github.com/sagernet/sing/common/network"
)

type Options struct {
	Timeout           time.Duration
	KeepAlive         time.Duration
	KeepAliveInterval time.Duration
	DisableKeepAlive  bool
}

var _ N.Dialer = (*DefaultDialer)(nil)

// DefaultDialer dials directly with TCP keep-alive enabled, so that idle
// sink connections notice a dead collector.
type DefaultDialer struct {
	dialer   net.Dialer
	listener net.ListenConfig
}

func New(options Options) *DefaultDialer {
	var dialer net.Dialer
	dialer.Timeout = options.Timeout
	if options.DisableKeepAlive {
		dialer.KeepAlive = -1
	} else {
		setKeepAliveConfig(&dialer, options.KeepAlive, options.KeepAliveInterval)
	}
	return &DefaultDialer{dialer: dialer}
}

func (d *DefaultDialer) DialContext(ctx context.Context, network string, destination M.Socksaddr) (net.Conn, error) {
	if !destination.IsValid() {
		return nil, E.New("invalid destination: ", destination)
	}
	switch network {
	case N.NetworkTCP, N.NetworkUDP:
	default:
		return nil, E.New("unsupported network: ", network)
	}
	return d.dialer.DialContext(ctx, network, destination.String())
}

func (d *DefaultDialer) ListenPacket(ctx context.Context, destination M.Socksaddr) (net.PacketConn, error) {
	return d.listener.ListenPacket(ctx, N.NetworkUDP, "")
}
