package log

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/tradelog/tradelog/common/dialer"
	C "github.com/tradelog/tradelog/constant"

	E "github.com/sagernet/sing/common/exceptions"
	M "github.com/sagernet/sing/common/metadata"
	N "github.com/sagernet/sing/common/network"
)

var (
	_ Sink        = (*TCPSink)(nil)
	_ Interrupter = (*TCPSink)(nil)
)

type TCPSinkOptions struct {
	Address        string
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	ReconnectDelay time.Duration
	// Dialer defaults to a direct dialer with TCP keep-alive.
	Dialer N.Dialer
}

// TCPSink streams newline-delimited CLEF documents over one persistent
// connection. The connection is dialed lazily; after a failure, events are
// rejected without dialing until the reconnect delay has passed.
type TCPSink struct {
	ctx         context.Context
	cancel      context.CancelFunc
	destination M.Socksaddr
	dialer      N.Dialer
	options     TCPSinkOptions
	buffer      bytes.Buffer
	lastFailure time.Time

	access sync.Mutex
	conn   net.Conn
}

func NewTCPSink(ctx context.Context, options TCPSinkOptions) (*TCPSink, error) {
	if options.Address == "" {
		return nil, E.New("tcp sink requires address")
	}
	destination := M.ParseSocksaddr(options.Address)
	if !destination.IsValid() || destination.Port == 0 {
		return nil, E.New("invalid tcp address: ", options.Address)
	}
	if options.DialTimeout == 0 {
		options.DialTimeout = C.DefaultDialTimeout
	}
	if options.WriteTimeout == 0 {
		options.WriteTimeout = C.DefaultWriteTimeout
	}
	if options.ReconnectDelay == 0 {
		options.ReconnectDelay = C.DefaultReconnectDelay
	}
	outbound := options.Dialer
	if outbound == nil {
		outbound = dialer.New(dialer.Options{})
	}
	ctx, cancel := context.WithCancel(ctx)
	return &TCPSink{
		ctx:         ctx,
		cancel:      cancel,
		destination: destination,
		dialer:      outbound,
		options:     options,
	}, nil
}

func (s *TCPSink) Write(event *Event) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	s.buffer.Reset()
	appendCLEF(&s.buffer, event)
	s.buffer.WriteByte('\n')
	conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
	_, err = conn.Write(s.buffer.Bytes())
	if err != nil {
		s.reset(conn)
		s.lastFailure = time.Now()
		return E.Cause(err, "write to ", s.destination)
	}
	return nil
}

func (s *TCPSink) connection() (net.Conn, error) {
	s.access.Lock()
	conn := s.conn
	s.access.Unlock()
	if conn != nil {
		return conn, nil
	}
	if s.ctx.Err() != nil {
		return nil, s.ctx.Err()
	}
	if !s.lastFailure.IsZero() && time.Since(s.lastFailure) < s.options.ReconnectDelay {
		return nil, E.New("tcp sink ", s.destination, " is reconnecting")
	}
	dialCtx, cancel := context.WithTimeout(s.ctx, s.options.DialTimeout)
	defer cancel()
	conn, err := s.dialer.DialContext(dialCtx, N.NetworkTCP, s.destination)
	if err != nil {
		s.lastFailure = time.Now()
		return nil, E.Cause(err, "dial ", s.destination)
	}
	s.access.Lock()
	defer s.access.Unlock()
	if s.ctx.Err() != nil {
		conn.Close()
		return nil, s.ctx.Err()
	}
	s.conn = conn
	s.lastFailure = time.Time{}
	return conn, nil
}

func (s *TCPSink) reset(conn net.Conn) {
	s.access.Lock()
	defer s.access.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
	conn.Close()
}

// Interrupt aborts a pending dial or write.
func (s *TCPSink) Interrupt() {
	s.cancel()
	s.access.Lock()
	defer s.access.Unlock()
	if s.conn != nil {
		s.conn.SetDeadline(time.Now())
	}
}

func (s *TCPSink) Close() error {
	s.cancel()
	s.access.Lock()
	defer s.access.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
