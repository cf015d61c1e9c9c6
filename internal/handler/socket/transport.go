package socket

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Transport establishes the underlying connection a socket Handler writes
// frames to. TCP and Unix-domain variants are provided; TLS is an optional
// wrapper on top of TCP.
type Transport interface {
	Dial(ctx context.Context, timeout time.Duration) (net.Conn, error)
}

// TLSConfig configures the optional TLS wrapper on a TCP transport.
// Domain is used for SNI and certificate validation; InsecureSkipVerify
// disables validation and exists for tests only.
type TLSConfig struct {
	Domain             string
	InsecureSkipVerify bool
}

// TCPTransport dials host:port, optionally negotiating TLS.
type TCPTransport struct {
	Host string
	Port int
	TLS  *TLSConfig
}

func (t TCPTransport) Dial(ctx context.Context, timeout time.Duration) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", t.Host, t.Port)
	dialer := &net.Dialer{Timeout: timeout}

	if t.TLS == nil {
		return dialer.DialContext(ctx, "tcp", addr)
	}

	tlsDialer := &tls.Dialer{
		NetDialer: dialer,
		Config: &tls.Config{
			ServerName:         t.TLS.Domain,
			InsecureSkipVerify: t.TLS.InsecureSkipVerify,
		},
	}
	return tlsDialer.DialContext(ctx, "tcp", addr)
}

// UnixTransport dials a Unix domain socket at Path.
type UnixTransport struct {
	Path string
}

func (t UnixTransport) Dial(ctx context.Context, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, "unix", t.Path)
}
