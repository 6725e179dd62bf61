// Package transport provides the outbound HTTP transport used for the
// commerce platform API.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// The platform's CDN fingerprints TLS ClientHellos and throttles clients
// that present Go's native handshake. Order creation sits on the checkout
// critical path, so every Admin API call goes out with a Chrome-like
// ClientHello instead: uTLS for the handshake, ALPN deciding between
// HTTP/2 framing and an HTTP/1.1 fallback.

// NewBrowserTransport returns an http.RoundTripper whose TLS handshake
// matches a current Chrome build. dialTimeout bounds the TCP dial only;
// request deadlines come from the caller's context or client timeout.
func NewBrowserTransport(dialTimeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: dialTimeout}

	return &browserTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialBrowserTLS(ctx, dialer, network, addr)
			},
		},
		h1: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialBrowserTLS(ctx, dialer, network, addr)
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// browserTransport prefers HTTP/2 and remembers per-host when an origin
// only speaks HTTP/1.1, so the fallback round trip is paid once per host.
type browserTransport struct {
	h2 *http2.Transport
	h1 *http.Transport

	mu     sync.Mutex
	h1Only map[string]bool
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	t.mu.Lock()
	useH1 := t.h1Only[host]
	t.mu.Unlock()

	if !useH1 {
		resp, err := t.h2.RoundTrip(req)
		if err == nil {
			return resp, nil
		}
		t.mu.Lock()
		if t.h1Only == nil {
			t.h1Only = make(map[string]bool)
		}
		t.h1Only[host] = true
		t.mu.Unlock()
	}

	return t.h1.RoundTrip(req)
}

// dialBrowserTLS performs the TCP dial and the Chrome-fingerprint handshake.
func dialBrowserTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", host, err)
	}
	return tlsConn, nil
}
