package httpapi

import (
	"bufio"
	"crypto/tls"
	"net"
)

// tlsRecordHandshake is the first byte of a TLS ClientHello.
const tlsRecordHandshake = 0x16

// sniffListener multiplexes plaintext HTTP and TLS on one port. Each
// accepted connection's first byte is peeked on a per-connection goroutine
// so a silent client never stalls the accept loop.
type sniffListener struct {
	inner   net.Listener
	tlsConf *tls.Config

	conns  chan net.Conn
	closed chan struct{}
}

func newSniffListener(inner net.Listener, tlsConf *tls.Config) *sniffListener {
	l := &sniffListener{
		inner:   inner,
		tlsConf: tlsConf,
		conns:   make(chan net.Conn),
		closed:  make(chan struct{}),
	}
	go l.acceptLoop()
	return l
}

func (l *sniffListener) acceptLoop() {
	for {
		conn, err := l.inner.Accept()
		if err != nil {
			close(l.closed)
			return
		}
		go l.sniff(conn)
	}
}

func (l *sniffListener) sniff(conn net.Conn) {
	br := bufio.NewReader(conn)
	first, err := br.Peek(1)
	if err != nil {
		conn.Close()
		return
	}
	wrapped := net.Conn(&bufferedConn{Conn: conn, r: br})
	if first[0] == tlsRecordHandshake {
		wrapped = tls.Server(wrapped, l.tlsConf)
	}
	select {
	case l.conns <- wrapped:
	case <-l.closed:
		wrapped.Close()
	}
}

func (l *sniffListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *sniffListener) Close() error {
	return l.inner.Close()
}

func (l *sniffListener) Addr() net.Addr {
	return l.inner.Addr()
}

// bufferedConn replays the peeked bytes ahead of the raw connection.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
