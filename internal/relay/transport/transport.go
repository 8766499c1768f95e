package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/stormglass/weemirror/internal/observability"
)

var (
	ErrHostRequired = errors.New("transport: host required")
	ErrClosed       = errors.New("transport: closed")
)

const eventChanSize = 128

// EventKind tags one lifecycle or data event of the connection.
type EventKind int

const (
	KindConnected EventKind = iota
	KindFrame
	KindError
	KindDisconnected
)

// Event is one ordered occurrence on the connection. Frame carries the
// payload for KindFrame; Err carries the reason for KindError.
type Event struct {
	Kind  EventKind
	Frame []byte
	Err   error
}

// Options are the connection parameters for one dial.
type Options struct {
	Host        string
	Port        int
	UseTLS      bool
	DialTimeout time.Duration
	QuitTimeout time.Duration
}

// WithDefaults fills unset timeouts.
func (o Options) WithDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.QuitTimeout <= 0 {
		o.QuitTimeout = time.Second
	}
	return o
}

// Validate checks the dial parameters.
func (o Options) Validate() error {
	if o.Host == "" {
		return ErrHostRequired
	}
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("transport: invalid port %d", o.Port)
	}
	return nil
}

// Transport owns one relay socket. It emits a Connected event, then
// Frame events as complete frames arrive, an Error event on any socket
// or framing fault, and finally exactly one Disconnected event before
// the event channel closes.
type Transport struct {
	conn        net.Conn
	events      chan Event
	quitTimeout time.Duration
	writeMu     sync.Mutex
	closed      atomic.Bool
	closeOnce   sync.Once
	log         zerolog.Logger
}

// Dial connects to the relay. When opts.UseTLS is set, certificate
// validation is intentionally skipped: relays commonly run self-signed
// certificates and the protocol carries its own credential.
func Dial(ctx context.Context, opts Options, log zerolog.Logger) (*Transport, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if opts.UseTLS {
		tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
		handshakeCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		err := tlsConn.HandshakeContext(handshakeCtx)
		cancel()
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	t := &Transport{
		conn:        conn,
		events:      make(chan Event, eventChanSize),
		quitTimeout: opts.QuitTimeout,
		log:         log.With().Str("component", "transport").Str("address", address).Logger(),
	}
	t.events <- Event{Kind: KindConnected}
	go t.readLoop()
	return t, nil
}

// Events returns the connection's ordered event stream. The channel is
// closed after the Disconnected event.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Send writes raw bytes to the socket. Safe to call from any goroutine.
func (t *Transport) Send(data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.conn.Write(data)
	return err
}

// Close performs a graceful shutdown: a textual quit command is flushed
// within a bounded timeout, then the socket is torn down. It never
// blocks on an unresponsive peer.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.writeMu.Lock()
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.quitTimeout))
		_, _ = t.conn.Write([]byte("quit\n"))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) readLoop() {
	defer close(t.events)
	var r reassembler
	chunk := make([]byte, 16*1024)
	for {
		n, err := t.conn.Read(chunk)
		if n > 0 {
			observability.CountBytesRead(n)
			frames, ferr := r.push(chunk[:n])
			for _, frame := range frames {
				observability.CountFrameRead()
				t.events <- Event{Kind: KindFrame, Frame: frame}
			}
			if ferr != nil {
				t.log.Error().Err(ferr).Msg("framing fault, dropping connection")
				t.fail(ferr)
				return
			}
		}
		if err != nil {
			if t.closed.Load() {
				t.emit(Event{Kind: KindDisconnected})
				return
			}
			t.fail(err)
			return
		}
	}
}

// fail reports a socket fault and completes the lifecycle. Faults are
// never fatal to the process; the session decides whether to redial.
func (t *Transport) fail(err error) {
	t.closed.Store(true)
	_ = t.conn.Close()
	t.emit(Event{Kind: KindError, Err: err})
	t.emit(Event{Kind: KindDisconnected})
}

// emit delivers a terminal event without blocking: a consumer that has
// abandoned the connection learns the same thing from the channel
// close that follows.
func (t *Transport) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
	}
}
