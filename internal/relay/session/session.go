package session

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/stormglass/weemirror/internal/observability"
	"github.com/stormglass/weemirror/internal/relay/transport"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// FrameHandler consumes one reassembled frame. A returned error means
// the frame could not be decoded; the session treats that as fatal to
// the connection but not to the process.
type FrameHandler interface {
	HandleFrame(frame []byte) error
}

// Session drives one relay connection: the handshake and sync command
// sequence, the keepalive watchdog, and reconnection with remembered
// parameters. All inbound frames are processed on the single Run loop.
type Session struct {
	log       zerolog.Logger
	setPingCh chan time.Duration

	mu    sync.Mutex
	cfg   Config
	tr    *transport.Transport
	state State

	serverVersion atomic.Uint64
}

func New(cfg Config, log zerolog.Logger) *Session {
	return &Session{
		cfg:       cfg.WithDefaults(),
		log:       log.With().Str("component", "session").Logger(),
		setPingCh: make(chan time.Duration, 1),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Options returns the remembered connection parameters, so an embedder
// can persist them. The session itself never writes them anywhere.
func (s *Session) Options() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ServerVersion returns the relay-reported server version, zero until
// the "id" response has been dispatched.
func (s *Session) ServerVersion() float64 {
	return math.Float64frombits(s.serverVersion.Load())
}

// SetServerVersion records the relay version for feature gating.
func (s *Session) SetServerVersion(v float64) {
	s.serverVersion.Store(math.Float64bits(v))
}

// Connect dials the relay and sends the handshake. A connect while one
// is already in flight or established is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = StateConnecting
	cfg := s.cfg
	s.mu.Unlock()

	s.log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Bool("tls", cfg.UseTLS).Msg("connecting")
	tr, err := transport.Dial(ctx, transport.Options{
		Host:        cfg.Host,
		Port:        cfg.Port,
		UseTLS:      cfg.UseTLS,
		DialTimeout: cfg.DialTimeout,
		QuitTimeout: cfg.QuitTimeout,
	}, s.log)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.tr = tr
	s.state = StateConnected
	s.mu.Unlock()

	s.sendHandshake(cfg)
	return nil
}

// sendHandshake issues the credential (when configured) and the fixed
// synchronization sequence, in one write.
func (s *Session) sendHandshake(cfg Config) {
	cmds := make([]string, 0, 8)
	if cfg.Password != "" {
		cmds = append(cmds, initCommand(cfg.Password))
	}
	cmds = append(cmds, syncCommands(cfg.Lines)...)
	s.Send(joinCommands(cmds))
}

// Disconnect tears the connection down. Safe to call in any state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	tr := s.tr
	s.tr = nil
	s.state = StateDisconnected
	s.mu.Unlock()
	if tr != nil {
		_ = tr.Close()
	}
}

// Send writes a command to the relay, newline-terminated. It is a
// silent no-op when not connected; callers that care check State first.
func (s *Session) Send(cmd string) {
	s.mu.Lock()
	tr := s.tr
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || tr == nil {
		return
	}
	if !strings.HasSuffix(cmd, "\n") {
		cmd += "\n"
	}
	if err := tr.Send([]byte(cmd)); err != nil {
		s.log.Warn().Err(err).Msg("send failed")
	}
}

// Input sends text to a buffer by full name.
func (s *Session) Input(fullName, text string) {
	s.Send(fmt.Sprintf("input %s %s", fullName, text))
}

// MarkBufferRead tells the relay a buffer's activity has been seen.
// Servers from version 1 understand the hotlist commands; older ones
// only reset on a buffer switch.
func (s *Session) MarkBufferRead(fullName string) {
	if s.ServerVersion() >= 1 {
		s.Input(fullName, "/buffer set hotlist -1")
		s.Input(fullName, "/input set_unread_current_buffer")
		return
	}
	s.Input("core.weechat", "/buffer "+fullName)
}

// Desync pauses push updates, used around a server-side upgrade.
func (s *Session) Desync() {
	s.Send("desync")
}

// Resync re-requests the full state and resumes push updates.
func (s *Session) Resync() {
	s.mu.Lock()
	lines := s.cfg.Lines
	s.mu.Unlock()
	s.Send(joinCommands(syncCommands(lines)))
}

// SetPing updates the keepalive interval. A running watchdog restarts
// at the new cadence without losing the last-received baseline.
func (s *Session) SetPing(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	s.mu.Lock()
	s.cfg.PingInterval = interval
	s.mu.Unlock()
	select {
	case s.setPingCh <- interval:
	default:
	}
}

func (s *Session) pingInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.PingInterval
}

func (s *Session) autoconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Autoconnect
}

func (s *Session) eventStream() <-chan transport.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tr == nil {
		return nil
	}
	return s.tr.Events()
}

// Run is the serialized event loop: every frame, watchdog tick and
// reconnect decision passes through here, one at a time, so downstream
// state needs no locking. It returns when ctx is cancelled.
func (s *Session) Run(ctx context.Context, handler FrameHandler) error {
	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()
	lastFrame := time.Now()

	for {
		// A nil stream (disconnected) blocks that select arm forever;
		// the ticker keeps retry attempts on the ping cadence.
		events := s.eventStream()
		select {
		case <-ctx.Done():
			s.Disconnect()
			return ctx.Err()

		case interval := <-s.setPingCh:
			ticker.Reset(interval)

		case ev, ok := <-events:
			if !ok {
				s.Disconnect()
				if s.autoconnect() {
					lastFrame = s.reconnect(ctx, lastFrame)
				}
				continue
			}
			switch ev.Kind {
			case transport.KindConnected:
				lastFrame = time.Now()
				s.log.Info().Msg("connected")
			case transport.KindFrame:
				lastFrame = time.Now()
				if err := handler.HandleFrame(ev.Frame); err != nil {
					observability.CountDecodeFailure()
					s.log.Error().Err(err).Msg("frame decode failed, dropping connection")
					s.Disconnect()
					if s.autoconnect() {
						lastFrame = s.reconnect(ctx, lastFrame)
					}
				}
			case transport.KindError:
				s.log.Warn().Err(ev.Err).Msg("socket error")
			case transport.KindDisconnected:
				s.Disconnect()
				s.log.Info().Msg("disconnected")
				if s.autoconnect() {
					lastFrame = s.reconnect(ctx, lastFrame)
				}
			}

		case <-ticker.C:
			switch s.State() {
			case StateConnected:
				if time.Since(lastFrame) > 2*s.pingInterval() && s.autoconnect() {
					s.log.Warn().Dur("since_last_frame", time.Since(lastFrame)).Msg("watchdog expired")
					s.Disconnect()
					lastFrame = s.reconnect(ctx, lastFrame)
				} else {
					s.Send(joinCommands(pingCommands()))
				}
			case StateDisconnected:
				if s.autoconnect() {
					lastFrame = s.reconnect(ctx, lastFrame)
				}
			}
		}
	}
}

// reconnect redials with the remembered parameters. Failures are
// logged only: the next watchdog tick retries.
func (s *Session) reconnect(ctx context.Context, lastFrame time.Time) time.Time {
	observability.CountReconnect()
	if err := s.Connect(ctx); err != nil {
		s.log.Warn().Err(err).Msg("reconnect failed")
		return lastFrame
	}
	return time.Now()
}
