// Package session implements the WebSocket Session state machine (component
// D, spec §4.4): one secure WebSocket connection to the CSMS, with an
// unbounded FIFO send queue, connect-timeout, and exponential-backoff
// reconnection that survives transport and server failures indefinitely.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ocpp-gateway/gateway/internal/backoff"
	"github.com/ocpp-gateway/gateway/internal/gwerrors"
	"github.com/ocpp-gateway/gateway/internal/mapping"
	"github.com/ocpp-gateway/gateway/internal/metrics"
)

// State is one of the WebSocket Session's connection states (spec §4.4).
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateReconnecting
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config is everything one Session needs, translated from CsmsConfig /
// DeviceConfig / SystemConfig.Security by the Supervisor (spec §4.5).
type Config struct {
	DeviceID                string
	URL                     string
	Subprotocol             string
	ReconnectIntervalSec    int
	MaxReconnectIntervalSec int
	MaxReconnectAttempts    int
	ConnectTimeoutSec       int
	Security                SecurityConfig
}

// Callbacks are the Session's external collaborators: message delivery,
// state observation, and terminal-error reporting.
type Callbacks struct {
	OnMessage     func(frame []byte)
	OnStateChange func(State)
	OnError       func(err error)
}

// Session owns one WebSocket connection to the CSMS (spec §4.4).
type Session struct {
	id      string
	cfg     Config
	parsed  ParsedURL
	policy  *backoff.Policy
	clock   backoff.Clock
	limiter *rate.Limiter
	reg     *metrics.Registry
	logger  *slog.Logger
	cb      Callbacks
	dialer  *websocket.Dialer

	state   atomic.Int32
	attempt atomic.Int32

	qmu             sync.Mutex
	queue           [][]byte
	writeInProgress bool
	wake            chan struct{}

	connMu sync.Mutex
	conn   *websocket.Conn

	tmpl atomic.Pointer[mapping.MappingTemplate]

	startOnce sync.Once
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New constructs a Session in the Disconnected state. limiter, if non-nil,
// throttles reconnect dials fleet-wide (spec's concurrency model permits a
// shared rate limiter across Sessions); clock defaults to backoff.RealClock.
func New(cfg Config, policy *backoff.Policy, clock backoff.Clock, limiter *rate.Limiter, reg *metrics.Registry, logger *slog.Logger, cb Callbacks) (*Session, error) {
	parsed, insecure, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if insecure {
		logger.Warn("CSMS url uses ws:// (unencrypted); wss:// is recommended", "device_id", cfg.DeviceID)
	}
	if clock == nil {
		clock = backoff.RealClock{}
	}
	if reg == nil {
		reg = metrics.Noop()
	}

	id := uuid.NewString()
	s := &Session{
		id:      id,
		cfg:     cfg,
		parsed:  parsed,
		policy:  policy,
		clock:   clock,
		limiter: limiter,
		reg:     reg,
		logger:  logger.With("component", "session", "device_id", cfg.DeviceID, "session_id", id),
		cb:      cb,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	s.dialer = &websocket.Dialer{
		Subprotocols:     []string{cfg.Subprotocol},
		HandshakeTimeout: time.Duration(connectTimeoutOr10(cfg)) * time.Second,
	}
	s.setState(StateDisconnected)
	return s, nil
}

func connectTimeoutOr10(cfg Config) int {
	if cfg.ConnectTimeoutSec > 0 {
		return cfg.ConnectTimeoutSec
	}
	return 10
}

// Connect starts the Session's run loop. Idempotent: subsequent calls are
// no-ops.
func (s *Session) Connect() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// State returns the Session's current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// ID returns the Session's opaque instance identifier, stable for its
// lifetime and distinct from the device id — useful for correlating log
// lines across a device's Sessions if it is ever recreated by the
// Supervisor.
func (s *Session) ID() string {
	return s.id
}

// SetTemplate atomically replaces the Session's resolved mapping reference
// (spec §4.5: "replaces its mapping reference atomically; in-flight frames
// are unaffected because mappings are consumed by the bridge layer, not by
// the WebSocket state machine"). The WS state machine itself never reads
// this value; it exists for the device I/O adapter layer to consume.
func (s *Session) SetTemplate(t mapping.MappingTemplate) {
	s.tmpl.Store(&t)
}

// Template returns the Session's current resolved mapping, if one has been
// set.
func (s *Session) Template() (mapping.MappingTemplate, bool) {
	t := s.tmpl.Load()
	if t == nil {
		return mapping.MappingTemplate{}, false
	}
	return *t, true
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	if s.cb.OnStateChange != nil {
		s.cb.OnStateChange(st)
	}
	s.reg.SessionStateTotal.WithLabelValues(s.cfg.DeviceID, st.String()).Inc()
}

// Send enqueues frame for delivery (spec §4.4 send queue). Returns an error
// only if the Session is already Closed/Error-terminal; otherwise the frame
// is accepted unconditionally and delivered once a Connected state is
// reached, in order, even across reconnects.
func (s *Session) Send(frame []byte) error {
	switch s.State() {
	case StateClosed, StateError:
		return gwerrors.Sentinel(gwerrors.KindClosed)
	}
	s.qmu.Lock()
	s.queue = append(s.queue, frame)
	s.reg.SendQueueDepth.WithLabelValues(s.cfg.DeviceID).Set(float64(len(s.queue)))
	s.qmu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close is idempotent (spec §4.4 "close(reason) is idempotent"). Closed or
// Closing states are no-ops; any other state cancels pending timers,
// attempts a graceful close, and transitions to Closed.
func (s *Session) Close(reason string) {
	switch s.State() {
	case StateClosed, StateClosing:
		return
	}
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		// A Session that was never connected has no run loop to close doneCh;
		// this also keeps a later Connect from starting one.
		s.startOnce.Do(func() { close(s.doneCh) })
		close(s.stopCh)
		s.connMu.Lock()
		if s.conn != nil {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
				time.Now().Add(time.Second))
			_ = s.conn.Close()
		}
		s.connMu.Unlock()
	})
	<-s.doneCh
	s.setState(StateClosed)
}

// run is the Session's single serialized executor: every state transition,
// timer callback, and I/O completion for this Session happens here (spec
// §4.4 "single-threaded cooperative per session").
func (s *Session) run() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		err := s.connectAndServe()
		if s.isStopping() {
			return
		}
		if err != nil {
			s.logger.Warn("session connection ended", "error", err)
		}

		attempt := s.attempt.Add(1)
		if s.cfg.MaxReconnectAttempts > 0 && int(attempt) > s.cfg.MaxReconnectAttempts {
			s.setState(StateError)
			if s.cb.OnError != nil {
				s.cb.OnError(gwerrors.Newf(gwerrors.KindReconnectExhausted, "exceeded %d reconnect attempts", s.cfg.MaxReconnectAttempts))
			}
			return
		}

		s.setState(StateReconnecting)
		s.reg.ReconnectAttemptsTotal.WithLabelValues(s.cfg.DeviceID).Inc()
		delay := s.policy.Delay(int(attempt))
		timer := s.clock.NewTimer(delay)
		select {
		case <-timer.C():
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Session) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// connectAndServe dials once, and if successful serves the connection
// (read loop + write drain) until it fails or the Session is closed. It
// returns the terminating error, or nil if closed cleanly.
func (s *Session) connectAndServe() error {
	s.setState(StateConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(connectTimeoutOr10(s.cfg))*time.Second)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return gwerrors.Wrap(gwerrors.KindTimeout, err, "reconnect throttled")
		}
	}

	if s.parsed.Scheme == "wss" {
		tlsCfg, err := buildTLSConfig(s.parsed.Host, s.cfg.Security)
		if err != nil {
			return err
		}
		s.dialer.TLSClientConfig = tlsCfg
	}

	conn, _, err := s.dialer.DialContext(ctx, s.parsed.String(), http.Header{})
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindTransportWS, err, "dial failed")
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.attempt.Store(0)
	s.setState(StateConnected)

	servedCtx, servedCancel := context.WithCancel(context.Background())
	errCh := make(chan error, 2)

	go s.readLoop(conn, servedCtx, errCh)
	go s.writeLoop(conn, servedCtx, errCh)

	var finalErr error
	select {
	case finalErr = <-errCh:
	case <-s.stopCh:
	}
	servedCancel()

	s.connMu.Lock()
	_ = conn.Close()
	s.conn = nil
	s.connMu.Unlock()

	<-errCh // drain the other goroutine's result so it doesn't leak

	if s.isStopping() {
		return nil
	}
	return finalErr
}

func (s *Session) readLoop(conn *websocket.Conn, ctx context.Context, errCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- gwerrors.Wrap(gwerrors.KindTransportRead, err, "read failed")
			return
		}
		s.reg.FramesReceivedTotal.WithLabelValues(s.cfg.DeviceID).Inc()
		if s.cb.OnMessage != nil {
			s.cb.OnMessage(data)
		}
		select {
		case <-ctx.Done():
			errCh <- nil
			return
		default:
		}
	}
}

// writeLoop drains the FIFO send queue. It is the only goroutine writing to
// conn, so one write is in flight at a time (writeInProgress records it);
// on write completion the next item is taken. The queue is retained across reconnects: items
// this loop fails to send stay at the front for the next Connected cycle.
func (s *Session) writeLoop(conn *websocket.Conn, ctx context.Context, errCh chan<- error) {
	for {
		frame, ok := s.popFront()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-ctx.Done():
				errCh <- nil
				return
			}
		}

		s.qmu.Lock()
		s.writeInProgress = true
		s.qmu.Unlock()

		err := conn.WriteMessage(websocket.TextMessage, frame)

		s.qmu.Lock()
		s.writeInProgress = false
		s.qmu.Unlock()

		if err != nil {
			s.requeueFront(frame)
			errCh <- gwerrors.Wrap(gwerrors.KindTransportWrite, err, "write failed")
			return
		}
		s.reg.FramesSentTotal.WithLabelValues(s.cfg.DeviceID).Inc()
	}
}

func (s *Session) popFront() ([]byte, bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	frame := s.queue[0]
	s.queue = s.queue[1:]
	s.reg.SendQueueDepth.WithLabelValues(s.cfg.DeviceID).Set(float64(len(s.queue)))
	return frame, true
}

func (s *Session) requeueFront(frame []byte) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	s.queue = append([][]byte{frame}, s.queue...)
	s.reg.SendQueueDepth.WithLabelValues(s.cfg.DeviceID).Set(float64(len(s.queue)))
}
