package firehose

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/health"
	"github.com/c360/tubewatch/pkg/retry"
	"github.com/c360/tubewatch/stats"
)

// Handler processes one frame. It is called synchronously, in arrival
// order, from the supervisor's read loop.
type Handler interface {
	Handle(ctx context.Context, frame []byte) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, frame []byte) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, frame []byte) error { return f(ctx, frame) }

// Metrics receives connection lifecycle events. metric.Metrics implements it.
type Metrics interface {
	RecordConnectionState(state string)
	RecordConnectAttempt(success bool)
	RecordBackoff(wait time.Duration)
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// Supervisor owns the Jetstream connection: it dials, reads frames and
// hands them to the Handler, keeps the connection alive with pings, and
// reconnects with exponential backoff until the attempt budget is spent or
// its context is cancelled.
type Supervisor struct {
	cfg      Config
	endpoint string
	handler  Handler
	stats    *stats.RunStats
	console  *stats.Printer
	logger   *slog.Logger
	metrics  Metrics
	dialer   *websocket.Dialer
	now      func() time.Time

	// Owned by the Run goroutine
	backoff *retry.Backoff

	running       atomic.Bool
	state         atomic.Int32
	attempts      atomic.Int64
	connectedOnce atomic.Bool
	session       atomic.Value // string
}

// New creates a supervisor. Counters are reset and the status banner is
// printed through console on every successful connection.
func New(cfg Config, handler Handler, console *stats.Printer, opts ...Option) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil || console == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Supervisor", "New", "handler and console are required")
	}

	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}

	backoff, err := retry.NewBackoff(cfg.Retry)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Supervisor", "New", "create backoff")
	}

	s := &Supervisor{
		cfg:      cfg,
		endpoint: endpoint,
		handler:  handler,
		stats:    console.Stats(),
		console:  console,
		logger:   slog.Default(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		now:     time.Now,
		backoff: backoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.session.Store("")
	s.setState(StateDisconnected)
	return s, nil
}

// Endpoint returns the URL the supervisor dials
func (s *Supervisor) Endpoint() string { return s.endpoint }

// State returns the current connection state
func (s *Supervisor) State() State { return State(s.state.Load()) }

// Attempts returns the number of consecutive failed connection cycles
func (s *Supervisor) Attempts() int { return int(s.attempts.Load()) }

// Session returns the id of the current connection epoch, "" before the
// first successful connection
func (s *Supervisor) Session() string { return s.session.Load().(string) }

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	if s.metrics != nil {
		s.metrics.RecordConnectionState(st.String())
	}
}

// Run drives the connection until ctx is cancelled or the retry budget is
// exhausted. Cancellation is a clean shutdown and returns nil; exhaustion
// returns a Fatal error wrapping errors.ErrMaxRetriesExceeded.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Supervisor", "Run", "check running state")
	}
	defer s.running.Store(false)

	s.logger.Info("Supervisor starting",
		"endpoint", s.endpoint,
		"max_attempts", s.backoff.MaxAttempts(),
		"ping_interval", s.cfg.PingInterval,
		"ping_timeout", s.cfg.PingTimeout)

	for {
		if ctx.Err() != nil {
			return s.stop()
		}

		s.console.Line("Connection attempt %d...", s.backoff.Attempts()+1)
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return s.stop()
		}

		s.setState(StateDisconnected)
		if err != nil {
			s.console.Line("Connection failed: %v", err)
			s.logger.Warn("Connection cycle ended", "error", err, "attempt", s.backoff.Attempts()+1)
		}

		wait, ok := s.backoff.Failure()
		s.attempts.Store(int64(s.backoff.Attempts()))
		if !ok {
			s.setState(StateExhausted)
			s.console.Line("Max retries reached. Exiting.")
			s.logger.Error("Giving up on feed connection", "attempts", s.backoff.Attempts())
			return errors.WrapFatal(errors.ErrMaxRetriesExceeded, "Supervisor", "Run", "reconnect")
		}

		if s.metrics != nil {
			s.metrics.RecordBackoff(wait)
		}
		s.console.Line("Retrying in %s...", formatWait(wait))
		if err := retry.Sleep(ctx, wait); err != nil {
			return s.stop()
		}
	}
}

// stop renders the final status once and marks the supervisor stopped
func (s *Supervisor) stop() error {
	s.setState(StateStopped)
	s.console.Line("\n\nStopping...")
	if s.connectedOnce.Load() {
		s.console.Status()
		s.console.Line("\n")
	}
	s.logger.Info("Supervisor stopped", "session", s.Session())
	return nil
}

// runConnection performs one connect/read cycle. It returns why the cycle
// ended; the caller treats every return as a failed cycle.
func (s *Supervisor) runConnection(ctx context.Context) error {
	s.setState(StateConnecting)

	header := http.Header{}
	if s.cfg.UserAgent != "" {
		header.Set("User-Agent", s.cfg.UserAgent)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.endpoint, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordConnectAttempt(false)
		}
		var netErr net.Error
		if ctx.Err() == nil && stderrors.As(err, &netErr) && netErr.Timeout() {
			err = fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, err)
		}
		if resp != nil {
			err = fmt.Errorf("%w (http status %d)", err, resp.StatusCode)
		}
		return errors.WrapTransient(err, "Supervisor", "runConnection", "dial")
	}
	defer conn.Close()

	s.onConnected()

	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}

	// The read deadline is only an idle guard; pong tracking lives in
	// pingLoop and does not move forward on data frames.
	window := s.cfg.readWindow()
	extend := func() error { return conn.SetReadDeadline(s.now().Add(window)) }
	if err := extend(); err != nil {
		return errors.WrapTransient(err, "Supervisor", "runConnection", "set read deadline")
	}
	hb := &heartbeat{}
	conn.SetPongHandler(func(string) error {
		hb.pong(s.now())
		return extend()
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go s.pingLoop(conn, hb, done, &wg)
	go s.watchContext(ctx, conn, done, &wg)
	defer func() {
		close(done)
		wg.Wait()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if hb.expired.Load() {
				return errors.WrapTransient(
					fmt.Errorf("%w: no pong within %s", errors.ErrHeartbeatTimeout, s.cfg.PingTimeout),
					"Supervisor", "runConnection", "heartbeat")
			}
			return s.readError(err)
		}
		if err := extend(); err != nil {
			return errors.WrapTransient(err, "Supervisor", "runConnection", "set read deadline")
		}
		s.dispatch(ctx, frame)
	}
}

func (s *Supervisor) onConnected() {
	s.backoff.Reset()
	s.attempts.Store(0)
	s.stats.Reset(s.now())
	s.connectedOnce.Store(true)

	session := uuid.NewString()
	s.session.Store(session)
	s.setState(StateConnected)
	if s.metrics != nil {
		s.metrics.RecordConnectAttempt(true)
	}

	s.console.Banner()
	s.logger.Info("Connected to feed", "endpoint", s.endpoint, "session", session)
}

// dispatch hands one frame to the handler. A failing or panicking handler
// never takes the connection down.
func (s *Supervisor) dispatch(ctx context.Context, frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			s.console.Line("\nError processing message: %v", r)
		}
	}()

	if err := s.handler.Handle(ctx, frame); err != nil {
		s.logger.Warn("Message handling failed", "error", err, "bytes", len(frame))
		s.console.Line("\nError processing message: %v", err)
	}
}

// heartbeat tracks pings and pongs of one connection
type heartbeat struct {
	lastPong atomic.Int64 // unix nanoseconds
	expired  atomic.Bool
}

func (h *heartbeat) pong(at time.Time) { h.lastPong.Store(at.UnixNano()) }

// answeredSince reports whether a pong arrived at or after sent
func (h *heartbeat) answeredSince(sent time.Time) bool {
	return h.lastPong.Load() >= sent.UnixNano()
}

// pingLoop sends a ping every PingInterval until done is closed. A ping
// that is not answered within PingTimeout closes the connection and marks
// the heartbeat expired, whatever data frames arrive meanwhile.
func (s *Supervisor) pingLoop(conn *websocket.Conn, hb *heartbeat, done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	var (
		deadline *time.Timer
		expiry   <-chan time.Time
		sentAt   time.Time
	)
	defer func() {
		if deadline != nil {
			deadline.Stop()
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sent := s.now()
			if err := conn.WriteControl(websocket.PingMessage, nil, sent.Add(s.cfg.PingTimeout)); err != nil {
				s.logger.Debug("Ping failed", "error", err)
				return
			}
			// An outstanding ping keeps its own deadline
			if expiry == nil {
				sentAt = sent
				deadline = time.NewTimer(s.cfg.PingTimeout)
				expiry = deadline.C
			}
		case <-expiry:
			expiry = nil
			deadline = nil
			if hb.answeredSince(sentAt) {
				continue
			}
			s.logger.Warn("Pong not received in time", "ping_timeout", s.cfg.PingTimeout)
			hb.expired.Store(true)
			_ = conn.Close()
			return
		}
	}
}

// watchContext closes the connection when ctx is cancelled so a blocked
// ReadMessage returns
func (s *Supervisor) watchContext(ctx context.Context, conn *websocket.Conn, done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	select {
	case <-done:
	case <-ctx.Done():
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, s.now().Add(time.Second))
		_ = conn.Close()
	}
}

// readError turns a ReadMessage failure into a classified error and reports
// close frames to the operator
func (s *Supervisor) readError(err error) error {
	var closeErr *websocket.CloseError
	if stderrors.As(err, &closeErr) {
		s.console.Line("\nWebSocket connection closed (status: %d)", closeErr.Code)
		s.logger.Info("Feed closed the connection", "code", closeErr.Code, "reason", closeErr.Text)
		return errors.WrapTransient(
			fmt.Errorf("%w: close %d %s", errors.ErrConnectionLost, closeErr.Code, closeErr.Text),
			"Supervisor", "runConnection", "read")
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.WrapTransient(
			fmt.Errorf("%w: connection idle for %s", errors.ErrHeartbeatTimeout, s.cfg.readWindow()),
			"Supervisor", "runConnection", "read")
	}

	return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
		"Supervisor", "runConnection", "read")
}

// Health reports the connection state for /health
func (s *Supervisor) Health() health.Status {
	var st health.Status
	switch state := s.State(); state {
	case StateConnected:
		st = health.NewHealthy("firehose", "connected, session "+s.Session())
	case StateConnecting, StateDisconnected:
		st = health.NewDegraded("firehose", fmt.Sprintf("%s after %d failed attempts", state, s.Attempts()))
	default:
		st = health.NewUnhealthy("firehose", state.String())
	}
	return st.WithMetrics(&health.Metrics{ErrorCount: s.Attempts()})
}

// formatWait prints whole seconds the way an operator expects
// ("1 seconds", "300 seconds") and falls back to Go syntax below a second.
func formatWait(d time.Duration) string {
	if d >= time.Second && d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int64(d/time.Second))
	}
	return d.String()
}
