package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/valkyrie/internal/shared/id"
	"go.uber.org/zap"
)

var (
	// ErrNotConnected is returned by Write before the connection is up.
	ErrNotConnected = errors.New("network: socket not connected")
	// ErrSocketClosed is returned for operations on a closed socket.
	ErrSocketClosed = errors.New("network: socket closed")
	// ErrAlreadyConnecting is returned by a second Connect.
	ErrAlreadyConnecting = errors.New("network: connect already issued")
)

// EventKind identifies a socket event.
type EventKind int

const (
	EventConnect EventKind = iota
	EventData
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventData:
		return "data"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one entry of a socket's event stream. Data is set for
// EventData and owned by the receiver; Err is set for EventError.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

type socketState int

const (
	stateIdle socketState = iota
	stateConnecting
	stateConnected
	stateClosed
)

// Socket is a single TCP connection with an event stream. The stream
// yields EventConnect once, then any number of EventData, then at most one
// EventClose or EventError, and is closed afterwards. A failed connect
// yields only EventError.
type Socket struct {
	id      id.SocketID
	cfg     Config
	logger  *logging.Logger
	metrics *monitoring.Metrics

	events chan Event
	done   chan struct{}

	mu    sync.Mutex
	state socketState
	conn  net.Conn
	queue [][]byte
	wake  chan struct{}

	closeOnce sync.Once
}

// NewSocket creates an unconnected socket.
func NewSocket(cfg Config, logger *logging.Logger, metrics *monitoring.Metrics) *Socket {
	sid := id.NewSocketID()
	return &Socket{
		id:      sid,
		cfg:     cfg.withDefaults(),
		logger:  logging.OrNop(logger).Named("socket"),
		metrics: metrics,
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// ID returns the socket's identifier.
func (s *Socket) ID() id.SocketID {
	return s.id
}

// Events returns the socket's event stream.
func (s *Socket) Events() <-chan Event {
	return s.events
}

// Connected reports whether the connection is established and not closed.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateConnected
}

// Connect dials host:port in the background. Cancelling ctx closes the
// socket.
func (s *Socket) Connect(ctx context.Context, host string, port int) error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return ErrSocketClosed
	case stateConnecting, stateConnected:
		s.mu.Unlock()
		return ErrAlreadyConnecting
	}
	s.state = stateConnecting
	s.mu.Unlock()

	context.AfterFunc(ctx, func() { s.Close() })

	go s.run(ctx, net.JoinHostPort(host, strconv.Itoa(port)))
	return nil
}

// run owns the event channel from Connect until the stream ends.
func (s *Socket) run(ctx context.Context, addr string) {
	defer close(s.events)

	log := s.logger.With(zap.String("socket_id", s.id.String()), zap.String("addr", addr))

	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Debug("connect failed", zap.Error(err))
		s.emit(Event{Kind: EventError, Err: err})
		s.Close()
		return
	}

	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.state = stateConnected
	s.conn = conn
	s.mu.Unlock()

	s.metrics.SocketOpened()
	defer s.metrics.SocketClosed()
	log.Debug("connected")

	go s.writeLoop(conn)

	if !s.emit(Event{Kind: EventConnect}) {
		return
	}

	buf := make([]byte, s.cfg.ReadBuffer)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.metrics.RecordSocketBytes("read", n)
			if !s.emit(Event{Kind: EventData, Data: bytes.Clone(buf[:n])}) {
				return
			}
		}
		if err == nil {
			continue
		}

		if s.closedLocally() {
			return
		}
		if errors.Is(err, io.EOF) {
			log.Debug("remote closed")
			s.emit(Event{Kind: EventClose})
		} else {
			log.Debug("read failed", zap.Error(err))
			s.emit(Event{Kind: EventError, Err: err})
		}
		s.Close()
		return
	}
}

// emit delivers ev unless the socket was closed locally.
func (s *Socket) emit(ev Event) bool {
	if s.closedLocally() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Socket) closedLocally() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Write queues a copy of p. Writes on one socket reach the wire in call
// order. Failures of the write itself are logged, not returned.
func (s *Socket) Write(p []byte) error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return ErrSocketClosed
	case stateConnected:
	default:
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.queue = append(s.queue, bytes.Clone(p))
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Socket) writeLoop(conn net.Conn) {
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}

		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()

		for i, buf := range pending {
			n, err := conn.Write(buf)
			s.metrics.RecordSocketBytes("write", n)
			s.metrics.RecordSocketWrite(err)
			// The buffer belongs to this write only.
			pending[i] = nil
			if err != nil {
				s.logger.Debug("write failed", zap.String("socket_id", s.id.String()), zap.Error(err))
			}
		}
	}
}

// Close closes the connection. No events are emitted after a local close.
// Safe to call more than once.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = stateClosed
		conn := s.conn
		s.queue = nil
		s.mu.Unlock()

		close(s.done)
		if conn != nil {
			if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = fmt.Errorf("close socket: %w", cerr)
			}
		}
		if prev == stateIdle {
			close(s.events)
		}
	})
	return err
}
