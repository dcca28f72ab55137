package transport

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
)

// Handler answers one Message, the server-side counterpart of a
// Provider's RPC entry point (original_source/include/mofka/Provider.hpp).
type Handler func(Message) (Message, error)

// Server accepts connections on a net.Listener and dispatches every
// received frame to the Handler registered under its Message.Type,
// mirroring the teacher's "net.Listen, then serve forever" idiom in
// cmd/coordinator.go, generalized from one gRPC service to a
// name-keyed dispatch table.
type Server struct {
	listener net.Listener
	log      logrus.FieldLogger

	mu       sync.RWMutex
	handlers map[string]Handler

	wg  sync.WaitGroup
	sem *pool.Semaphore
}

// SetConcurrencyLimit bounds the number of frame-dispatch goroutines
// that may run at once across every connection this Server serves;
// n<=0 leaves dispatch unbounded. Call before Serve (internal/config's
// Daemon.PoolSize knob, threaded in from cmd/mofkad).
func (s *Server) SetConcurrencyLimit(n int) {
	if n <= 0 {
		s.sem = nil
		return
	}
	s.sem = pool.NewSemaphore(n)
}

// NewServer wraps listener; call Serve to start accepting connections.
func NewServer(listener net.Listener, log logrus.FieldLogger) *Server {
	return &Server{
		listener: listener,
		log:      log,
		handlers: make(map[string]Handler),
	}
}

// Handle registers fn as the handler for every Message of the given
// Type. Handle takes the same lock dispatch reads the handler table
// under, so it may also be called after Serve has started.
func (s *Server) Handle(msgType string, fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[msgType] = fn
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed, handling
// each on its own goroutine. It blocks; callers typically run it via
// `go server.Serve()`.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Close stops accepting new connections and waits until every
// accepted connection has been closed by its peer and every frame
// dispatched from it has been answered. It does not close connections
// that are already open.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	var writeMu sync.Mutex
	for {
		f, err := readFrame(conn)
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func(f frame) {
			defer s.wg.Done()
			if s.sem != nil {
				s.sem.Acquire()
				defer s.sem.Release()
			}
			s.dispatch(conn, &writeMu, f)
		}(f)
	}
}

// dispatch runs handler lookup and invocation concurrently across
// frames from the same connection, but serializes the reply writes
// through writeMu so two replies can never interleave their header
// and body writes on the wire.
func (s *Server) dispatch(conn net.Conn, writeMu *sync.Mutex, f frame) {
	s.mu.RLock()
	handler, ok := s.handlers[f.Message.Type]
	s.mu.RUnlock()

	var reply Message
	if !ok {
		reply = Message{Type: errorType}.WithError(
			errext.New(errext.Protocol, "no handler registered for message type %q", f.Message.Type))
	} else {
		result, err := handler(f.Message)
		if err != nil {
			reply = Message{Type: errorType}.WithError(err)
		} else {
			reply = result
		}
	}

	writeMu.Lock()
	writeErr := writeFrame(conn, frame{Seq: f.Seq, Message: reply})
	writeMu.Unlock()
	if writeErr != nil && s.log != nil {
		s.log.WithError(writeErr).WithField("type", f.Message.Type).Warn("transport: failed to write reply frame")
	}
}
