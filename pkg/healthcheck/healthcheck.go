package healthcheck

import (
	"context"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"

	log "github.com/rs/zerolog"
)

const ReadyMsg = 0x01

type Server struct {
	ln         net.Listener
	readyCh    chan struct{}
	socketPath string
	logger     log.Logger
}

// NewServer creates a readiness server listening on a unix socket.
func NewServer(socketPath string, logger log.Logger) *Server {
	l := logger.With().Str("component", "healthcheck").Logger()
	return &Server{
		socketPath: socketPath,
		readyCh:    make(chan struct{}),
		logger:     l,
	}
}

// InitializeListener starts the UDS listener for accepting connections.
func (s *Server) InitializeListener(ctx context.Context) error {
	// Remove socket if it already exists.
	os.Remove(s.socketPath)

	// Create UDS listener.
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrap(err, "failed to listen on UDS")
	}
	s.ln = ln

	// Start accepting connections.
	go s.acceptConnections(ctx)

	return nil
}

// NotifyReadiness marks the profiler as ready to serve waiting clients.
func (s *Server) NotifyReadiness() {
	s.logger.Debug().Msg("marking readiness")
	close(s.readyCh)
}

// ShutdownListener gracefully shuts down the listener and removes the socket.
func (s *Server) ShutdownListener() error {
	// Ensure the listener is closed properly.
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("error closing listener")
		}
	}

	// Remove the socket file if it exists.
	if err := os.Remove(s.socketPath); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug().Err(err).Msgf("error removing socket")
			return err
		}
		s.logger.Debug().Msg("ignoring removing socket file, as it is already removed")
	}

	return nil
}

// acceptConnections listens for incoming connections and handles them.
func (s *Server) acceptConnections(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("stopping accepting connections")
			return // Shutdown gracefully.
		default:
			// Accept connections.
			conn, err := s.ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					s.logger.Debug().Msg("ignoring accepting connection as it is closed")
					return
				}
				s.logger.Warn().Err(err).Msg("accept error")
				continue
			}

			// Handle each connection.
			go s.processConnection(ctx, conn)
		}
	}
}

// processConnection handles each accepted connection and responds when ready.
func (s *Server) processConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	select {
	// Profiler is ready, send ready message.
	case <-s.readyCh:
		// Test that the connection is still open.
		if !s.isConnectionAlive(conn) {
			s.logger.Debug().Msg("connection is closed")
			return
		}
		if err := s.safeWrite(conn, []byte{ReadyMsg}); err != nil {
			if !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				s.logger.Debug().Err(err).Msg("failed to write")
			}
		}
	case <-ctx.Done():
		// Graceful shutdown handling.
		s.logger.Debug().Msg("ignoring sending readiness message as context is canceled")
		return
	}
}

func (s *Server) isConnectionAlive(conn net.Conn) bool {
	// Decrease timeout to read fast.
	conn.SetReadDeadline(time.Now())
	if _, err := conn.Read([]byte{}); err == io.EOF {
		s.logger.Debug().Err(err).Msg("cannot write ready message: connection is already closed")
		conn.Close()

		return false
	}

	conn.SetReadDeadline(time.Time{})
	return true
}

func (s *Server) safeWrite(conn net.Conn, data []byte) error {
	_, err := conn.Write(data)
	if err != nil {
		switch {
		case errors.Is(err, syscall.EPIPE):
			conn.Close()
			return errors.Wrap(err, "peer closed the connection")
		case errors.Is(err, syscall.ECONNRESET):
			conn.Close()
			return errors.Wrap(err, "peer reset the connection")
		default:
			return errors.Wrap(err, "failed to write")
		}
	}
	return nil
}
