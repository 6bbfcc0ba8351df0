// Package relaytcp serves the downstream feed: a plain TCP listener where
// every accepted connection gets its own hub receiver and a writer
// goroutine streaming length-prefixed create records. The server never
// reads from clients; end-of-stream is a TCP close.
package relaytcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"pumpfun-relay/internal/hub"
	"pumpfun-relay/internal/observability"
	"pumpfun-relay/internal/wire"
)

// Server accepts subscriber connections and fans records out to them.
type Server struct {
	hub      *hub.Hub
	logger   *slog.Logger
	listener net.Listener
}

// NewServer creates a server reading from h.
func NewServer(h *hub.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{hub: h, logger: logger}
}

// Listen binds the TCP listener. A bind failure is returned to the caller
// and is fatal at startup.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind tcp listener on %s: %w", addr, err)
	}
	s.listener = ln
	s.logger.Info("tcp server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound listener address. Listen must have succeeded.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed. Accept errors
// are logged and do not tear down the listener.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("failed to accept tcp connection", slog.Any("error", err))
			continue
		}

		s.logger.Info("client connected", slog.String("peer", conn.RemoteAddr().String()))
		observability.ClientConnected()
		go s.serveClient(ctx, conn)
	}
}

// Close shuts the listener down, ending Serve.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// serveClient owns one session: it subscribes to the hub and writes every
// received record as a frame, flushing after each one so latency-sensitive
// consumers see records as soon as they are encoded. The session ends on
// the first write error, on hub closure, or when ctx is canceled; a lag
// signal is logged and delivery resumes from the oldest retained record.
func (s *Server) serveClient(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	defer func() {
		conn.Close()
		observability.ClientDisconnected()
		s.logger.Info("client disconnected", slog.String("peer", peer))
	}()

	rx := s.hub.Subscribe()
	defer rx.Close()

	w := bufio.NewWriter(conn)
	for {
		rec, err := rx.Recv(ctx)
		if err != nil {
			var lag hub.ErrLagged
			if errors.As(err, &lag) {
				observability.RecordLaggedRecords(lag.Missed)
				s.logger.Warn("client fell behind, skipping records",
					slog.String("peer", peer),
					slog.Uint64("missed", lag.Missed),
				)
				continue
			}
			// Hub closed or shutdown in progress.
			return
		}

		if err := wire.WriteFrame(w, rec); err != nil {
			observability.RecordClientWriteError()
			s.logger.Error("failed to write record",
				slog.String("peer", peer),
				slog.Any("error", err),
			)
			return
		}
		if err := w.Flush(); err != nil {
			observability.RecordClientWriteError()
			s.logger.Error("failed to flush record",
				slog.String("peer", peer),
				slog.Any("error", err),
			)
			return
		}
	}
}
