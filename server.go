package jumpbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

// Server reads framed requests from transports and answers each one through
// a Bridge. Every connection is one ordered request stream; distinct
// connections are served concurrently.
type Server struct {
	bridge     *Bridge
	serializer Serializer
	logger     *slog.Logger

	wg sync.WaitGroup
}

func NewServer(b *Bridge, s Serializer, logger *slog.Logger) *Server {
	if s == nil {
		s = MsgpackSerializer{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{bridge: b, serializer: s, logger: logger}
}

// ServeTransport answers requests from t until the peer closes the stream.
// A clean close returns nil.
func (s *Server) ServeTransport(ctx context.Context, t Transport) error {
	for {
		data, err := t.Receive()
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive request: %w", err)
		}

		resp := s.process(ctx, data)
		out, err := s.serializer.Marshal(resp)
		if err != nil {
			s.logger.Error("cannot encode response", "id", resp.ID, "error", err)
			out, err = s.serializer.Marshal(&Response{
				ID:    resp.ID,
				Error: newError(KindRequest, "cannot encode response: %v", err).Error(),
			})
			if err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
		}
		if err := t.Send(out); err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("send response: %w", err)
		}
	}
}

func (s *Server) process(ctx context.Context, data []byte) *Response {
	var req Request
	if err := s.serializer.Unmarshal(data, &req); err != nil {
		s.logger.Warn("malformed request", "error", err)
		return &Response{Error: newError(KindRequest, "malformed request: %v", err).Error()}
	}
	return s.bridge.Handle(ctx, &req)
}

// Serve accepts connections from ln until ctx is cancelled, then closes the
// listener and waits for open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	logger := s.logger.With("remote", remote)
	logger.Info("connection opened")

	t := NewConnTransport(conn)
	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer stop()
	defer t.Close()

	if err := s.ServeTransport(ctx, t); err != nil {
		logger.Warn("connection failed", "error", err)
		return
	}
	logger.Info("connection closed")
}

// isClosed reports errors that mean the stream is gone rather than broken.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}
