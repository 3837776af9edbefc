package sync

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const handshakeTimeout = 10 * time.Second

// Server accepts TCP subscribers. A client must send its visitor token as
// the first line; the connection is closed when the token does not verify.
type Server struct {
	Addr   string
	Hub    *Hub
	Verify func(token string) (visitorID string, err error)

	logger *zap.Logger
	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

func NewServer(addr string, hub *Hub, verify func(string) (string, error), logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Hub: hub, Verify: verify, logger: logger.Named("tcp-sync")}
}

func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// ListenAddr is the bound address once Listen succeeded.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("tcp-sync: not listening")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		_ = conn.Close()
		return
	}
	visitorID, err := s.Verify(strings.TrimSpace(line))
	if err != nil {
		_, _ = conn.Write([]byte("{\"type\":\"error\",\"message\":\"invalid token\"}\n"))
		_ = conn.Close()
		s.logger.Info("rejected client", zap.String("remote", conn.RemoteAddr().String()))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	_, _ = conn.Write(welcome("tcp"))
	s.Hub.Add(conn, visitorID)
	s.logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))

	defer func() {
		s.Hub.Remove(conn)
		s.logger.Info("client disconnected", zap.String("remote", conn.RemoteAddr().String()))
	}()

	// incoming lines after the handshake are ignored
	sc := bufio.NewScanner(r)
	for sc.Scan() {
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
