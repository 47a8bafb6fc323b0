package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/bridgectl/internal/protocol"
)

var (
	ErrAddressRequired = errors.New("transport: address required")
	ErrAlreadyBound    = errors.New("transport: session already bound")
)

// Session is a framed stream link over one net.Conn. Writes are
// serialized by a mutex; a single read loop cuts the stream into frames
// and feeds the bound handler.
type Session struct {
	id     string
	conn   net.Conn
	cfg    Config
	limits protocol.Limits

	writeMu sync.Mutex

	mu      sync.Mutex
	handler Handler
	bound   bool
	closed  bool
}

// NewSession wraps an established connection. The caller must Bind a
// handler to start frame delivery.
func NewSession(conn net.Conn, cfg Config) *Session {
	cfg = cfg.WithDefaults()
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		cfg:    cfg,
		limits: protocol.Limits{MaxPayloadBytes: cfg.MaxPayloadBytes},
	}
}

// ID returns the session identity used in logs.
func (s *Session) ID() string { return s.id }

// Bind attaches the handler and starts the read loop.
func (s *Session) Bind(h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrAlreadyBound
	}
	s.handler = h
	s.bound = true
	go s.readLoop(h)
	return nil
}

func (s *Session) Send(connectorID string, raw []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrLinkClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if _, err := s.conn.Write(raw); err != nil {
		log.Warn().
			Str("session_id", s.id).
			Str("connector_id", connectorID).
			Err(err).
			Msg("transport session write failed")
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if already {
		return nil
	}
	return s.conn.Close()
}

func (s *Session) readLoop(h Handler) {
	for {
		raw, err := protocol.ReadRaw(s.conn, s.limits)
		if err != nil {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			_ = s.conn.Close()
			log.Debug().Str("session_id", s.id).Err(err).Msg("transport session disconnected")
			h.HandleDisconnect(fmt.Errorf("transport: receive: %w", err))
			return
		}
		h.HandleFrame(raw)
	}
}

// Dial connects to cfg.Address with backoff retry and returns a live
// session. MaxConnectAttempts <= 0 retries until ctx is done.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var attempt int
	for {
		attempt++
		conn, err := dialOnce(ctx, cfg)
		if err == nil {
			s := NewSession(conn, cfg)
			log.Info().
				Str("session_id", s.id).
				Str("addr", cfg.Address).
				Int("attempt", attempt).
				Msg("transport session established")
			return s, nil
		}
		log.Warn().
			Str("addr", cfg.Address).
			Int("attempt", attempt).
			Err(err).
			Msg("transport dial failed")
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, err
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func dialOnce(ctx context.Context, cfg Config) (net.Conn, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, err
	}
	if !cfg.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := clientTLSConfig(cfg)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

// Listen opens the server-side listener, TLS-wrapped when enabled.
func Listen(cfg Config) (net.Listener, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	if err := cfg.ValidateServerTransport(); err != nil {
		return nil, err
	}
	if !cfg.TLS.Enabled {
		return net.Listen("tcp", cfg.Address)
	}
	tlsCfg, err := serverTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	return tls.Listen("tcp", cfg.Address, tlsCfg)
}

func clientTLSConfig(cfg Config) (*tls.Config, error) {
	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		ServerName:         strings.TrimSpace(cfg.TLS.ServerName),
	}
	if caFile := strings.TrimSpace(cfg.TLS.CAFile); caFile != "" {
		pool, err := loadCertPool(caFile)
		if err != nil {
			return nil, err
		}
		out.RootCAs = pool
	}
	if cfg.TLS.Mutual {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load client keypair: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}
	return out, nil
}

func serverTLSConfig(cfg Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("transport: load server keypair: %w", err)
	}
	out := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if cfg.TLS.Mutual {
		pool, err := loadCertPool(cfg.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		out.ClientCAs = pool
		out.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return out, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transport: read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("transport: no certificates in ca file %q", path)
	}
	return pool, nil
}
