// Package bridged owns the companion-service daemon runtime: it accepts
// one framed session per peer process and hosts the configured
// connectors with the platform export packs.
package bridged

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/exports"
	"github.com/danmuck/bridgectl/internal/transport"
)

var (
	ErrListenAddrRequired = errors.New("bridged: listen addr required")
	ErrNoConnectors       = errors.New("bridged: at least one connector id required")
)

// EventLog is the reserved event name bridged subscribes to on every
// hosted connector; peers use it to surface host-side log lines.
const EventLog = bridge.ReservedPrefix + "log"

// ServiceConfig configures one bridged process.
type ServiceConfig struct {
	ListenAddr   string
	ServiceID    string
	ConnectorIDs []string
	Transport    transport.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:   "127.0.0.1:7420",
		ServiceID:    "bridged.main",
		ConnectorIDs: []string{bridge.ReservedPrefix + "core"},
		Transport:    transport.DefaultConfig(),
	}
}

// Service hosts connectors for every accepted session.
type Service struct {
	cfg   ServiceConfig
	packs *exports.Registry
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, ErrListenAddrRequired
	}
	if len(cfg.ConnectorIDs) == 0 {
		return nil, ErrNoConnectors
	}
	cfg.Transport = cfg.Transport.WithDefaults()

	packs := exports.NewRegistry()
	packs.Register(exports.NewBuiltin())
	return &Service{cfg: cfg, packs: packs}, nil
}

// Packs exposes the export pack registry so wiring can contribute
// additional packs before Run.
func (s *Service) Packs() *exports.Registry { return s.packs }

// Run accepts sessions until ctx is done. Each session gets its own
// bridge and a fresh handshake for every configured connector, so a
// peer that reconnects after a disconnect starts clean.
func (s *Service) Run(ctx context.Context) error {
	table, err := s.packs.Table()
	if err != nil {
		return err
	}

	tcfg := s.cfg.Transport
	tcfg.Address = s.cfg.ListenAddr
	ln, err := transport.Listen(tcfg)
	if err != nil {
		return err
	}
	defer ln.Close()
	log.Info().
		Str("service_id", s.cfg.ServiceID).
		Str("addr", s.cfg.ListenAddr).
		Strs("connectors", s.cfg.ConnectorIDs).
		Msg("bridged listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.serveSession(ctx, conn, tcfg, table)
	}
}

func (s *Service) serveSession(ctx context.Context, conn net.Conn, tcfg transport.Config, table map[string]bridge.Handler) {
	session := transport.NewSession(conn, tcfg)
	b := bridge.New(session)
	if err := session.Bind(b); err != nil {
		log.Error().Err(err).Msg("bind session failed")
		_ = session.Close()
		return
	}
	log.Info().Str("session_id", session.ID()).Msg("session accepted")

	for _, id := range s.cfg.ConnectorIDs {
		go s.hostConnector(ctx, b, id, table)
	}

	select {
	case <-ctx.Done():
		_ = session.Close()
	case <-b.Done():
	}
	log.Info().Str("session_id", session.ID()).Msg("session ended")
}

func (s *Service) hostConnector(ctx context.Context, b *bridge.Bridge, id string, table map[string]bridge.Handler) {
	c, err := b.CreateConnector(ctx, id, table)
	if err != nil {
		log.Warn().Str("connector_id", id).Err(err).Msg("connector handshake failed")
		return
	}
	c.On(EventLog, func(arg json.RawMessage, _ []byte) {
		log.Info().
			Str("connector_id", id).
			RawJSON("entry", arg).
			Msg("peer log event")
	})
}
