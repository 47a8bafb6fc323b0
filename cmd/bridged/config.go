package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/bridgectl/internal/bridged"
	"github.com/danmuck/bridgectl/internal/transport"
)

// bridged config.toml key mapping to service runtime settings.
type fileConfig struct {
	Addr            string   `toml:"addr"`
	ID              string   `toml:"id"`
	Connectors      []string `toml:"connectors"`
	MaxPayloadBytes int64    `toml:"max_payload_bytes"`
	WriteTimeoutMS  int64    `toml:"write_timeout_ms"`
	SecurityMode    string   `toml:"security_mode"`
	TLSEnabled      bool     `toml:"tls_enabled"`
	TLSMutual       bool     `toml:"tls_mutual"`
	TLSCertFile     string   `toml:"tls_cert_file"`
	TLSKeyFile      string   `toml:"tls_key_file"`
	TLSCAFile       string   `toml:"tls_ca_file"`
	TLSServerName   string   `toml:"tls_server_name"`
}

// bridged loader for TOML config with default overlay.
func loadServiceConfig(path string) (bridged.ServiceConfig, error) {
	cfg := bridged.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return bridged.ServiceConfig{}, fmt.Errorf("load bridged config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("id") {
		cfg.ServiceID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("connectors") {
		ids := make([]string, 0, len(raw.Connectors))
		for _, id := range raw.Connectors {
			id = strings.TrimSpace(id)
			if id == "" {
				return bridged.ServiceConfig{}, fmt.Errorf("load bridged config: blank connector id")
			}
			ids = append(ids, id)
		}
		cfg.ConnectorIDs = ids
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 {
			return bridged.ServiceConfig{}, fmt.Errorf(
				"load bridged config: max_payload_bytes must be positive, got %d",
				raw.MaxPayloadBytes,
			)
		}
		cfg.Transport.MaxPayloadBytes = uint64(raw.MaxPayloadBytes)
	}
	if meta.IsDefined("write_timeout_ms") {
		cfg.Transport.WriteTimeout = time.Duration(raw.WriteTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("security_mode") {
		cfg.Transport.SecurityMode = transport.SecurityMode(strings.TrimSpace(raw.SecurityMode))
	}
	if meta.IsDefined("tls_enabled") {
		cfg.Transport.TLS.Enabled = raw.TLSEnabled
	}
	if meta.IsDefined("tls_mutual") {
		cfg.Transport.TLS.Mutual = raw.TLSMutual
	}
	if meta.IsDefined("tls_cert_file") {
		cfg.Transport.TLS.CertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.Transport.TLS.KeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}
	if meta.IsDefined("tls_ca_file") {
		cfg.Transport.TLS.CAFile = strings.TrimSpace(raw.TLSCAFile)
	}
	if meta.IsDefined("tls_server_name") {
		cfg.Transport.TLS.ServerName = strings.TrimSpace(raw.TLSServerName)
	}

	cfg.Transport = cfg.Transport.WithDefaults()
	return cfg, nil
}
