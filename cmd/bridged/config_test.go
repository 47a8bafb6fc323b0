package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/bridgectl/internal/transport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigOverlaysDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
addr = "127.0.0.1:9000"
id = "bridged.edge"
connectors = ["bridge.core", "app.files"]
max_payload_bytes = 1048576
write_timeout_ms = 2500
security_mode = "development"
`)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" || cfg.ServiceID != "bridged.edge" {
		t.Fatalf("identity mismatch: %+v", cfg)
	}
	if len(cfg.ConnectorIDs) != 2 || cfg.ConnectorIDs[1] != "app.files" {
		t.Fatalf("connectors mismatch: %v", cfg.ConnectorIDs)
	}
	if cfg.Transport.MaxPayloadBytes != 1048576 {
		t.Fatalf("payload limit mismatch: %d", cfg.Transport.MaxPayloadBytes)
	}
	if cfg.Transport.WriteTimeout != 2500*time.Millisecond {
		t.Fatalf("write timeout mismatch: %v", cfg.Transport.WriteTimeout)
	}
}

func TestLoadServiceConfigKeepsDefaultsForAbsentKeys(t *testing.T) {
	path := writeConfig(t, `addr = "127.0.0.1:9001"`)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceID != "bridged.main" {
		t.Fatalf("default service id lost: %q", cfg.ServiceID)
	}
	if len(cfg.ConnectorIDs) != 1 || cfg.ConnectorIDs[0] != "bridge.core" {
		t.Fatalf("default connectors lost: %v", cfg.ConnectorIDs)
	}
	if cfg.Transport.SecurityMode != transport.SecurityModeDevelopment {
		t.Fatalf("default security mode lost: %q", cfg.Transport.SecurityMode)
	}
}

func TestLoadServiceConfigRejectsBlankConnector(t *testing.T) {
	path := writeConfig(t, `connectors = ["bridge.core", "  "]`)
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected blank connector error")
	}
}

func TestLoadServiceConfigRejectsNonPositivePayloadLimit(t *testing.T) {
	path := writeConfig(t, `max_payload_bytes = 0`)
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected payload limit error")
	}
}

func TestLoadServiceConfigTLSKeys(t *testing.T) {
	path := writeConfig(t, `
security_mode = "production"
tls_enabled = true
tls_mutual = true
tls_cert_file = "svc.pem"
tls_key_file = "svc.key"
tls_ca_file = "ca.pem"
`)
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport.SecurityMode != transport.SecurityModeProduction {
		t.Fatalf("security mode mismatch: %q", cfg.Transport.SecurityMode)
	}
	if !cfg.Transport.TLS.Enabled || !cfg.Transport.TLS.Mutual {
		t.Fatalf("tls flags lost: %+v", cfg.Transport.TLS)
	}
	if err := cfg.Transport.ValidateServerTransport(); err != nil {
		t.Fatalf("expected valid server transport: %v", err)
	}
}
