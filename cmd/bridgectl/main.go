package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/logging"
	"github.com/danmuck/bridgectl/internal/observability"
	"github.com/danmuck/bridgectl/internal/transport"
)

// bridgectl is the host-side probe: it dials a bridged instance,
// completes the handshake on one connector, and issues a single call or
// event from the command line.
func main() {
	addr := flag.String("addr", "127.0.0.1:7420", "bridged address to dial")
	connectorID := flag.String("connector", bridge.ReservedPrefix+"core", "connector id to register")
	execName := flag.String("exec", "", "exported function to call on the peer")
	trigger := flag.String("trigger", "", "event name to fire on the peer")
	argJSON := flag.String("arg", "null", "structured argument as JSON")
	payloadPath := flag.String("payload", "", "file whose bytes ride as the binary payload")
	payloadOut := flag.String("payload-out", "", "write the result payload to this file")
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline for dial, handshake, and call")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("bridgectl")

	if err := run(*addr, *connectorID, *execName, *trigger, *argJSON, *payloadPath, *payloadOut, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, connectorID, execName, trigger, argJSON, payloadPath, payloadOut string, timeout time.Duration) error {
	if execName == "" && trigger == "" {
		return fmt.Errorf("one of -exec or -trigger is required")
	}
	if execName != "" && trigger != "" {
		return fmt.Errorf("-exec and -trigger are mutually exclusive")
	}
	if !json.Valid([]byte(argJSON)) {
		return fmt.Errorf("-arg is not valid JSON")
	}

	var payload []byte
	if payloadPath != "" {
		data, err := os.ReadFile(payloadPath)
		if err != nil {
			return fmt.Errorf("read payload file: %w", err)
		}
		payload = data
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg := transport.DefaultConfig()
	cfg.Address = addr
	cfg.MaxConnectAttempts = 3
	session, err := transport.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	b := bridge.New(session)
	if err := session.Bind(b); err != nil {
		return err
	}
	c, err := b.CreateConnector(ctx, connectorID, nil)
	if err != nil {
		return err
	}

	if trigger != "" {
		return c.TriggerPeer(trigger, json.RawMessage(argJSON), payload)
	}

	result, err := c.ExecPeer(ctx, execName, json.RawMessage(argJSON), payload)
	if err != nil {
		return err
	}
	fmt.Println(string(result.Value))
	if payloadOut != "" && result.Payload != nil {
		if err := os.WriteFile(payloadOut, result.Payload, 0o644); err != nil {
			return fmt.Errorf("write payload file: %w", err)
		}
	}
	return nil
}
