package exports

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/danmuck/bridgectl/internal/bridge"
)

// Built-in platform export names, under the reserved prefix.
const (
	FuncPing = bridge.ReservedPrefix + "ping"
	FuncEcho = bridge.ReservedPrefix + "echo"
	FuncStat = bridge.ReservedPrefix + "stat"
)

// Builtin is the platform pack every bridged connector exports: a
// liveness probe, a structured+binary echo, and basic service counters.
type Builtin struct {
	started time.Time
	calls   atomic.Uint64
}

func NewBuiltin() *Builtin {
	return &Builtin{started: time.Now()}
}

func (b *Builtin) Name() string { return bridge.ReservedPrefix + "builtin" }

func (b *Builtin) Exports() map[string]bridge.Handler {
	return map[string]bridge.Handler{
		FuncPing: b.ping,
		FuncEcho: b.echo,
		FuncStat: b.stat,
	}
}

type pingReply struct {
	Pong   bool  `json:"pong"`
	TimeMS int64 `json:"time_ms"`
}

func (b *Builtin) ping(_ context.Context, _ json.RawMessage, _ []byte) (bridge.Result, error) {
	b.calls.Add(1)
	value, err := json.Marshal(pingReply{Pong: true, TimeMS: time.Now().UnixMilli()})
	if err != nil {
		return bridge.Result{}, err
	}
	return bridge.Result{Value: value}, nil
}

// echo returns the structured argument and binary payload unchanged.
func (b *Builtin) echo(_ context.Context, arg json.RawMessage, payload []byte) (bridge.Result, error) {
	b.calls.Add(1)
	return bridge.Result{Value: arg, Payload: payload}, nil
}

type statReply struct {
	UptimeMS int64  `json:"uptime_ms"`
	Calls    uint64 `json:"calls"`
}

func (b *Builtin) stat(_ context.Context, _ json.RawMessage, _ []byte) (bridge.Result, error) {
	calls := b.calls.Add(1)
	value, err := json.Marshal(statReply{
		UptimeMS: time.Since(b.started).Milliseconds(),
		Calls:    calls,
	})
	if err != nil {
		return bridge.Result{}, err
	}
	return bridge.Result{Value: value}, nil
}
