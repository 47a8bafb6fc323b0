package transport

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/bridgectl/internal/testutil/testlog"
)

type captureHandler struct {
	frames chan []byte
	down   chan error
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		frames: make(chan []byte, 128),
		down:   make(chan error, 4),
	}
}

func (h *captureHandler) HandleFrame(raw []byte)     { h.frames <- raw }
func (h *captureHandler) HandleDisconnect(err error) { h.down <- err }

func waitFrame(t *testing.T, h *captureHandler) []byte {
	t.Helper()
	select {
	case raw := <-h.frames:
		return raw
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
		return nil
	}
}

func waitDisconnect(t *testing.T, h *captureHandler) error {
	t.Helper()
	select {
	case err := <-h.down:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for disconnect")
		return nil
	}
}

func TestPipeDeliversInSendOrder(t *testing.T) {
	testlog.Start(t)
	a, b := NewPipe()
	ha, hb := newCaptureHandler(), newCaptureHandler()
	a.Bind(ha)
	b.Bind(hb)

	const n = 50
	for i := 0; i < n; i++ {
		if err := a.Send("c1", []byte(fmt.Sprintf("frame-%03d", i))); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		want := []byte(fmt.Sprintf("frame-%03d", i))
		if got := waitFrame(t, hb); !bytes.Equal(got, want) {
			t.Fatalf("frame %d: got %q want %q", i, got, want)
		}
	}
}

func TestPipeQueuesBeforeBind(t *testing.T) {
	testlog.Start(t)
	a, b := NewPipe()
	ha := newCaptureHandler()
	a.Bind(ha)

	if err := a.Send("c1", []byte("early")); err != nil {
		t.Fatalf("send: %v", err)
	}

	hb := newCaptureHandler()
	b.Bind(hb)
	if got := waitFrame(t, hb); !bytes.Equal(got, []byte("early")) {
		t.Fatalf("queued frame lost: %q", got)
	}
}

func TestPipeCloseDisconnectsBothEndsOnce(t *testing.T) {
	testlog.Start(t)
	a, b := NewPipe()
	ha, hb := newCaptureHandler(), newCaptureHandler()
	a.Bind(ha)
	b.Bind(hb)

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := waitDisconnect(t, ha); !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("expected ErrLinkClosed on a, got %v", err)
	}
	if err := waitDisconnect(t, hb); !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("expected ErrLinkClosed on b, got %v", err)
	}

	// A second close must not produce a second notification.
	_ = b.Close()
	select {
	case err := <-ha.down:
		t.Fatalf("unexpected second disconnect on a: %v", err)
	case err := <-hb.down:
		t.Fatalf("unexpected second disconnect on b: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPipeDrainsQueuedFramesBeforeDisconnect(t *testing.T) {
	testlog.Start(t)
	a, b := NewPipe()
	hb := newCaptureHandler()

	if err := a.Send("c1", []byte("one")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := a.Send("c1", []byte("two")); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = a.Close()
	b.Bind(hb)

	if got := waitFrame(t, hb); !bytes.Equal(got, []byte("one")) {
		t.Fatalf("first frame: %q", got)
	}
	if got := waitFrame(t, hb); !bytes.Equal(got, []byte("two")) {
		t.Fatalf("second frame: %q", got)
	}
	if err := waitDisconnect(t, hb); !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("expected ErrLinkClosed after drain, got %v", err)
	}
}

func TestPipeSendAfterCloseFails(t *testing.T) {
	testlog.Start(t)
	a, b := NewPipe()
	a.Bind(newCaptureHandler())
	b.Bind(newCaptureHandler())
	_ = a.Close()

	if err := a.Send("c1", []byte("late")); !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("expected ErrLinkClosed, got %v", err)
	}
	if err := b.Send("c1", []byte("late")); !errors.Is(err, ErrLinkClosed) {
		t.Fatalf("expected ErrLinkClosed, got %v", err)
	}
}
