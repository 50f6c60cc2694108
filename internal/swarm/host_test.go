package swarm

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/rudransh-shrivastava/p2p-fileshare/internal/identity"
	"github.com/rudransh-shrivastava/p2p-fileshare/internal/protocol"
)

func newTestHost(t *testing.T, seed uint8) *Host {
	t.Helper()

	id, err := identity.Derive(&seed)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	h, err := New(Config{
		Identity:       id,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		RequestTimeout: 5 * time.Second,
		InboundTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	if err := h.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0")); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	return h
}

// waitEvent returns the first event of type T accepted by match, skipping
// everything else.
func waitEvent[T Event](t *testing.T, h *Host, match func(T) bool) T {
	t.Helper()

	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-h.Events():
			if typed, ok := ev.(T); ok && (match == nil || match(typed)) {
				return typed
			}
		case <-timeout:
			var zero T
			t.Fatalf("Timed out waiting for %T", zero)
			return zero
		}
	}
}

func connect(t *testing.T, from, to *Host) {
	t.Helper()

	if err := from.Dial(to.LocalPeer(), to.Addrs()[0]); err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	ev := waitEvent(t, from, func(e ConnectionEstablished) bool { return e.Outbound })
	if ev.Peer != to.LocalPeer() {
		t.Fatalf("Expected connection to %s, got %s", to.LocalPeer(), ev.Peer)
	}
}

func TestHostNewRequiresIdentity(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("Expected ErrNoIdentity, got %v", err)
	}
}

func TestHostDialSelf(t *testing.T) {
	h := newTestHost(t, 1)

	if err := h.Dial(h.LocalPeer(), h.Addrs()[0]); !errors.Is(err, ErrDialSelf) {
		t.Errorf("Expected ErrDialSelf, got %v", err)
	}
}

func TestHostDialUnreachable(t *testing.T) {
	h := newTestHost(t, 1)
	other, err := identity.Derive(nil)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	// Nothing listens on port 1.
	if err := h.Dial(other.ID, ma.StringCast("/ip4/127.0.0.1/tcp/1")); err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	ev := waitEvent[OutgoingConnectionError](t, h, nil)
	if ev.Peer != other.ID || ev.Err == nil {
		t.Errorf("Expected dial error for %s, got %+v", other.ID, ev)
	}
}

func TestHostProvideAlone(t *testing.T) {
	h := newTestHost(t, 1)

	id, err := h.StartProviding([]byte("report.txt"))
	if err != nil {
		t.Fatalf("StartProviding failed: %v", err)
	}
	done := waitEvent(t, h, func(e StartProvidingDone) bool { return e.ID == id })
	if done.Err != nil {
		t.Fatalf("Expected provide to succeed, got %v", done.Err)
	}

	qid := h.GetProviders([]byte("report.txt"))
	got := waitEvent(t, h, func(e GetProvidersDone) bool { return e.ID == qid })
	if got.Err != nil {
		t.Fatalf("GetProviders failed: %v", got.Err)
	}
	if !got.Providers.Has(h.LocalPeer()) {
		t.Errorf("Expected self among providers, got %v", got.Providers.Peers())
	}

	qid = h.GetProviders([]byte("missing.txt"))
	got = waitEvent(t, h, func(e GetProvidersDone) bool { return e.ID == qid })
	if got.Err != nil {
		t.Fatalf("Expected empty set without error, got %v", got.Err)
	}
	if got.Providers.Len() != 0 {
		t.Errorf("Expected no providers, got %v", got.Providers.Peers())
	}
}

func TestHostFileExchange(t *testing.T) {
	provider := newTestHost(t, 1)
	getter := newTestHost(t, 2)

	connect(t, getter, provider)

	qid, err := provider.StartProviding([]byte("report.txt"))
	if err != nil {
		t.Fatalf("StartProviding failed: %v", err)
	}
	if done := waitEvent(t, provider, func(e StartProvidingDone) bool { return e.ID == qid }); done.Err != nil {
		t.Fatalf("Expected provide to succeed, got %v", done.Err)
	}

	var providers ProviderSet
	for attempt := 0; attempt < 20; attempt++ {
		qid := getter.GetProviders([]byte("report.txt"))
		got := waitEvent(t, getter, func(e GetProvidersDone) bool { return e.ID == qid })
		if got.Err != nil {
			t.Fatalf("GetProviders failed: %v", got.Err)
		}
		if got.Providers.Has(provider.LocalPeer()) {
			providers = got.Providers
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if providers == nil {
		t.Fatal("Expected provider to be found")
	}

	rid := getter.SendRequest(provider.LocalPeer(), "report.txt")

	inbound := waitEvent[InboundRequest](t, provider, nil)
	if inbound.Request != "report.txt" {
		t.Errorf("Expected request for report.txt, got %q", inbound.Request)
	}
	if inbound.Peer != getter.LocalPeer() {
		t.Errorf("Expected request from %s, got %s", getter.LocalPeer(), inbound.Peer)
	}

	if err := provider.SendResponse(inbound.Channel, "hello world"); err != nil {
		t.Fatalf("SendResponse failed: %v", err)
	}
	if err := provider.SendResponse(inbound.Channel, "hello again"); !errors.Is(err, ErrResponseChannelUsed) {
		t.Errorf("Expected ErrResponseChannelUsed, got %v", err)
	}

	res := waitEvent(t, getter, func(e ResponseReceived) bool { return e.ID == rid })
	if res.Response != "hello world" {
		t.Errorf("Expected hello world, got %q", res.Response)
	}
}

func TestHostUnansweredRequestFails(t *testing.T) {
	provider := newTestHost(t, 1)
	getter := newTestHost(t, 2)

	connect(t, getter, provider)

	rid := getter.SendRequest(provider.LocalPeer(), "unknown.txt")
	_ = waitEvent[InboundRequest](t, provider, nil)

	failure := waitEvent(t, getter, func(e OutboundFailure) bool { return e.ID == rid })

	var remote *protocol.Error
	if !errors.As(failure.Err, &remote) {
		t.Fatalf("Expected remote protocol error, got %v", failure.Err)
	}
	if remote.Code != protocol.ErrFileNotFound {
		t.Errorf("Expected code %s, got %s", protocol.ErrFileNotFound, remote.Code)
	}
}

func TestHostRequestUnknownPeer(t *testing.T) {
	h := newTestHost(t, 1)
	other, err := identity.Derive(nil)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	rid := h.SendRequest(other.ID, "report.txt")
	failure := waitEvent(t, h, func(e OutboundFailure) bool { return e.ID == rid })
	if failure.Peer != other.ID || failure.Err == nil {
		t.Errorf("Expected failure for %s, got %+v", other.ID, failure)
	}
}

func TestHostCloseIdempotent(t *testing.T) {
	h := newTestHost(t, 1)

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	_ = h.Close()

	if err := h.Dial(peer.ID("peer-x"), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}
