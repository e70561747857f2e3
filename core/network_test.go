package core

import (
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu   sync.Mutex
	msgs []Message
}

func (h *recordingHandler) HandleMessage(from NodeID, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestNetworkBroadcastDeliversToConnectedPeer(t *testing.T) {
	serverHandler := &recordingHandler{}
	server := NewNetwork(serverHandler, nil)
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer server.Close()
	addr := server.listener.Addr().String()

	clientHandler := &recordingHandler{}
	client := NewNetwork(clientHandler, nil)
	if _, err := client.Connect(addr); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	waitFor(t, func() bool { return len(server.Peers()) == 1 })

	if err := client.BroadcastBlock(&Block{Hash: "abc"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	waitFor(t, func() bool { return serverHandler.count() == 1 })
	if serverHandler.msgs[0].Kind != MsgBlock || serverHandler.msgs[0].Block.Hash != "abc" {
		t.Fatalf("unexpected message received: %+v", serverHandler.msgs[0])
	}
}

func TestNetworkPeerInfoUpdatesPeerTable(t *testing.T) {
	server := NewNetwork(&recordingHandler{}, nil)
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer server.Close()
	addr := server.listener.Addr().String()

	client := NewNetwork(&recordingHandler{}, nil)
	if _, err := client.Connect(addr); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.BroadcastPeerInfo("node-1", "v1.0", 42); err != nil {
		t.Fatalf("broadcast peer info: %v", err)
	}

	waitFor(t, func() bool {
		peers := server.Peers()
		return len(peers) == 1 && peers[0].LatestBlockHeight == 42
	})
}
