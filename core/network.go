package core

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// NodeID identifies a peer, assigned by the local node at connect/accept
// time (a random UUID; there is no cryptographic peer identity in core).
type NodeID string

// Peer is a connected remote node: its live stream plus the last PeerInfo
// heartbeat observed from it.
type Peer struct {
	ID                NodeID
	Addr              string
	conn              net.Conn
	writer            *bufio.Writer
	Version           string
	LatestBlockHeight uint64
}

// Handler processes inbound messages dispatched by the network's reader
// tasks. Implemented by the sync manager / producer wiring in cmd/meridiand.
type Handler interface {
	HandleMessage(from NodeID, msg Message)
}

// Network is a mesh of long-lived stream connections framed as
// newline-delimited JSON. The peer list is guarded by a single mutex held
// only long enough to clone stream handles for broadcast, matching the
// core's concurrency contract for C8.
type Network struct {
	logger   *log.Logger
	handler  Handler
	listener net.Listener

	peerLock sync.RWMutex
	peers    map[NodeID]*Peer
}

// NewNetwork constructs a network with no active connections.
func NewNetwork(handler Handler, logger *log.Logger) *Network {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Network{
		logger:  logger,
		handler: handler,
		peers:   make(map[NodeID]*Peer),
	}
}

// Listen accepts inbound connections on addr; each accepted stream gets its
// own reader task that parses messages and dispatches them to Handler.
// PeerInfo messages update the peer table. Listen returns once the listener
// is bound; the accept loop runs in a background goroutine.
func (n *Network) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("core: network listen %s: %w", addr, err)
	}
	n.listener = l
	n.logger.Infof("network: listening on %s", addr)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				n.logger.Warnf("network: accept error: %v", err)
				return
			}
			id := NodeID(uuid.NewString())
			n.addPeer(id, conn.RemoteAddr().String(), conn)
			go n.readLoop(id, conn)
		}
	}()
	return nil
}

// Connect dials addr and stores the resulting stream under a freshly
// assigned peer ID (the peer record is otherwise unknown until its first
// PeerInfo heartbeat arrives).
func (n *Network) Connect(addr string) (NodeID, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("core: network connect %s: %w", addr, err)
	}
	id := NodeID(uuid.NewString())
	n.addPeer(id, addr, conn)
	go n.readLoop(id, conn)
	return id, nil
}

func (n *Network) addPeer(id NodeID, addr string, conn net.Conn) {
	p := &Peer{ID: id, Addr: addr, conn: conn, writer: bufio.NewWriter(conn)}
	n.peerLock.Lock()
	n.peers[id] = p
	n.peerLock.Unlock()
}

func (n *Network) readLoop(id NodeID, conn net.Conn) {
	defer n.detach(id, conn)
	sc := newLineScanner(bufio.NewReader(conn))
	for sc.Scan() {
		msg, err := decodeMessage(sc.Bytes())
		if err != nil {
			n.logger.Warnf("network: decode error from %s: %v", id, err)
			continue
		}
		if msg.Kind == MsgPeerInfo {
			n.peerLock.Lock()
			if p, ok := n.peers[id]; ok {
				p.Version = msg.Version
				p.LatestBlockHeight = msg.LatestBlockHeight
			}
			n.peerLock.Unlock()
		}
		if n.handler != nil {
			n.handler.HandleMessage(id, msg)
		}
	}
}

// detach removes a peer whose stream errored or closed; no automatic
// reconnect happens in the core.
func (n *Network) detach(id NodeID, conn net.Conn) {
	conn.Close()
	n.peerLock.Lock()
	delete(n.peers, id)
	n.peerLock.Unlock()
	n.logger.Infof("network: peer %s detached", id)
}

// writeTo writes and flushes an already-encoded frame to a single peer's
// stream; I/O failures are returned to the caller (Broadcast logs them).
func (n *Network) writeTo(p *Peer, data []byte) error {
	if _, err := p.writer.Write(data); err != nil {
		return err
	}
	return p.writer.Flush()
}

// Broadcast serializes msg once and writes it to every peer; per-peer I/O
// failures are logged and do not abort the broadcast.
func (n *Network) Broadcast(msg Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	n.peerLock.RLock()
	handles := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		handles = append(handles, p)
	}
	n.peerLock.RUnlock()

	for _, p := range handles {
		if err := n.writeTo(p, data); err != nil {
			n.logger.Warnf("network: write to %s failed: %v", p.ID, err)
		}
	}
	return nil
}

// BroadcastBlock is the convenience wrapper around Broadcast for newly
// produced blocks.
func (n *Network) BroadcastBlock(b *Block) error {
	return n.Broadcast(Message{Kind: MsgBlock, Block: b})
}

// BroadcastPeerInfo announces this node's local height to all peers.
func (n *Network) BroadcastPeerInfo(nodeID, version string, height uint64) error {
	return n.Broadcast(Message{Kind: MsgPeerInfo, NodeID: nodeID, Version: version, LatestBlockHeight: height})
}

// RequestBlock broadcasts a targeted GetBlock; any peer may answer.
func (n *Network) RequestBlock(height uint64) error {
	return n.Broadcast(Message{Kind: MsgGetBlock, RequestID: uuid.NewString(), Height: height})
}

// RequestSync broadcasts a targeted SyncRequest over [from, to]; any peer
// may answer.
func (n *Network) RequestSync(from, to uint64) error {
	return n.Broadcast(Message{Kind: MsgSyncRequest, RequestID: uuid.NewString(), FromHeight: from, ToHeight: to})
}

// Peers returns a cloned snapshot of the current peer table.
func (n *Network) Peers() []Peer {
	n.peerLock.RLock()
	defer n.peerLock.RUnlock()
	out := make([]Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, *p)
	}
	return out
}

// Close shuts down the listener and all peer connections.
func (n *Network) Close() error {
	n.peerLock.Lock()
	for _, p := range n.peers {
		p.conn.Close()
	}
	n.peers = make(map[NodeID]*Peer)
	n.peerLock.Unlock()
	if n.listener != nil {
		return n.listener.Close()
	}
	return nil
}
