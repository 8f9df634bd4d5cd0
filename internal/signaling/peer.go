package signaling

import (
	"fmt"
	"time"
)

// Transport is the minimal surface the dispatcher needs from a connected
// client: push a pre-encoded text frame, or close the connection with a
// protocol-level code and human-readable reason. The WebSocket mechanics
// live entirely behind this interface (see internal/server/conn.go for the
// concrete gorilla/websocket adapter) so the dispatcher and its tests never
// touch a socket.
type Transport interface {
	Send(frame []byte)
	Close(code int, reason string)
}

// Peer is a single connected client. It is only ever read or mutated from
// the Hub's single dispatcher goroutine.
type Peer struct {
	ID        int32
	LobbyID   int32
	IsHost    bool
	Game      string
	Lobby     *Lobby
	Transport Transport

	// TraceID is a process-unique correlation id used only in log lines,
	// never on the wire.
	TraceID string

	earlyTimer *time.Timer
	earlyEpoch uint64

	lifetimeTimer *time.Timer
	lifetimeEpoch uint64

	connectedAt time.Time
}

// SendEnvelope encodes and pushes a response envelope to this peer.
func (p *Peer) SendEnvelope(call Call, payload any) {
	frame, err := Encode(call, payload)
	if err != nil {
		// A struct we control failing to marshal is a programming error,
		// not a runtime condition; surface it loudly in logs rather than
		// pretending the send succeeded.
		panic(fmt.Sprintf("signaling: failed to encode call %d payload: %v", call, err))
	}
	p.Transport.Send(frame)
}

// SendErr sends an ERR{code,reason} to this peer without closing it.
func (p *Peer) SendErr(code int) {
	p.SendEnvelope(CallErr, errReply{Code: code, Reason: reasonFor(code)})
}

// CloseWith closes the peer's transport with the given close code, using
// the standard reason text for that code.
func (p *Peer) CloseWith(code int) {
	p.Transport.Close(code, reasonFor(code))
}

// cancelEarlyTimer stops the early-idle timer and bumps its epoch so an
// already-fired-but-not-yet-processed event is dropped as stale.
func (p *Peer) cancelEarlyTimer() {
	if p.earlyTimer != nil {
		p.earlyTimer.Stop()
	}
	p.earlyEpoch++
}

// cancelLifetimeTimer stops the lifetime timer and bumps its epoch.
func (p *Peer) cancelLifetimeTimer() {
	if p.lifetimeTimer != nil {
		p.lifetimeTimer.Stop()
	}
	p.lifetimeEpoch++
}

// cancelTimers cancels both of this peer's timers; called once on
// teardown so neither can re-enter the dispatcher after the peer is gone.
func (p *Peer) cancelTimers() {
	p.cancelEarlyTimer()
	p.cancelLifetimeTimer()
}

// Registry is the process-wide set of connected peers. It enforces the
// connection cap and owns the map peers are minted into. Like everything
// else in this package it is only ever touched from the Hub's single
// dispatcher goroutine, so it carries no lock of its own (grounded on
// ooo-team-network-master-server's PeerManager, which guards the
// equivalent map with a mutex only because its handlers run on arbitrary
// goroutines — this project's handlers all run on one).
type Registry struct {
	peers    map[int32]*Peer
	maxConns int
}

// NewRegistry creates an empty registry bounded by maxConns live peers.
func NewRegistry(maxConns int) *Registry {
	return &Registry{
		peers:    make(map[int32]*Peer),
		maxConns: maxConns,
	}
}

// Count returns the number of currently connected peers.
func (r *Registry) Count() int { return len(r.peers) }

// AtCapacity reports whether minting one more peer would exceed maxConns.
func (r *Registry) AtCapacity() bool { return len(r.peers) >= r.maxConns }

// Add registers a peer under its id. Callers must have already checked
// AtCapacity and minted a collision-free id via MintPeerID.
func (r *Registry) Add(p *Peer) { r.peers[p.ID] = p }

// Remove drops a peer from the registry.
func (r *Registry) Remove(id int32) { delete(r.peers, id) }

// Get looks up a peer by id.
func (r *Registry) Get(id int32) (*Peer, bool) {
	p, ok := r.peers[id]
	return p, ok
}

// Has reports whether id is currently taken, used by MintPeerID to avoid
// handing out a colliding id.
func (r *Registry) Has(id int32) bool {
	_, ok := r.peers[id]
	return ok
}

// All returns every connected peer.
func (r *Registry) All() []*Peer {
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}
