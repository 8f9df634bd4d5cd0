package signaling

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/diltdicker/redot-signalling-server/internal/config"
)

// Hub is the command dispatcher and connection-lifecycle owner: a single
// goroutine (Run) drains a handful of channels and is the only code in
// the process that ever reads or mutates a Registry or Directory. Same
// "one select loop owns all state" shape as a classic websocket hub,
// widened from three fixed channels (register/unregister/broadcast) to
// four, so that timer fires re-enter as ordinary dispatcher work instead
// of racing the loop from their own goroutines.
type Hub struct {
	cfg    config.Config
	clock  Clock
	logger *slog.Logger

	registry  *Registry
	directory *Directory

	registerCh   chan registerRequest
	unregisterCh chan *Peer
	commandCh    chan inboundCommand
	funcCh       chan func()
}

type registerRequest struct {
	transport Transport
	reply     chan *Peer
}

type inboundCommand struct {
	peer  *Peer
	frame Frame
}

// NewHub constructs a Hub. Call Run in its own goroutine before using
// Connect/Disconnect/Dispatch/Stats.
func NewHub(cfg config.Config, clock Clock, logger *slog.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		clock:  clock,
		logger: logger,

		registry:  NewRegistry(cfg.MaxConns),
		directory: NewDirectory(),

		registerCh:   make(chan registerRequest),
		unregisterCh: make(chan *Peer, 64),
		commandCh:    make(chan inboundCommand, 256),
		funcCh:       make(chan func(), 256),
	}
}

// Run is the dispatcher's single loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	memTicker := time.NewTicker(2 * time.Minute)
	defer memTicker.Stop()

	h.logger.Info("dispatcher started", "maxConns", h.cfg.MaxConns)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("dispatcher stopping")
			return

		case req := <-h.registerCh:
			req.reply <- h.connect(req.transport)

		case p := <-h.unregisterCh:
			h.disconnect(p)

		case cmd := <-h.commandCh:
			h.dispatch(cmd.peer, cmd.frame)

		case fn := <-h.funcCh:
			fn()

		case <-memTicker.C:
			h.logMemStats()
		}
	}
}

// Connect registers a newly-upgraded transport, blocking until the
// dispatcher has processed the connection. It returns nil if the
// connection was rejected (and already closed) for being over capacity.
func (h *Hub) Connect(t Transport) *Peer {
	reply := make(chan *Peer, 1)
	h.registerCh <- registerRequest{transport: t, reply: reply}
	return <-reply
}

// Disconnect tells the dispatcher a transport has closed. Fire-and-forget:
// the caller (a read pump exiting) does not need to wait for teardown.
func (h *Hub) Disconnect(p *Peer) {
	h.unregisterCh <- p
}

// Dispatch hands a decoded frame from peer to the dispatcher.
// Fire-and-forget for the same reason as Disconnect; per-peer ordering is
// preserved because a single read pump goroutine sends frames in the order
// it read them and the channel is FIFO.
func (h *Hub) Dispatch(p *Peer, f Frame) {
	h.commandCh <- inboundCommand{peer: p, frame: f}
}

// Stats returns the current peer and lobby counts, read from inside the
// dispatcher loop so it never races a concurrent mutation.
func (h *Hub) Stats() (peers, lobbies int) {
	reply := make(chan [2]int, 1)
	h.funcCh <- func() {
		reply <- [2]int{h.registry.Count(), h.directory.Count()}
	}
	res := <-reply
	return res[0], res[1]
}

// after schedules fn to run on the dispatcher goroutine after d, routed
// through funcCh so timer fires never touch Registry/Directory/Peer/Lobby
// state from their own goroutine. Staleness (a fire that arrives after the
// thing it refers to has already changed) is the closure's own job to
// check via a captured epoch, per the pattern below each arm* method.
func (h *Hub) after(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		h.funcCh <- fn
	})
}

// connect implements the connection-open contract. Runs on the
// dispatcher goroutine.
func (h *Hub) connect(t Transport) *Peer {
	if h.registry.AtCapacity() {
		h.logger.Warn("rejecting connection, at capacity", "maxConns", h.cfg.MaxConns)
		sendErr(t, CloseTooManyPeers)
		t.Close(CloseTooManyPeers, reasonFor(CloseTooManyPeers))
		return nil
	}

	id := MintPeerID(h.registry.Has)
	p := &Peer{
		ID:          id,
		LobbyID:     id,
		Transport:   t,
		TraceID:     uuid.New().String(),
		connectedAt: h.clock.Now(),
	}
	h.registry.Add(p)
	h.armEarlyTimer(p)
	h.armLifetimeTimer(p)

	h.logger.Debug("peer connected", "peerID", p.ID, "traceID", p.TraceID, "peers", h.registry.Count())
	p.SendEnvelope(CallID, struct{}{})
	return p
}

// armEarlyTimer starts (or restarts) the early-idle timer: a peer that
// does not complete the ID handshake within EarlyIdleTimeout is closed.
func (h *Hub) armEarlyTimer(p *Peer) {
	p.earlyEpoch++
	epoch := p.earlyEpoch
	p.earlyTimer = h.after(h.cfg.EarlyIdleTimeout, func() { h.onEarlyIdleFire(p, epoch) })
}

func (h *Hub) onEarlyIdleFire(p *Peer, epoch uint64) {
	if epoch != p.earlyEpoch {
		return
	}
	if _, ok := h.registry.Get(p.ID); !ok {
		return
	}
	h.closePeer(p, CloseIdleSocketConn)
}

// armLifetimeTimer starts the connection's hard lifetime cap, independent
// of whether it ever joins a lobby.
func (h *Hub) armLifetimeTimer(p *Peer) {
	p.lifetimeEpoch++
	epoch := p.lifetimeEpoch
	p.lifetimeTimer = h.after(h.cfg.LifetimeTimeout, func() { h.onLifetimeFire(p, epoch) })
}

func (h *Hub) onLifetimeFire(p *Peer, epoch uint64) {
	if epoch != p.lifetimeEpoch {
		return
	}
	if _, ok := h.registry.Get(p.ID); !ok {
		return
	}
	h.closePeer(p, CloseIdleSocketConn)
}

// closePeer tears the peer out of the dispatcher's state and closes its
// transport. Used by the idle/lifetime timer fires, by ID when the game
// is missing, and for the host's own close at the end of START.
func (h *Hub) closePeer(p *Peer, code int) {
	p.CloseWith(code)
	h.disconnect(p)
}

// closeForStart closes a non-host member's transport as part of a START
// sequence without running the ordinary per-member disconnect teardown
// (which would broadcast a spurious KICK to lobbymates mid-shutdown): the
// whole lobby is being torn down as a unit once the host itself closes,
// so this only retires the peer from the registry and its own timers.
func (h *Hub) closeForStart(p *Peer, code int) {
	p.CloseWith(code)
	if _, ok := h.registry.Get(p.ID); ok {
		h.registry.Remove(p.ID)
		p.cancelTimers()
	}
}

// disconnect implements the connection teardown protocol. Runs on the
// dispatcher goroutine. Safe to call more than once for the same peer (a
// timer-driven close races the read pump's own Disconnect call).
func (h *Hub) disconnect(p *Peer) {
	if _, ok := h.registry.Get(p.ID); !ok {
		return
	}
	h.registry.Remove(p.ID)
	p.cancelTimers()

	h.logger.Debug("peer disconnected", "peerID", p.ID, "traceID", p.TraceID, "peers", h.registry.Count())

	lobby := p.Lobby
	if lobby == nil {
		return
	}

	if p.IsHost {
		h.destroyLobby(lobby, lobby.IsActive)
		return
	}

	lobby.RemovePeer(p)
	p.Lobby = nil
	if lobby.Len() == 0 {
		h.directory.Remove(lobby.Code)
		return
	}
	lobby.Broadcast(CallKick, kickReply{ID: p.LobbyID, LobbyAlive: true}, nil)
}

// destroyLobby detaches every member, removes the lobby from the
// directory, and — only if notify is true — tells each former member the
// lobby is gone. notify is false when the host's disconnect is the tail
// end of a START sequence (those peers are already being closed directly
// by handleStart, not kicked), and when a host KICKs itself (handleKick
// sends its own notice carrying the host's lobbyId).
func (h *Hub) destroyLobby(l *Lobby, notify bool) {
	members := append([]*Peer(nil), l.Peers()...)
	for _, m := range members {
		m.Lobby = nil
	}
	l.RemoveAll()
	h.directory.Remove(l.Code)

	if notify {
		for _, m := range members {
			if _, ok := h.registry.Get(m.ID); ok {
				m.SendEnvelope(CallKick, kickReply{ID: m.LobbyID, LobbyAlive: false})
			}
		}
	}
	h.logger.Debug("lobby destroyed", "lobbyCode", l.Code, "notified", notify)
}

func (h *Hub) logMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	h.logger.Info("memory stats",
		"heapInUseBytes", m.HeapInuse,
		"goroutines", runtime.NumGoroutine(),
		"peers", h.registry.Count(),
		"lobbies", h.directory.Count(),
	)
}

// sendErr is used in the one place (capacity rejection) where we need to
// write an ERR frame before a Peer even exists.
func sendErr(t Transport, code int) {
	frame, err := Encode(CallErr, errReply{Code: code, Reason: reasonFor(code)})
	if err != nil {
		return
	}
	t.Send(frame)
}
