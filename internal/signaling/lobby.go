package signaling

import "time"

// LobbyKind is the visibility/matchmaking behavior of a lobby.
type LobbyKind int

const (
	LobbyPrivate LobbyKind = iota
	LobbyPublic
	LobbyQueue
)

func (k LobbyKind) String() string {
	switch k {
	case LobbyPrivate:
		return "PRIVATE"
	case LobbyPublic:
		return "PUBLIC"
	case LobbyQueue:
		return "QUEUE"
	default:
		return "UNKNOWN"
	}
}

// LobbyOptions carries everything needed to construct a Lobby. Validation
// of these fields (required-ness, numeric ranges, isMesh defaulting) is
// the dispatcher's job, not the constructor's, so that a bad HOST/QUEUE
// request never allocates a Lobby at all.
type LobbyOptions struct {
	Game     string
	Kind     LobbyKind
	MaxPeers int
	IsMesh   bool
	Tags     *string
}

// Lobby is one instance of the lobby coordination state machine: an
// ordered peer list with a host at index 0, a sealed/active flag, and
// the timers that govern its lifetime. Like Registry, it is only ever
// touched from the Hub's single dispatcher goroutine.
type Lobby struct {
	Code     string
	Kind     LobbyKind
	Game     string
	MaxPeers int
	IsMesh   bool
	Tags     *string

	peers    []*Peer
	IsActive bool

	CreatedAt time.Time

	reapTimer *time.Timer
	reapEpoch uint64

	queueEpoch uint64
}

// NewLobby allocates a lobby in the given code with no peers yet. The
// caller appends the host immediately afterward via AddHost.
func NewLobby(code string, opts LobbyOptions, now time.Time) *Lobby {
	return &Lobby{
		Code:      code,
		Kind:      opts.Kind,
		Game:      opts.Game,
		MaxPeers:  opts.MaxPeers,
		IsMesh:    opts.IsMesh,
		Tags:      opts.Tags,
		IsActive:  true,
		CreatedAt: now,
	}
}

// Peers returns the lobby's current peer list, host-first. Callers must
// not retain or mutate the returned slice past the current dispatch.
func (l *Lobby) Peers() []*Peer { return l.peers }

// Len is the current occupancy.
func (l *Lobby) Len() int { return len(l.peers) }

// Full reports whether the lobby has no free seats.
func (l *Lobby) Full() bool { return len(l.peers) >= l.MaxPeers }

// Host returns the lobby's host, or nil if the lobby has somehow been left
// empty (which should never outlive a single dispatch — an empty lobby is
// removed from the directory in the same step that empties it).
func (l *Lobby) Host() *Peer {
	if len(l.peers) == 0 {
		return nil
	}
	return l.peers[0]
}

// AddHost appends the lobby's first peer as host, assigning lobbyId 1.
func (l *Lobby) AddHost(p *Peer) {
	p.IsHost = true
	p.LobbyID = 1
	p.Lobby = l
	l.peers = append(l.peers, p)
}

// AddMember appends a non-host peer, whose lobbyId is its own connection
// id.
func (l *Lobby) AddMember(p *Peer) {
	p.IsHost = false
	p.LobbyID = p.ID
	p.Lobby = l
	l.peers = append(l.peers, p)
}

// RemoveAll empties the lobby's peer list, used when the lobby itself is
// being torn down (host left, or START fired).
func (l *Lobby) RemoveAll() { l.peers = nil }

// RemovePeer removes p from the lobby's peer list, if present.
func (l *Lobby) RemovePeer(p *Peer) {
	for i, m := range l.peers {
		if m == p {
			l.peers = append(l.peers[:i], l.peers[i+1:]...)
			return
		}
	}
}

// FindByLobbyID returns the member with the given in-lobby id, used to
// resolve OFFER/ANSWER/CANDIDATE/KICK targets.
func (l *Lobby) FindByLobbyID(lobbyID int32) (*Peer, bool) {
	for _, m := range l.peers {
		if m.LobbyID == lobbyID {
			return m, true
		}
	}
	return nil, false
}

// Broadcast sends the given call/payload to every member, optionally
// skipping one peer (pass nil to skip none).
func (l *Lobby) Broadcast(call Call, payload any, skip *Peer) {
	for _, m := range l.peers {
		if m == skip {
			continue
		}
		m.SendEnvelope(call, payload)
	}
}

// Summary renders the VIEW-list projection of this lobby.
func (l *Lobby) Summary() lobbySummary {
	return lobbySummary{
		LobbyCode: l.Code,
		PeerCount: len(l.peers),
		IsActive:  l.IsActive,
		LobbyType: l.Kind.String(),
		MaxPeers:  l.MaxPeers,
		Tags:      l.Tags,
		IsMesh:    l.IsMesh,
	}
}

// cancelReapTimer stops the reap timer and bumps its epoch.
func (l *Lobby) cancelReapTimer() {
	if l.reapTimer != nil {
		l.reapTimer.Stop()
	}
	l.reapEpoch++
}

// cancelQueueTicker invalidates any in-flight queue-probe reschedule by
// bumping its epoch; the self-rescheduling probe chain in dispatch.go
// checks this before each fire and before rearming the next one.
func (l *Lobby) cancelQueueTicker() {
	l.queueEpoch++
}

// cancelTimers cancels every timer owned by this lobby; called once, on
// removal from the directory.
func (l *Lobby) cancelTimers() {
	l.cancelReapTimer()
	l.cancelQueueTicker()
}

// tagsEqual compares two optional tag strings for queue matching: both nil
// counts as equal, one nil and one set never matches.
func tagsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
