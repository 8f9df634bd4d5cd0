package signaling

import "encoding/json"

// dispatch decodes frame's payload against call and invokes the matching
// command handler. Runs entirely on the dispatcher goroutine.
func (h *Hub) dispatch(p *Peer, f Frame) {
	if _, ok := h.registry.Get(p.ID); !ok {
		// Peer already torn down (e.g. a KICK-driven close raced an
		// in-flight read); nothing left to answer.
		return
	}

	switch f.Call {
	case CallID:
		h.handleID(p, f.Data)
	case CallHost:
		h.handleHost(p, f.Data)
	case CallJoin:
		h.handleJoin(p, f.Data)
	case CallQueue:
		h.handleQueue(p, f.Data)
	case CallView:
		h.handleView(p, f.Data)
	case CallKick:
		h.handleKick(p, f.Data)
	case CallOffer:
		h.handleOffer(p, f.Data)
	case CallAnswer:
		h.handleAnswer(p, f.Data)
	case CallCandidate:
		h.handleCandidate(p, f.Data)
	case CallReady:
		h.handleReady(p, f.Data)
	case CallStart:
		h.handleStart(p)
	default:
		p.SendErr(CloseBadProto)
	}
}

func (h *Hub) handleID(p *Peer, data json.RawMessage) {
	var payload idPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Game == "" {
		h.closePeer(p, CloseUnknownPeer)
		return
	}
	p.Game = payload.Game
	p.cancelEarlyTimer()
}

func (h *Hub) handleHost(p *Peer, data json.RawMessage) {
	var payload hostPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Game == "" || payload.MaxPeers < 2 {
		p.SendErr(CloseBadHost)
		return
	}

	isMesh := true
	if payload.IsMesh != nil {
		isMesh = *payload.IsMesh
	}
	kind := LobbyPrivate
	if payload.IsPublic {
		kind = LobbyPublic
	}

	code := GenerateLobbyCode(h.directory.Has)
	lobby := NewLobby(code, LobbyOptions{
		Game:     payload.Game,
		Kind:     kind,
		MaxPeers: int(payload.MaxPeers),
		IsMesh:   isMesh,
		Tags:     payload.Tags,
	}, h.clock.Now())
	lobby.AddHost(p)
	h.directory.Insert(lobby)
	h.armReapTimer(lobby)

	p.SendEnvelope(CallHost, hostReply{ID: p.LobbyID, LobbyCode: lobby.Code, IsMesh: lobby.IsMesh})
}

func (h *Hub) handleJoin(p *Peer, data json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Game == "" || payload.LobbyCode == "" {
		p.SendErr(CloseBadJoin)
		return
	}

	lobby, ok := h.directory.ActiveByCode(payload.LobbyCode)
	if !ok || lobby.Full() {
		p.SendErr(CloseLobbyNotFound)
		return
	}

	others := append([]*Peer(nil), lobby.Peers()...)
	lobby.AddMember(p)

	p.SendEnvelope(CallJoin, joinReply{ID: p.LobbyID, IsMesh: lobby.IsMesh, LobbyCode: lobby.Code})

	// The join reply must be the first thing the new peer sees, before any
	// ADD notifications; deferring the ADD fan-out by one dispatcher tick
	// keeps that ordering explicit, even though each peer's own outbound
	// channel is already FIFO.
	h.after(0, func() { h.announceJoin(p, lobby, others) })
}

func (h *Hub) announceJoin(newPeer *Peer, lobby *Lobby, others []*Peer) {
	if newPeer.Lobby != lobby {
		return
	}
	for _, existing := range others {
		if _, ok := h.registry.Get(existing.ID); !ok || existing.Lobby != lobby {
			continue
		}
		existing.SendEnvelope(CallAdd, addReply{PeerID: newPeer.LobbyID})
		newPeer.SendEnvelope(CallAdd, addReply{PeerID: existing.LobbyID})
	}
}

func (h *Hub) handleQueue(p *Peer, data json.RawMessage) {
	var payload queuePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Game == "" || payload.MaxPeers < 1 {
		p.SendErr(CloseBadQueue)
		return
	}
	maxPeers := int(payload.MaxPeers)

	isMesh := true
	if payload.IsMesh != nil {
		isMesh = *payload.IsMesh
	}

	matches := h.directory.MatchingQueueLobbies(payload.Game, maxPeers, payload.Tags)
	if len(matches) > 1 {
		lobby := matches[0]
		others := append([]*Peer(nil), lobby.Peers()...)
		lobby.AddMember(p)
		p.SendEnvelope(CallQueue, queueReply{ID: p.LobbyID, LobbyCode: lobby.Code, IsMesh: lobby.IsMesh, IsHost: false})
		h.after(0, func() { h.announceJoin(p, lobby, others) })
		return
	}

	code := GenerateLobbyCode(h.directory.Has)
	lobby := NewLobby(code, LobbyOptions{
		Game:     payload.Game,
		Kind:     LobbyQueue,
		MaxPeers: maxPeers,
		IsMesh:   isMesh,
		Tags:     payload.Tags,
	}, h.clock.Now())
	lobby.AddHost(p)
	h.directory.Insert(lobby)
	h.armReapTimer(lobby)
	h.armQueueTicker(lobby)

	p.SendEnvelope(CallQueue, queueReply{ID: p.LobbyID, LobbyCode: lobby.Code, IsMesh: lobby.IsMesh, IsHost: true})
}

func (h *Hub) handleView(p *Peer, data json.RawMessage) {
	var payload viewPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Game == "" {
		p.SendErr(CloseBadView)
		return
	}

	var summaries []lobbySummary
	if payload.LobbyCode != nil {
		if l, ok := h.directory.Get(*payload.LobbyCode); ok {
			summaries = []lobbySummary{l.Summary()}
		}
	} else {
		for _, l := range h.directory.PublicListing(payload.Game) {
			summaries = append(summaries, l.Summary())
		}
	}
	if summaries == nil {
		summaries = []lobbySummary{}
	}
	p.SendEnvelope(CallView, viewReply{LobbyList: summaries})
}

func (h *Hub) handleKick(p *Peer, data json.RawMessage) {
	var payload kickPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ID == nil || p.Lobby == nil {
		p.SendErr(CloseBadMessage)
		return
	}
	lobby := p.Lobby
	targetID := int32(*payload.ID)

	if p.IsHost && targetID == p.LobbyID {
		members := append([]*Peer(nil), lobby.Peers()...)
		h.destroyLobby(lobby, false)
		for _, m := range members {
			m.SendEnvelope(CallKick, kickReply{ID: p.LobbyID, LobbyAlive: false})
		}
		return
	}

	target, ok := lobby.FindByLobbyID(targetID)
	if !ok {
		return
	}
	if !p.IsHost && target != p {
		p.SendErr(CloseBadMessage)
		return
	}

	lobby.RemovePeer(target)
	target.Lobby = nil
	lobby.Broadcast(CallKick, kickReply{ID: target.LobbyID, LobbyAlive: true}, nil)
	target.SendEnvelope(CallKick, kickReply{ID: target.LobbyID, LobbyAlive: true})
}

func (h *Hub) handleOffer(p *Peer, data json.RawMessage) {
	var payload offerPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ToID == nil || p.Lobby == nil {
		p.SendErr(CloseBadMessage)
		return
	}
	target, ok := p.Lobby.FindByLobbyID(int32(*payload.ToID))
	if !ok {
		p.SendErr(CloseBadMessage)
		return
	}
	target.SendEnvelope(CallOffer, offerReply{FromID: p.LobbyID, Offer: payload.Offer})
}

func (h *Hub) handleAnswer(p *Peer, data json.RawMessage) {
	var payload answerPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ToID == nil || p.Lobby == nil {
		p.SendErr(CloseBadMessage)
		return
	}
	target, ok := p.Lobby.FindByLobbyID(int32(*payload.ToID))
	if !ok {
		p.SendErr(CloseBadMessage)
		return
	}
	target.SendEnvelope(CallAnswer, answerReply{FromID: p.LobbyID, Answer: payload.Answer})
}

func (h *Hub) handleCandidate(p *Peer, data json.RawMessage) {
	var payload candidatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ToID == nil || p.Lobby == nil {
		p.SendErr(CloseBadMessage)
		return
	}
	target, ok := p.Lobby.FindByLobbyID(int32(*payload.ToID))
	if !ok {
		p.SendErr(CloseBadMessage)
		return
	}
	target.SendEnvelope(CallCandidate, candidateReply{
		FromID: p.LobbyID,
		Media:  payload.Media,
		Index:  payload.Index,
		SDP:    payload.SDP,
	})
}

func (h *Hub) handleReady(p *Peer, data json.RawMessage) {
	var payload readyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		p.SendErr(CloseBadMessage)
		return
	}
	if p.Lobby == nil {
		p.SendErr(CloseBadMessage)
		return
	}

	if !p.IsHost {
		if host := p.Lobby.Host(); host != nil {
			host.SendEnvelope(CallReady, data)
		}
		return
	}

	lobby := p.Lobby
	lobby.IsActive = false

	if payload.ID != nil {
		target, ok := lobby.FindByLobbyID(int32(*payload.ID))
		if !ok {
			return
		}
		h.after(h.cfg.ReadySettleDelay, func() { h.probeReady(lobby, target) })
		return
	}

	members := append([]*Peer(nil), lobby.Peers()...)
	h.after(h.cfg.ReadySettleDelay, func() {
		for _, m := range members {
			if m == lobby.Host() {
				continue
			}
			h.probeReady(lobby, m)
		}
	})
}

func (h *Hub) probeReady(lobby *Lobby, target *Peer) {
	if target.Lobby != lobby {
		return
	}
	count := lobby.Len() - 1
	target.SendEnvelope(CallReady, readyReply{ID: &target.LobbyID, PeerCount: &count, Status: json.RawMessage("null")})
}

func (h *Hub) handleStart(p *Peer) {
	if !p.IsHost || p.Lobby == nil {
		p.SendErr(CloseBadMessage)
		return
	}
	lobby := p.Lobby
	lobby.IsActive = false

	members := append([]*Peer(nil), lobby.Peers()...)
	for _, m := range members {
		if m == p {
			continue
		}
		m.SendEnvelope(CallStart, struct{}{})
	}

	h.after(h.cfg.StartStaggerDelay, func() {
		for _, m := range members {
			if m == p {
				continue
			}
			h.closeForStart(m, CloseStartGame)
		}
		p.SendEnvelope(CallStart, struct{}{})
		h.closePeer(p, CloseStartGame)
	})
}

// armReapTimer starts a lobby's absolute-lifetime reap timer.
func (h *Hub) armReapTimer(l *Lobby) {
	l.reapEpoch++
	epoch := l.reapEpoch
	l.reapTimer = h.after(h.cfg.LobbyReapAfter, func() { h.onReapFire(l, epoch) })
}

func (h *Hub) onReapFire(l *Lobby, epoch uint64) {
	if epoch != l.reapEpoch {
		return
	}
	if _, ok := h.directory.Get(l.Code); !ok {
		return
	}
	h.destroyLobby(l, true)
}

// armQueueTicker starts a queue lobby's 10 s full-lobby probe. Modeled as
// a self-rescheduling AfterFunc rather than a time.Ticker so that each
// firing can check IsActive/Full freshly and a cancel mid-flight is just a
// bumped epoch, matching the epoch-guard pattern used everywhere else
// instead of introducing a second cancellation mechanism.
func (h *Hub) armQueueTicker(l *Lobby) {
	l.queueEpoch++
	epoch := l.queueEpoch
	h.scheduleQueueProbe(l, epoch)
}

func (h *Hub) scheduleQueueProbe(l *Lobby, epoch uint64) {
	h.after(h.cfg.QueueProbeEvery, func() { h.onQueueProbeFire(l, epoch) })
}

func (h *Hub) onQueueProbeFire(l *Lobby, epoch uint64) {
	if epoch != l.queueEpoch {
		return
	}
	if _, ok := h.directory.Get(l.Code); !ok {
		return
	}
	if l.IsActive && l.Full() {
		if host := l.Host(); host != nil {
			host.SendEnvelope(CallReady, readyReply{})
		}
	}
	h.scheduleQueueProbe(l, epoch)
}
