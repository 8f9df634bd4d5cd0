package signaling

// Close codes used both when closing a transport (Transport.Close(code,
// reason)) and inside ERR{code,reason} payloads. Grounded on the flat
// const-block catalog style of ws_codes.go in the retrieval pack.
const (
	CloseStartGame       = 1000
	CloseBadView         = 4000
	CloseBadJoin         = 4001
	CloseUnknownPeer     = 4003
	CloseLobbyNotFound   = 4004
	CloseBadProto        = 4005
	CloseBadHost         = 4006
	CloseIdleSocketConn  = 4008
	CloseBadQueue        = 4010
	CloseUnknownErr      = 4017
	CloseBadMessage      = 4022
	CloseTooManyPeers    = 4029
)

// closeReasons maps each code to its human-readable reason string, sent
// both as the WebSocket close reason and as ERR.reason.
var closeReasons = map[int]string{
	CloseStartGame:      "Closing peer connection to start game",
	CloseBadView:        "BAD_VIEW",
	CloseBadJoin:        "BAD_JOIN",
	CloseUnknownPeer:    "UNKNOWN_PEER",
	CloseLobbyNotFound:  "LOBBY_NOT_FOUND",
	CloseBadProto:       "BAD_PROTO",
	CloseBadHost:        "BAD_HOST",
	CloseIdleSocketConn: "IDLE_SOCKET_CONN",
	CloseBadQueue:       "BAD_QUEUE",
	CloseUnknownErr:     "UNKNOWN_ERR",
	CloseBadMessage:     "BAD_MESSAGE",
	CloseTooManyPeers:   "TOO_MANY_PEERS",
}

func reasonFor(code int) string {
	if r, ok := closeReasons[code]; ok {
		return r
	}
	return closeReasons[CloseUnknownErr]
}
