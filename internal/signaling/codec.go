package signaling

import (
	"encoding/json"
	"math"
)

// Call is the wire opcode carried by every envelope. Client-to-server and
// server-to-client frames share the same numbering; meaning depends on
// direction.
type Call int

const (
	CallID        Call = 0
	CallHost      Call = 1
	CallJoin      Call = 2
	CallQueue     Call = 3
	CallView      Call = 4
	CallAdd       Call = 5
	CallKick      Call = 6
	CallOffer     Call = 7
	CallAnswer    Call = 8
	CallCandidate Call = 9
	CallReady     Call = 10
	CallStart     Call = 11
	CallErr       Call = 12
)

// maxCall is the highest opcode the codec accepts; anything outside
// [0, maxCall] is malformed.
const maxCall = CallErr

// Envelope is the wire shape shared by every direction and command:
// {"call": N, "data": {...}}.
type Envelope struct {
	Call Call            `json:"call"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Frame is a decoded inbound envelope ready for dispatch. Data is left as
// raw JSON; each command handler unmarshals into its own payload struct so
// that a malformed sub-field only fails the command it belongs to.
type Frame struct {
	Call Call
	Data json.RawMessage
}

// Decode unmarshals a raw text frame into a Frame. It reports ok=false for
// any JSON parse failure or out-of-range opcode; callers respond with
// ERR{BAD_PROTO} in that case rather than treating it as an error value,
// since a malformed frame is an expected, handled condition rather than an
// exceptional one.
func Decode(raw []byte) (Frame, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{}, false
	}
	if env.Call < CallID || env.Call > maxCall {
		return Frame{}, false
	}
	return Frame{Call: env.Call, Data: env.Data}, true
}

// Encode marshals a response envelope for a given call with an arbitrary
// payload value (typically one of the *Payload structs below, or nil for
// commands with empty data such as ID and START).
func Encode(call Call, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	// "null" payloads collapse to an empty object on the wire so clients
	// can always do data.whatever without a null-check for empty commands.
	if string(data) == "null" {
		data = []byte("{}")
	}
	return json.Marshal(Envelope{Call: call, Data: data})
}

// truncatingInt and truncatingInt32 decode a JSON number the way the wire
// contract requires numeric client input to be coerced: truncated toward
// zero, rather than encoding/json's default of a hard unmarshal error when
// a fractional number targets an int-typed field. {"maxPeers":4.5} becomes
// 4 instead of failing the whole payload.
type truncatingInt int

func (t *truncatingInt) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	*t = truncatingInt(math.Trunc(f))
	return nil
}

type truncatingInt32 int32

func (t *truncatingInt32) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	*t = truncatingInt32(math.Trunc(f))
	return nil
}

// --- client -> server payloads ---

type idPayload struct {
	Game string `json:"game"`
}

type hostPayload struct {
	Game     string        `json:"game"`
	IsPublic bool          `json:"isPublic"`
	IsMesh   *bool         `json:"isMesh,omitempty"`
	MaxPeers truncatingInt `json:"maxPeers"`
	Tags     *string       `json:"tags,omitempty"`
}

type joinPayload struct {
	Game      string `json:"game"`
	LobbyCode string `json:"lobbyCode"`
}

type queuePayload struct {
	Game     string        `json:"game"`
	MaxPeers truncatingInt `json:"maxPeers"`
	Tags     *string       `json:"tags,omitempty"`
	IsMesh   *bool         `json:"isMesh,omitempty"`
}

type viewPayload struct {
	Game      string  `json:"game"`
	LobbyCode *string `json:"lobbyCode,omitempty"`
}

type kickPayload struct {
	ID *truncatingInt32 `json:"id,omitempty"`
}

type offerPayload struct {
	ToID  *truncatingInt32 `json:"toId,omitempty"`
	Offer json.RawMessage  `json:"offer,omitempty"`
}

type answerPayload struct {
	ToID   *truncatingInt32 `json:"toId,omitempty"`
	Answer json.RawMessage  `json:"answer,omitempty"`
}

type candidatePayload struct {
	ToID  *truncatingInt32 `json:"toId,omitempty"`
	Media json.RawMessage  `json:"media,omitempty"`
	Index json.RawMessage  `json:"index,omitempty"`
	SDP   json.RawMessage  `json:"sdp,omitempty"`
}

type readyPayload struct {
	ID        *truncatingInt32 `json:"id,omitempty"`
	Status    json.RawMessage  `json:"status,omitempty"`
	PeerCount *truncatingInt   `json:"peerCount,omitempty"`
}

// --- server -> client payloads ---

type hostReply struct {
	ID        int32  `json:"id"`
	LobbyCode string `json:"lobbyCode"`
	IsMesh    bool   `json:"isMesh"`
}

type joinReply struct {
	ID        int32  `json:"id"`
	IsMesh    bool   `json:"isMesh"`
	LobbyCode string `json:"lobbyCode"`
}

type queueReply struct {
	ID        int32  `json:"id"`
	LobbyCode string `json:"lobbyCode"`
	IsMesh    bool   `json:"isMesh"`
	IsHost    bool   `json:"isHost"`
}

type viewReply struct {
	LobbyList []lobbySummary `json:"lobbyList"`
}

type lobbySummary struct {
	LobbyCode string  `json:"lobbyCode"`
	PeerCount int     `json:"peerCount"`
	IsActive  bool    `json:"isActive"`
	LobbyType string  `json:"lobbyType"`
	MaxPeers  int     `json:"maxPeers"`
	Tags      *string `json:"tags,omitempty"`
	IsMesh    bool    `json:"isMesh"`
}

type addReply struct {
	PeerID int32 `json:"peerId"`
}

type kickReply struct {
	ID         int32 `json:"id"`
	LobbyAlive bool  `json:"lobbyAlive"`
}

type offerReply struct {
	FromID int32           `json:"fromId"`
	Offer  json.RawMessage `json:"offer,omitempty"`
}

type answerReply struct {
	FromID int32           `json:"fromId"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

type candidateReply struct {
	FromID int32           `json:"fromId"`
	Media  json.RawMessage `json:"media,omitempty"`
	Index  json.RawMessage `json:"index,omitempty"`
	SDP    json.RawMessage `json:"sdp,omitempty"`
}

type readyReply struct {
	ID        *int32          `json:"id,omitempty"`
	PeerCount *int            `json:"peerCount,omitempty"`
	Status    json.RawMessage `json:"status,omitempty"`
}

type errReply struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}
